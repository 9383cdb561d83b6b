package server

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/pastry/internal/model"
	"github.com/mdouchement/pastry/internal/pserror"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/mdouchement/pastry/pkg/crypt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// A creationRequest is the decoded multipart form feeding the paste
// lifecycle engine.
type creationRequest struct {
	Content   string
	Privacy   model.Privacy
	Extension string
	// PlainKey is the server passphrase, required again at every later read.
	// Never persisted.
	PlainKey string
	// RandomKey is the client-held key of secret pastes. The server uses it
	// once to encrypt at rest and must never log, index nor store it.
	RandomKey  string
	Expiration string
	BurnAfter  uint64

	Filename string
	FileData []byte
}

///// Create
////
//

// Create decodes a multipart creation request, applies the privacy mode's
// encryption, routes the optional attachment to the storage backend and
// commits the paste.
func (h *pastes) Create(c echo.Context) error {
	req, err := h.decodeCreationRequest(c)
	if err != nil {
		return err
	}

	now := time.Now().Unix()

	id, err := h.ctrl.Store.AllocateID()
	if err != nil {
		return err
	}

	p := &model.Paste{
		ID:             id,
		Content:        req.Content,
		Extension:      req.Extension,
		Privacy:        req.Privacy,
		Editable:       h.ctrl.Editable,
		Type:           "text",
		Created:        now,
		LastRead:       now,
		Expiration:     model.ExpirationFrom(req.Expiration, now, h.ctrl.EternalPastes),
		BurnAfterReads: req.BurnAfter,
	}
	if isValidURL(p.Content) {
		p.Type = "url"
	}

	key := req.PlainKey
	if req.Privacy.ClientKeyed() {
		key = req.RandomKey
	}

	if req.Privacy == model.PrivacyReadonly && req.PlainKey != "" {
		p.EncryptedKey, err = crypt.Encrypt(strconv.FormatUint(id, 10), req.PlainKey)
		if err != nil {
			h.ctrl.Store.Release(id)
			return err
		}
	}

	if req.Privacy.EncryptedAtRest() {
		p.Content, err = crypt.Encrypt(p.Content, key)
		if err != nil {
			h.ctrl.Store.Release(id)
			return err
		}
	}

	if req.Filename != "" {
		p.File, err = h.saveAttachment(c, p.Slug(), req, key)
		if err != nil {
			h.ctrl.Store.Release(id)
			return err
		}
	}

	if err := h.ctrl.Store.Insert(p); err != nil {
		// No partial entity: reclaim the bytes saved just above.
		if p.File != nil {
			if locator, lerr := storage.Parse(p.File.Locator, req.Privacy.EncryptedAtRest()); lerr == nil {
				if derr := h.ctrl.Backend.Delete(c.Request().Context(), p.Slug(), locator); derr != nil {
					logrus.WithError(derr).Error("could not reclaim attachment of failed creation")
				}
			}
		}
		h.ctrl.Store.Release(id)
		return err
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":   strconv.FormatUint(id, 10),
		"slug": p.Slug(),
		"url":  h.ctrl.PublicURL + "/pastes/" + p.Slug(),
	})
}

func (h *pastes) saveAttachment(c echo.Context, slug string, req *creationRequest, key string) (*model.FileRef, error) {
	data := req.FileData

	var locator storage.Locator
	if req.Privacy.EncryptedAtRest() {
		ciphertext, err := crypt.EncryptBytes(data, key)
		if err != nil {
			return nil, err
		}
		data = ciphertext

		if h.ctrl.Backend.S3Enabled() {
			locator = storage.S3EncryptedLocator(req.Filename)
		} else {
			locator = storage.LocalEncryptedLocator(req.Filename)
		}
	} else {
		if h.ctrl.Backend.S3Enabled() {
			locator = storage.S3Locator(slug, req.Filename)
		} else {
			locator = storage.LocalLocator(req.Filename)
		}
	}

	if err := h.ctrl.Backend.Save(c.Request().Context(), slug, locator, data); err != nil {
		return nil, errors.Wrap(err, "could not save attachment")
	}

	return &model.FileRef{
		Locator: locator.String(),
		Size:    uint64(len(req.FileData)),
	}, nil
}

func (h *pastes) decodeCreationRequest(c echo.Context) (*creationRequest, error) {
	req := &creationRequest{
		Content:    c.FormValue("content"),
		Extension:  c.FormValue("syntax_highlight"),
		PlainKey:   c.FormValue("plain_key"),
		RandomKey:  c.FormValue("random_key"),
		Expiration: c.FormValue("expiration"),
		BurnAfter:  model.BurnAfterFrom(c.FormValue("burn_after")),
	}
	if req.Expiration == "" {
		req.Expiration = h.ctrl.DefaultExpiry
	}

	privacy := c.FormValue("privacy")
	if privacy == "" {
		privacy = string(model.PrivacyPublic)
	}

	var err error
	req.Privacy, err = model.ParsePrivacy(privacy)
	if err != nil {
		return nil, pserror.NewWithTagCode(http.StatusBadRequest, "privacy", "Unknown privacy mode.")
	}

	// The encryption engine accepts any key, rejecting the empty one is this
	// caller's contract.
	if req.Privacy == model.PrivacyPrivate && req.PlainKey == "" {
		return nil, pserror.NewWithTagCode(http.StatusBadRequest, "key", "Private pastes require a passphrase.")
	}
	if req.Privacy == model.PrivacySecret && req.RandomKey == "" {
		return nil, pserror.NewWithTagCode(http.StatusBadRequest, "key", "Secret pastes require a client key.")
	}

	if err := h.decodeAttachment(c, req); err != nil {
		return nil, err
	}

	if req.Content == "" && req.Filename == "" {
		return nil, pserror.NewWithTagCode(http.StatusBadRequest, "content", "Nothing to store.")
	}
	return req, nil
}

func (h *pastes) decodeAttachment(c echo.Context, req *creationRequest) error {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return nil
		}
		// A creation without any file is a regular text paste.
		return nil
	}
	if header.Filename == "" {
		return nil
	}

	req.Filename, err = storage.SanitizeFilename(header.Filename)
	if err != nil {
		logrus.WithError(err).Warn("unsafe file name")
		return pserror.NewWithTagCode(http.StatusBadRequest, "file", "Unsafe file name.")
	}

	capMB := h.ctrl.MaxFileSizeMB
	if req.Privacy.EncryptedAtRest() && h.ctrl.MaxEncryptedFileSizeMB < capMB {
		capMB = h.ctrl.MaxEncryptedFileSizeMB
	}
	limit := int64(capMB) * 1024 * 1024

	file, err := header.Open()
	if err != nil {
		return errors.Wrap(err, "could not open uploaded file")
	}
	defer file.Close()

	req.FileData, err = io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return errors.Wrap(err, "could not read uploaded file")
	}
	if int64(len(req.FileData)) > limit {
		return pserror.NewWithTagCode(http.StatusBadRequest, "file", "File exceeded size limit.")
	}
	return nil
}

func isValidURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
