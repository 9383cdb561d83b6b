package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/pastry/internal/model"
	"github.com/mdouchement/pastry/internal/paste"
	"github.com/mdouchement/pastry/internal/pserror"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/mdouchement/pastry/pkg/crypt"
	"github.com/mdouchement/pastry/pkg/slug"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
)

// pastes contains all paste handlers.
type pastes struct {
	ctrl Controller
}

///// Show
////
//

// Show returns the paste as stored. Encrypted contents are returned as
// ciphertext; ShowProtected decrypts server-passphrase pastes.
func (h *pastes) Show(c echo.Context) error {
	p, err := h.lookup(c)
	if err != nil {
		return err
	}

	h.touch(p.ID)
	return c.JSON(http.StatusOK, render(p))
}

// ShowProtected returns the paste with its content decrypted by the posted
// password. A wrong key is an authorization failure, never distinguished
// from corrupted ciphertext.
func (h *pastes) ShowProtected(c echo.Context) error {
	p, err := h.lookup(c)
	if err != nil {
		return err
	}

	if p.Privacy.EncryptedAtRest() {
		p.Content, err = crypt.Decrypt(p.Content, c.FormValue("password"))
		if err != nil {
			return pserror.NewWithTagCode(http.StatusUnauthorized, "password", "Wrong password.")
		}
	}

	h.touch(p.ID)
	return c.JSON(http.StatusOK, render(p))
}

///// List
////
//

// List returns a summary of the alive collection, contents omitted.
func (h *pastes) List(c echo.Context) error {
	collection := h.ctrl.Store.List()

	summaries := make([]echo.Map, 0, len(collection))
	for _, p := range collection {
		summaries = append(summaries, echo.Map{
			"slug":       p.Slug(),
			"privacy":    p.Privacy,
			"type":       p.Type,
			"size":       p.TotalSize(),
			"created":    p.Created,
			"expiration": p.Expiration,
			"read_count": p.ReadCount,
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

///// QRCode
////
//

// QRCode renders the paste's public URL as a PNG QR code.
func (h *pastes) QRCode(c echo.Context) error {
	p, err := h.lookup(c)
	if err != nil {
		return err
	}

	png, err := qrcode.Encode(h.ctrl.PublicURL+"/pastes/"+p.Slug(), qrcode.Medium, 256)
	if err != nil {
		return errors.Wrap(err, "could not generate QR code")
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

///// Remove
////
//

// Remove deletes an unprotected paste. Readonly, encrypted and immutable
// pastes must go through RemoveProtected.
func (h *pastes) Remove(c echo.Context) error {
	p, err := h.lookup(c)
	if err != nil {
		return err
	}

	if protected(p) {
		return pserror.NewWithTagCode(http.StatusUnauthorized, "password", "A password is required to delete this paste.")
	}

	if err := h.ctrl.Store.Remove(c.Request().Context(), p.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
}

// RemoveProtected deletes a protected paste once the posted password proves
// ownership: the admin password, the readonly proof-of-knowledge token or a
// successful content decrypt. A wrong password gets the same answer as a
// missing one.
func (h *pastes) RemoveProtected(c echo.Context) error {
	p, err := h.lookup(c)
	if err != nil {
		return err
	}

	if !protected(p) {
		if err := h.ctrl.Store.Remove(c.Request().Context(), p.ID); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
	}

	if !h.authorized(p, c.FormValue("password")) {
		return pserror.NewWithTagCode(http.StatusUnauthorized, "password", "A password is required to delete this paste.")
	}

	if err := h.ctrl.Store.Remove(c.Request().Context(), p.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
}

func (h *pastes) authorized(p *model.Paste, password string) bool {
	if password == "" {
		return false
	}
	if h.ctrl.AdminPassword != "" && password == h.ctrl.AdminPassword {
		return true
	}

	if p.Privacy == model.PrivacyReadonly && p.EncryptedKey != "" {
		id, err := crypt.Decrypt(p.EncryptedKey, password)
		return err == nil && id == strconv.FormatUint(p.ID, 10)
	}

	if p.Privacy.EncryptedAtRest() && p.Content != "" {
		_, err := crypt.Decrypt(p.Content, password)
		return err == nil
	}
	return false
}

func protected(p *model.Paste) bool {
	return p.Privacy == model.PrivacyReadonly || p.Privacy.EncryptedAtRest() || !p.Editable
}

///// Helpers
////
//

// slugDecodeParam resolves the slug route param. Undecodable slugs get the
// same answer as missing pastes.
func slugDecodeParam(c echo.Context) (uint64, error) {
	id, err := slug.Decode(c.Param("slug"))
	if err != nil {
		return 0, pserror.NewWithTagCode(http.StatusNotFound, "not-found", "Paste not found.")
	}
	return id, nil
}

// lookup resolves the slug route param into an alive paste snapshot. The
// eviction sweep runs as part of the store lookup.
func (h *pastes) lookup(c echo.Context) (*model.Paste, error) {
	id, err := slugDecodeParam(c)
	if err != nil {
		return nil, err
	}

	p, found := h.ctrl.Store.Find(id)
	if !found {
		return nil, pserror.NewWithTagCode(http.StatusNotFound, "not-found", "Paste not found.")
	}
	return p, nil
}

// touch records a successful read. Losing the race against a concurrent
// eviction only means the read is not counted.
func (h *pastes) touch(id uint64) {
	if err := h.ctrl.Store.Touch(id); err != nil && errors.Cause(err) != paste.ErrPasteNotFound {
		logrus.WithError(err).Errorf("could not record read of paste %d", id)
	}
}

func render(p *model.Paste) echo.Map {
	payload := echo.Map{
		"id":               strconv.FormatUint(p.ID, 10),
		"slug":             p.Slug(),
		"content":          p.Content,
		"extension":        p.Extension,
		"privacy":          p.Privacy,
		"editable":         p.Editable,
		"type":             p.Type,
		"created":          p.Created,
		"expiration":       p.Expiration,
		"last_read":        p.LastRead,
		"read_count":       p.ReadCount,
		"burn_after_reads": p.BurnAfterReads,
		"size":             p.TotalSize(),
	}

	if p.HasFile() {
		file := echo.Map{"size": p.File.Size}
		if locator, err := storage.Parse(p.File.Locator, p.Privacy.EncryptedAtRest()); err == nil {
			file["name"] = locator.DisplayName()
			file["embeddable"] = locator.Embeddable() && !p.Privacy.EncryptedAtRest()
		} else {
			file["name"] = p.File.Locator
			file["embeddable"] = false
		}
		payload["file"] = file
	}
	return payload
}
