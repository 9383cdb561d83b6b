package server

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/pastry/internal/model"
	"github.com/mdouchement/pastry/internal/pserror"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/mdouchement/pastry/pkg/crypt"
	"github.com/pkg/errors"
)

// files contains all attachment handlers.
type files struct {
	ctrl Controller
}

///// Download
////
//

// Download serves an unencrypted attachment. Encrypted ones require the
// password-carrying DownloadProtected.
func (h *files) Download(c echo.Context) error {
	p, locator, err := h.lookup(c)
	if err != nil {
		return err
	}

	if p.Privacy.EncryptedAtRest() {
		return pserror.NewWithTagCode(http.StatusUnauthorized, "password", "A password is required to download this file.")
	}

	data, err := h.ctrl.Backend.Get(c.Request().Context(), p.Slug(), locator)
	if err != nil {
		return storageError(err)
	}

	h.touch(p.ID)
	return attachment(c, locator.DisplayName(), data)
}

// DownloadProtected fetches the encrypted attachment bytes and serves them
// decrypted by the posted password.
func (h *files) DownloadProtected(c echo.Context) error {
	p, locator, err := h.lookup(c)
	if err != nil {
		return err
	}

	data, err := h.ctrl.Backend.Get(c.Request().Context(), p.Slug(), locator)
	if err != nil {
		return storageError(err)
	}

	if p.Privacy.EncryptedAtRest() {
		data, err = crypt.DecryptBytes(data, c.FormValue("password"))
		if err != nil {
			return pserror.NewWithTagCode(http.StatusUnauthorized, "password", "Wrong password.")
		}
	}

	h.touch(p.ID)
	return attachment(c, locator.DisplayName(), data)
}

///// Helpers
////
//

func (h *files) lookup(c echo.Context) (*model.Paste, storage.Locator, error) {
	id, err := slugDecodeParam(c)
	if err != nil {
		return nil, storage.Locator{}, err
	}

	p, found := h.ctrl.Store.Find(id)
	if !found || !p.HasFile() {
		return nil, storage.Locator{}, pserror.NewWithTagCode(http.StatusNotFound, "not-found", "File not found.")
	}

	locator, err := storage.Parse(p.File.Locator, p.Privacy.EncryptedAtRest())
	if err != nil {
		return nil, storage.Locator{}, errors.Wrap(err, "could not parse locator")
	}
	return p, locator, nil
}

func (h *files) touch(id uint64) {
	pastes := &pastes{ctrl: h.ctrl}
	pastes.touch(id)
}

func attachment(c echo.Context, name string, data []byte) error {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, contentType, data)
}

func storageError(err error) error {
	if errors.Cause(err) == storage.ErrNotFound {
		return pserror.NewWithTagCode(http.StatusNotFound, "not-found", "File not found.")
	}
	return err
}
