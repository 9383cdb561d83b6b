package server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/pastry/internal/database"
	"github.com/mdouchement/pastry/internal/paste"
	"github.com/mdouchement/pastry/internal/server"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestVersion(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	r.GET("/version").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"version":"test"}`, r.Body.String())
	})
}

func TestRequestCreatePublic(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	var slug string
	r.POST("/upload").SetForm(gofight.H{
		"content": "hello world",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)

		created := decode(t, r.Body.Bytes())
		slug = created["slug"].(string)
		assert.NotEmpty(t, slug)
		assert.Equal(t, "http://pastry.test/pastes/"+slug, created["url"])
	})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		payload := decode(t, r.Body.Bytes())
		assert.Equal(t, "hello world", payload["content"])
		assert.Equal(t, "public", payload["privacy"])
		assert.Equal(t, "text", payload["type"])
	})

	// The read itself is recorded after rendering.
	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		payload := decode(t, r.Body.Bytes())
		assert.Equal(t, float64(1), payload["read_count"])
	})
}

func TestRequestCreateURLType(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{"content": "https://example.com/page"})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		payload := decode(t, r.Body.Bytes())
		assert.Equal(t, "url", payload["type"])
	})
}

func TestRequestCreateRejectsEmpty(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	r.POST("/upload").SetForm(gofight.H{"privacy": "public"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"content","message":"Nothing to store."}}`, r.Body.String())
	})

	// No body at all.
	r.POST("/upload").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"content","message":"Nothing to store."}}`, r.Body.String())
	})
}

func TestRequestCreateKeyContract(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	r.POST("/upload").SetForm(gofight.H{
		"content": "secret stuff",
		"privacy": "private",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"key","message":"Private pastes require a passphrase."}}`, r.Body.String())
	})

	r.POST("/upload").SetForm(gofight.H{
		"content": "secret stuff",
		"privacy": "secret",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"key","message":"Secret pastes require a client key."}}`, r.Body.String())
	})

	r.POST("/upload").SetForm(gofight.H{
		"content": "secret stuff",
		"privacy": "paranoid",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"privacy","message":"Unknown privacy mode."}}`, r.Body.String())
	})
}

func TestRequestShowProtected(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{
		"content":   "the payload",
		"privacy":   "private",
		"plain_key": "password42",
	})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		payload := decode(t, r.Body.Bytes())
		assert.NotEqual(t, "the payload", payload["content"])
	})

	r.POST("/pastes/"+slug).SetForm(gofight.H{"password": "nope"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"password","message":"Wrong password."}}`, r.Body.String())
	})

	r.POST("/pastes/"+slug).SetForm(gofight.H{"password": "password42"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		payload := decode(t, r.Body.Bytes())
		assert.Equal(t, "the payload", payload["content"])
	})
}

func TestRequestRemoveUnprotected(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{"content": "disposable"})

	r.GET("/remove/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"status":"removed"}`, r.Body.String())
	})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestRemoveReadonlyProof(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{
		"content":   "look but don't touch",
		"privacy":   "readonly",
		"plain_key": "password42",
	})

	// Readonly content stays readable by anyone.
	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		payload := decode(t, r.Body.Bytes())
		assert.Equal(t, "look but don't touch", payload["content"])
	})

	r.GET("/remove/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	r.POST("/remove/"+slug).SetForm(gofight.H{"password": "not-the-one"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"password","message":"A password is required to delete this paste."}}`, r.Body.String())
	})

	r.POST("/remove/"+slug).SetForm(gofight.H{"password": "password42"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"status":"removed"}`, r.Body.String())
	})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestRemoveAdminOverride(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{
		"content":   "classified",
		"privacy":   "private",
		"plain_key": "password42",
	})

	r.POST("/remove/"+slug).SetForm(gofight.H{"password": "hunter2"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"status":"removed"}`, r.Body.String())
	})
}

func TestRequestBurnAfterReads(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{
		"content":    "read once",
		"burn_after": "1",
	})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestList(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	create(t, engine, r, gofight.H{"content": "first"})
	create(t, engine, r, gofight.H{"content": "second"})

	r.GET("/pastes").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var summaries []map[string]interface{}
		require.NoError(t, json.Unmarshal(r.Body.Bytes(), &summaries))
		assert.Len(t, summaries, 2)
		for _, summary := range summaries {
			assert.NotContains(t, summary, "content")
			assert.Contains(t, summary, "slug")
			assert.Contains(t, summary, "expiration")
		}
	})
}

func TestRequestQRCode(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	slug := create(t, engine, r, gofight.H{"content": "scan me"})

	r.GET("/qr/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "image/png", r.HeaderMap.Get(echo.HeaderContentType))
		assert.Equal(t, "\x89PNG", r.Body.String()[:4])
	})
}

func TestRequestUnknownSlug(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	for _, path := range []string{"/pastes/cat-dog", "/pastes/+++", "/qr/+++"} {
		r.GET(path).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNotFound, r.Code)
			assert.JSONEq(t, `{"error":{"tag":"not-found","message":"Paste not found."}}`, r.Body.String())
		})
	}

	r.GET("/file/cat-dog").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found","message":"File not found."}}`, r.Body.String())
	})
}

func TestRequestFileUploadDownload(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	body, contentType := multipartBody(t, gofight.H{"content": "with attachment"}, "notes.txt", []byte("attached bytes"))

	var slug string
	r.POST("/upload").SetBody(body).SetHeader(gofight.H{echo.HeaderContentType: contentType}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusCreated, r.Code)
			slug = decode(t, r.Body.Bytes())["slug"].(string)
		})

	r.GET("/pastes/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		payload := decode(t, r.Body.Bytes())
		file := payload["file"].(map[string]interface{})
		assert.Equal(t, "notes.txt", file["name"])
		assert.Equal(t, float64(14), file["size"])
	})

	r.GET("/file/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "attached bytes", r.Body.String())
		assert.Contains(t, r.HeaderMap.Get(echo.HeaderContentDisposition), "notes.txt")
	})
}

func TestRequestSecureFileDownload(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	body, contentType := multipartBody(t, gofight.H{
		"content":   "with secure attachment",
		"privacy":   "private",
		"plain_key": "password42",
	}, "report.pdf", []byte("confidential bytes"))

	var slug string
	r.POST("/upload").SetBody(body).SetHeader(gofight.H{echo.HeaderContentType: contentType}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusCreated, r.Code)
			slug = decode(t, r.Body.Bytes())["slug"].(string)
		})

	r.GET("/file/"+slug).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})

	// The multipart Content-Type set for the upload sticks to the shared
	// RequestConfig; restore the form one so the password reaches the handler.
	r.POST("/secure_file/"+slug).SetForm(gofight.H{"password": "nope"}).
		SetHeader(gofight.H{echo.HeaderContentType: echo.MIMEApplicationForm}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusUnauthorized, r.Code)
		})

	r.POST("/secure_file/"+slug).SetForm(gofight.H{"password": "password42"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "confidential bytes", r.Body.String())
	})
}

func setup() (engine *echo.Echo, ctrl server.Controller, r *gofight.RequestConfig, cleanup func()) {
	dir, err := os.MkdirTemp("", "pastry")
	if err != nil {
		panic(err)
	}

	db, err := database.StormOpen(filepath.Join(dir, "pastry.db"))
	if err != nil {
		panic(err)
	}

	dispatcher := storage.NewDispatcher(storage.NewFilesystem(filepath.Join(dir, "data")), nil)
	store, err := paste.NewStore(db, dispatcher, 90)
	if err != nil {
		panic(err)
	}

	ctrl = server.Controller{
		Version:                "test",
		Store:                  store,
		Backend:                dispatcher,
		PublicURL:              "http://pastry.test",
		AdminPassword:          "hunter2",
		Editable:               true,
		DefaultExpiry:          "1week",
		MaxFileSizeMB:          16,
		MaxEncryptedFileSizeMB: 16,
	}
	engine = server.EchoEngine(ctrl)

	return engine, ctrl, gofight.New(), func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

func create(t *testing.T, engine *echo.Echo, r *gofight.RequestConfig, params gofight.H) (slug string) {
	r.POST("/upload").SetForm(params).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusCreated, r.Code)
		slug = decode(t, r.Body.Bytes())["slug"].(string)
	})
	return slug
}

func decode(t *testing.T, payload []byte) map[string]interface{} {
	m := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(payload, &m))
	return m
}

func multipartBody(t *testing.T, fields gofight.H, filename string, data []byte) (body, contentType string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.String(), w.FormDataContentType()
}
