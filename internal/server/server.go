package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/pastry/internal/paste"
	"github.com/mdouchement/pastry/internal/server/middlewares"
	"github.com/mdouchement/pastry/internal/storage"
)

// A Controller is an Inversion Of Control pattern used to init the server package.
type Controller struct {
	Version string
	Store   *paste.Store
	Backend *storage.Dispatcher
	// PublicURL is the base URL rendered in QR codes.
	PublicURL string
	// AdminPassword can delete any protected paste. Empty disables it.
	AdminPassword string
	// Editable is the default mutability of new pastes.
	Editable bool
	// DefaultExpiry is the expiry preset applied when the creation request
	// does not carry one.
	DefaultExpiry string
	// EternalPastes allows the "never" expiry preset.
	EternalPastes bool
	// Upload caps, in mebibytes.
	MaxFileSizeMB          int
	MaxEncryptedFileSizeMB int
}

// EchoEngine instantiates the web server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	////////////
	// Router //
	////////////

	router := engine.Group("")

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	//
	// paste handlers
	//
	pastes := &pastes{ctrl: ctrl}
	router.POST("/upload", pastes.Create)
	router.GET("/pastes", pastes.List)
	router.GET("/pastes/:slug", pastes.Show)
	router.POST("/pastes/:slug", pastes.ShowProtected)
	router.GET("/qr/:slug", pastes.QRCode)
	router.GET("/remove/:slug", pastes.Remove)
	router.POST("/remove/:slug", pastes.RemoveProtected)

	//
	// file handlers
	//
	files := &files{ctrl: ctrl}
	router.GET("/file/:slug", files.Download)
	router.POST("/secure_file/:slug", files.DownloadProtected)

	return engine
}

// PrintRoutes prints the Echo engine exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%7s %s\n", route.Method, route.Path)
	}
}
