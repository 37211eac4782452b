// Package server exposes the workflow over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ebahrami/underthreat/config"
	"github.com/ebahrami/underthreat/internal/runtime"
)

// Run builds the service from configuration and serves until the listener
// fails.
func Run(cfg *config.Config) error {
	ctx := context.Background()
	svc, err := runtime.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(svc.Telemetry.Handler()))

	qh := &QueryHandler{Engine: svc.Engine}
	qh.Register(e.Group("/api"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10011"
	}
	return e.Start(addr)
}
