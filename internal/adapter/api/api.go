// Package api exposes the study operations as a JSON REST API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/study"
)

// Service is the study behaviour the API depends on.
type Service interface {
	ProcessKMZ(ctx context.Context, data []byte) (study.Upload, error)
	Export(ctx context.Context, studyID string) (string, []byte, error)
	SimulateMain(ctx context.Context, req study.SimulationRequest) (study.SimulationResult, error)
	SimulateRepeater(ctx context.Context, req study.SimulationRequest) (study.SimulationResult, error)
	Reevaluate(ctx context.Context, req study.ReevaluateRequest) (study.ReevaluateResult, error)
	ElevationProfile(ctx context.Context, req study.ProfileRequest) (domain.Profile, error)
	Templates() []string
	RasterPath(studyID, name string) (string, error)
}

// Handler serves the /api and /static routes.
type Handler struct {
	echo           *echo.Echo
	svc            Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// New builds the API router.
func New(svc Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := &Handler{echo: e, svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
	e.HTTPErrorHandler = h.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("api request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	api := e.Group("/api")
	api.POST("/kmz", h.uploadKMZ)
	api.GET("/kmz/:study/export", h.exportKMZ)
	api.POST("/simulation/main", h.simulateMain)
	api.POST("/simulation/repeater", h.simulateRepeater)
	api.POST("/simulation/reevaluate", h.reevaluate)
	api.POST("/simulation/profile", h.profile)
	api.GET("/templates", h.templates)

	e.GET("/static/studies/:study/images/:file", h.raster)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.echo.ServeHTTP(w, r)
}
