package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/study"
)

const kmzContentType = "application/vnd.google-earth.kmz"

func (h *Handler) uploadKMZ(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	up, err := h.svc.ProcessKMZ(req.Context(), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, up)
}

func (h *Handler) exportKMZ(c echo.Context) error {
	name, data, err := h.svc.Export(c.Request().Context(), c.Param("study"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, kmzContentType, data)
}

func (h *Handler) simulateMain(c echo.Context) error {
	var req study.SimulationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := h.svc.SimulateMain(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) simulateRepeater(c echo.Context) error {
	var req study.SimulationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := h.svc.SimulateRepeater(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) reevaluate(c echo.Context) error {
	var req study.ReevaluateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := h.svc.Reevaluate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// profileRequest takes points as [lat, lon] pairs.
type profileRequest struct {
	Points         [][]float64 `json:"points"`
	AntennaHeight  float64     `json:"antenna_height"`
	ReceiverHeight float64     `json:"receiver_height"`
}

func (h *Handler) profile(c echo.Context) error {
	var body profileRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	req := study.ProfileRequest{AntennaHeight: body.AntennaHeight, ReceiverHeight: body.ReceiverHeight}
	for i, p := range body.Points {
		if len(p) < 2 {
			return fmt.Errorf("%w: point %d has %d components", domain.ErrInsufficientPoints, i, len(p))
		}
		req.Points = append(req.Points, domain.Coordinate{Lat: p[0], Lon: p[1]})
	}

	prof, err := h.svc.ElevationProfile(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, prof)
}

func (h *Handler) templates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"templates": h.svc.Templates()})
}

func (h *Handler) raster(c echo.Context) error {
	p, err := h.svc.RasterPath(c.Param("study"), c.Param("file"))
	if err != nil {
		return err
	}
	return c.File(p)
}
