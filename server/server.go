// Package server exposes the availability engine over HTTP. It is the
// external collaborator the core spec names but never depends on: a thin
// echo surface that validates requests, calls into booking/reminder, and
// translates domain errors into HTTP statuses.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nettuhq/scheduler/booking"
	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/metrics"
	"github.com/nettuhq/scheduler/reminder"
)

// Server wires the booking planner and reminder dispatcher behind an echo
// instance.
type Server struct {
	Planner  *booking.Planner
	Dispatch *reminder.Dispatch
	Metrics  *metrics.PrometheusExporter
	Logger   *slog.Logger
	Version  string

	echo *echo.Echo
}

// New constructs a Server and registers its routes. A nil Logger defaults
// to slog.Default(); a nil Metrics disables metrics instrumentation.
func New(planner *booking.Planner, dispatch *reminder.Dispatch, exporter *metrics.PrometheusExporter, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Planner:  planner,
		Dispatch: dispatch,
		Metrics:  exporter,
		Logger:   logger,
		Version:  version,
		echo:     echo.New(),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.Logger())

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/services/:serviceID/booking-slots", s.handleBookingSlots)
	v1.POST("/internal/reminders/dispatch", s.handleDispatchOnce)

	if s.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}
}

// Start blocks serving HTTP on addr (host:port form, e.g. ":8082").
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Echo exposes the underlying echo instance, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Version,
	})
}

func (s *Server) handleBookingSlots(c echo.Context) error {
	serviceID := domain.ID(c.Param("serviceID"))

	duration, err := strconv.ParseInt(c.QueryParam("duration"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "duration must be an integer number of milliseconds")
	}
	interval, err := strconv.ParseInt(c.QueryParam("interval"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "interval must be an integer number of milliseconds")
	}

	q := booking.Query{
		Date:     c.QueryParam("date"),
		IanaTz:   c.QueryParam("ianaTz"),
		Duration: duration,
		Interval: interval,
	}

	start := time.Now()
	slots, err := s.Planner.BookingSlots(c.Request().Context(), serviceID, q)
	if s.Metrics != nil {
		s.Metrics.RecordBookingSlots(time.Since(start), err == nil)
	}
	if err != nil {
		return s.domainErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"slots": slots})
}

func (s *Server) handleDispatchOnce(c echo.Context) error {
	if s.Dispatch == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "reminder dispatch is not configured")
	}
	if err := s.Dispatch.DispatchOnce(c.Request().Context()); err != nil {
		s.Logger.Error("manual dispatch tick failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "dispatch failed")
	}
	return c.NoContent(http.StatusAccepted)
}

// domainErrorResponse maps the core's typed errors to HTTP statuses.
func (s *Server) domainErrorResponse(c echo.Context, err error) error {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	}

	var notFoundErr *domain.NotFoundError
	if errors.As(err, &notFoundErr) {
		return echo.NewHTTPError(http.StatusNotFound, notFoundErr.Error())
	}

	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		s.Logger.Error("storage error handling request", "op", storageErr.Op, "error", storageErr.Err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	s.Logger.Error("unhandled error handling request", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
