package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"calbook/internal/config"
	"calbook/internal/metrics"
	"calbook/internal/service"

	"github.com/rs/zerolog"
)

// Server exposes the HTTP API: an unauthenticated public booking surface
// under /api/v1/public and a key-guarded admin surface under
// /api/v1/admin.
type Server struct {
	cfg       config.APIConfig
	bookings  *service.BookingService
	types     *service.EventTypeService
	schedules *service.ScheduleService
	exporter  Exporter
	logger    *zerolog.Logger
	server    *http.Server
}

// Exporter writes the admin booking report. Nil disables the endpoint.
type Exporter interface {
	ExportBookings(ctx context.Context, from, to time.Time) (string, error)
}

func NewServer(cfg config.APIConfig, bookings *service.BookingService, types *service.EventTypeService, schedules *service.ScheduleService, exporter Exporter, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		bookings:  bookings,
		types:     types,
		schedules: schedules,
		exporter:  exporter,
		logger:    logger,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

// Handler builds the full route tree. Exposed separately so tests can
// drive it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	auth := NewHTTPAuth(s.cfg)

	public := http.NewServeMux()
	public.HandleFunc("GET /api/v1/public/event-types/{slug}", s.handlePublicEventType)
	public.HandleFunc("GET /api/v1/public/event-types/{slug}/slots", s.handlePublicSlots)
	public.HandleFunc("GET /api/v1/public/event-types/{slug}/dates", s.handlePublicDates)
	public.HandleFunc("POST /api/v1/public/bookings", s.handlePublicReserve)
	public.HandleFunc("GET /api/v1/public/bookings/{uid}", s.handlePublicBooking)
	public.HandleFunc("POST /api/v1/public/bookings/{uid}/cancel", s.handlePublicCancel)
	public.HandleFunc("POST /api/v1/public/bookings/{uid}/reschedule", s.handlePublicReschedule)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/v1/admin/event-types", s.handleListEventTypes)
	admin.HandleFunc("POST /api/v1/admin/event-types", s.handleCreateEventType)
	admin.HandleFunc("GET /api/v1/admin/event-types/{id}", s.handleGetEventType)
	admin.HandleFunc("PUT /api/v1/admin/event-types/{id}", s.handleUpdateEventType)
	admin.HandleFunc("DELETE /api/v1/admin/event-types/{id}", s.handleDeleteEventType)

	admin.HandleFunc("GET /api/v1/admin/schedules", s.handleListSchedules)
	admin.HandleFunc("POST /api/v1/admin/schedules", s.handleCreateSchedule)
	admin.HandleFunc("GET /api/v1/admin/schedules/{id}", s.handleGetSchedule)
	admin.HandleFunc("PUT /api/v1/admin/schedules/{id}", s.handleUpdateSchedule)
	admin.HandleFunc("DELETE /api/v1/admin/schedules/{id}", s.handleDeleteSchedule)
	admin.HandleFunc("POST /api/v1/admin/schedules/{id}/default", s.handleSetDefaultSchedule)
	admin.HandleFunc("POST /api/v1/admin/schedules/{id}/overrides", s.handleAddOverride)
	admin.HandleFunc("DELETE /api/v1/admin/schedules/{id}/overrides/{overrideID}", s.handleDeleteOverride)

	admin.HandleFunc("GET /api/v1/admin/bookings", s.handleListBookings)
	admin.HandleFunc("GET /api/v1/admin/bookings/stats", s.handleBookingStats)
	admin.HandleFunc("GET /api/v1/admin/bookings/{id}", s.handleGetBooking)
	admin.HandleFunc("POST /api/v1/admin/bookings/{id}/cancel", s.handleAdminCancel)
	admin.HandleFunc("POST /api/v1/admin/bookings/{id}/reschedule", s.handleAdminReschedule)
	admin.HandleFunc("POST /api/v1/admin/bookings/export", s.handleExport)

	root := http.NewServeMux()
	root.Handle("/api/v1/public/", auth.WrapPublic(public))
	root.Handle("/api/v1/admin/", auth.Wrap(admin))

	return s.loggingMiddleware(root)
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// endpointLabel keeps metric cardinality bounded by cutting ids and
// slugs off the path.
func endpointLabel(r *http.Request) string {
	path := r.URL.Path
	count := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			count++
			if count == 5 {
				path = path[:i]
				break
			}
		}
	}
	return r.Method + " " + path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
