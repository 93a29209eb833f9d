package api

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/ledger"
	"courtbook/internal/models"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

//go:embed openapi.json
var openapiDocument []byte

// SlotService is the ledger as seen by the HTTP layer.
type SlotService interface {
	ListSlots(ctx context.Context) ([]models.Slot, error)
	BookSlot(ctx context.Context, slotID, customerName string) (models.Slot, error)
	Availability(ctx context.Context) (ledger.Summary, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPServer exposes the slot ledger over JSON HTTP.
type HTTPServer struct {
	slots       SlotService
	store       Pinger
	cfg         *config.Config
	logger      *zerolog.Logger
	bookLimiter *rate.Limiter
	server      *http.Server
}

func NewHTTPServer(cfg *config.Config, slots SlotService, store Pinger, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HTTPServer{
		slots:       slots,
		store:       store,
		cfg:         cfg,
		logger:      logger,
		bookLimiter: rate.NewLimiter(rate.Limit(cfg.Server.BookRatePerSecond), cfg.Server.BookBurst),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	return s
}

// Handler builds the routed handler with CORS, recovery and request logging.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	apiRouter.HandleFunc("/slots", s.handleSlots).Methods(http.MethodGet)
	apiRouter.HandleFunc("/book", s.handleBook).Methods(http.MethodPost)
	apiRouter.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodGet)
	apiRouter.HandleFunc("/export.xlsx", s.handleExport).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CORS(s.corsOptions()...)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	h = handlers.ProxyHeaders(h)
	return s.requestLogger(h)
}

func (s *HTTPServer) corsOptions() []handlers.CORSOption {
	origins := s.cfg.AllowedOrigins()
	if s.cfg.CORS.AllowAll {
		origins = []string{"*"}
	}
	return []handlers.CORSOption{
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
		handlers.AllowCredentials(),
	}
}

// Start serves in the background; errors other than a clean shutdown are logged.
func (s *HTTPServer) Start() {
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("API running")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type recoveryLogger struct {
	logger *zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
