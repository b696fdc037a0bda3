package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/merkledrop-labs/merkledrop-go/pkg/distributor"
)

// Server exposes a Distributor over HTTP. It is the host-side embedding of
// the claim library, and the place where host policy lives: proof length
// bounding and request rate limiting happen here, not in the core.
//
// Endpoints:
//
//	POST /claim   - verify a proof and pay out
//	GET  /claimed - claimed-status lookup by address
//	GET  /root    - the committed distribution root
//	GET  /health  - liveness probe
type Server struct {
	dist        *distributor.Distributor
	logger      *zap.Logger
	limiter     *rate.Limiter
	maxProofLen int
	httpServer  *http.Server
}

// Config holds server construction parameters.
type Config struct {
	Port int

	// MaxProofLen rejects claim requests whose proof exceeds this many
	// elements. Zero disables the bound.
	MaxProofLen int

	// ClaimRate admits at most this many claim requests per second.
	// Zero disables rate limiting.
	ClaimRate float64

	// Logger is optional; defaults to a no-op logger.
	Logger *zap.Logger
}

// NewServer creates a server for the given distributor.
func NewServer(dist *distributor.Distributor, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		dist:        dist,
		logger:      log,
		maxProofLen: cfg.MaxProofLen,
	}

	if cfg.ClaimRate > 0 {
		burst := int(cfg.ClaimRate)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ClaimRate), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/claim", s.handleClaim)
	mux.HandleFunc("/claimed", s.handleClaimed)
	mux.HandleFunc("/root", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// Handler returns the HTTP handler (for testing).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
