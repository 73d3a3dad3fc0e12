// Package relay exposes the actioncode façade over HTTP: a thin transport
// wrapper that never holds a private key and keeps all business logic in
// actioncode.Protocol and the packages beneath it. Every request that
// carries a signature the caller already produced is wrapped into a
// trivial SignFn that hands that signature back to the façade.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/actioncodes/protocol-core/actioncode"
	"github.com/actioncodes/protocol-core/actioncode/acerr"
	"github.com/actioncodes/protocol-core/chainadapter/solana"
	"github.com/actioncodes/protocol-core/observability/logging"
	"github.com/actioncodes/protocol-core/types"
)

// Server wires actioncode.Protocol to an HTTP router.
type Server struct {
	protocol *actioncode.Protocol
	metrics  *Metrics
	admin    *AdminAuthenticator
	logger   *slog.Logger
}

// Config collects the dependencies Server needs to build its router.
type Config struct {
	Protocol       *actioncode.Protocol
	AdminJWTSecret string
	Logger         *slog.Logger
}

// NewServer constructs a Server; if cfg.Logger is nil, slog.Default() is used
// instead, which is logging.Setup's JSON logger once Setup has run and the
// standard library's text logger otherwise.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		protocol: cfg.Protocol,
		metrics:  NewMetrics(),
		admin:    NewAdminAuthenticator(cfg.AdminJWTSecret),
		logger:   logger,
	}
}

// Router builds the chi router exposing every relay route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1/codes", func(cr chi.Router) {
		cr.Use(s.metrics.Middleware("codes"))
		cr.Post("/generate", s.handleGenerate)
		cr.Post("/validate", s.handleValidate)
		cr.Post("/revoke", s.handleRevoke)
	})

	r.Route("/v1/tx", func(tr chi.Router) {
		tr.Use(s.metrics.Middleware("tx"))
		tr.Post("/bind", s.handleBind)
		tr.Post("/verify", s.handleVerify)
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(s.metrics.Middleware("admin"))
		ar.Use(s.admin.Middleware)
		ar.Post("/adapters", s.handleRegisterAdapter)
	})

	return r
}

// MetricsHandler exposes the same Prometheus registry /metrics serves on the
// main router, for a caller that wants to mount it on a separate listener
// (cmd/actioncodesd's dedicated metrics address, when configured distinctly
// from the main listen address).
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type generateRequest struct {
	Pubkey      string      `json:"pubkey"`
	Chain       types.Chain `json:"chain"`
	WindowStart int64       `json:"windowStart"`
	Signature   string      `json:"signature"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	code, err := s.protocol.GenerateWithWallet(r.Context(), req.Pubkey, req.Chain, req.WindowStart, passthroughSignFn(req.Signature))
	if writeError(w, s.logger, r, req.Chain, err) {
		return
	}
	writeJSON(w, http.StatusOK, code)
}

type validateRequest struct {
	Code types.ActionCode `json:"code"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.protocol.Validate(req.Code)
	if writeError(w, s.logger, r, req.Code.Chain, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

type revokeRequest struct {
	Code      types.ActionCode `json:"code"`
	Signature string           `json:"signature"`
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sig, err := s.protocol.Revoke(r.Context(), req.Code, passthroughSignFn(req.Signature))
	if writeError(w, s.logger, r, req.Code.Chain, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"revokeSignature": sig})
}

// bindRequest and verifyRequest decode into solana.Transaction rather than
// the chainadapter.Transaction interface: the wire body has to name a
// concrete shape, and solana is the only adapter this relay ships wired
// (cmd/actioncodesd's main.go). A second adapter would need its own decode
// path here, the same way handleRegisterAdapter only recognizes chains wired
// at process startup.
type bindRequest struct {
	Chain       types.Chain        `json:"chain"`
	Transaction solana.Transaction `json:"transaction"`
	Code        types.ActionCode   `json:"code"`
	Issuer      string             `json:"issuer"`
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := s.protocol.BindTransaction(r.Context(), req.Chain, req.Transaction, req.Code, req.Issuer)
	if writeError(w, s.logger, r, req.Chain, err) {
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type verifyRequest struct {
	Chain       types.Chain        `json:"chain"`
	Transaction solana.Transaction `json:"transaction"`
	Code        types.ActionCode   `json:"code"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.protocol.VerifyTransaction(r.Context(), req.Chain, req.Transaction, req.Code)
	if writeError(w, s.logger, r, req.Chain, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

type registerAdapterRequest struct {
	Chain types.Chain `json:"chain"`
}

// handleRegisterAdapter only confirms a chain is among the relay's
// configured set; it never accepts adapter code over the wire. Actual
// adapter instances are wired at process startup (main.go) - this route's
// purpose is operational visibility and future extension, not dynamic
// code loading.
func (s *Server) handleRegisterAdapter(w http.ResponseWriter, r *http.Request) {
	var req registerAdapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.protocol.GetAdapter(req.Chain); err != nil {
		writeError(w, s.logger, r, req.Chain, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chain": string(req.Chain), "status": "registered"})
}

func passthroughSignFn(sig string) actioncode.SignFn {
	return func(ctx context.Context, message []byte, chain types.Chain) (string, error) {
		return sig, nil
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON error body if non-nil and returns true.
// acerr kinds map to 4xx; anything else is an internal 500. Error detail
// fields are safe to return verbatim - acerr.Error never carries signature
// material (§7).
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, chain types.Chain, err error) bool {
	if err == nil {
		return false
	}
	status := http.StatusInternalServerError
	kind := "INTERNAL_ERROR"
	if acErr, ok := err.(*acerr.Error); ok {
		status = http.StatusBadRequest
		kind = string(acErr.Kind)
	}
	logging.WithChain(logger, chain).Warn("relay request failed",
		logging.MaskField("error", err.Error()),
		slog.String("requestId", requestIDFrom(r.Context())),
	)
	writeJSON(w, status, map[string]string{"kind": kind, "detail": err.Error()})
	return true
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
