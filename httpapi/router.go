package httpapi

import (
	"context"
	"net"
	"net/http"

	goSignIn "github.com/MrEthical07/goSignIn"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Engine is the subset of *goSignIn.Engine the handlers call.
type Engine interface {
	BeginSignIn(ctx context.Context, ref goSignIn.Identity) (goSignIn.Attempt, error)
	SubmitCode(ctx context.Context, ref goSignIn.Identity, code string) (goSignIn.Attempt, error)
	Resend(ctx context.Context, ref goSignIn.Identity) (goSignIn.Attempt, error)
	StepUpRespond(ctx context.Context, ref goSignIn.Identity, result goSignIn.StepUpResult) (goSignIn.Attempt, error)
	BeginBusinessSignIn(ctx context.Context, email, password string) (goSignIn.Attempt, error)
	EnrollBusiness(ctx context.Context, email, password string) (goSignIn.Attempt, error)
	Attempt(ctx context.Context, ref goSignIn.Identity) (goSignIn.Attempt, error)
	Abandon(ctx context.Context, ref goSignIn.Identity) error
	RevokeDevice(ctx context.Context, ref goSignIn.Identity) error
}

// Handlers serves the sign-in routes.
type Handlers struct {
	engine Engine
	logger *zap.Logger
}

// NewHandlers returns handlers for engine. A nil logger discards output.
func NewHandlers(engine Engine, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{engine: engine, logger: logger}
}

// NewRouter returns a router with every sign-in route mounted.
func NewRouter(engine Engine, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	NewHandlers(engine, logger).Register(r)
	return r
}

// Register mounts the routes on r.
func (h *Handlers) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(requestContext)

	v1.HandleFunc("/signin", h.BeginSignIn).Methods(http.MethodPost)
	v1.HandleFunc("/signin", h.GetAttempt).Methods(http.MethodGet)
	v1.HandleFunc("/signin", h.Abandon).Methods(http.MethodDelete)
	v1.HandleFunc("/signin/code", h.SubmitCode).Methods(http.MethodPost)
	v1.HandleFunc("/signin/resend", h.Resend).Methods(http.MethodPost)
	v1.HandleFunc("/signin/stepup", h.StepUp).Methods(http.MethodPost)
	v1.HandleFunc("/signin/business", h.BusinessSignIn).Methods(http.MethodPost)
	v1.HandleFunc("/business/accounts", h.EnrollBusiness).Methods(http.MethodPost)
	v1.HandleFunc("/devices", h.RevokeDevice).Methods(http.MethodDelete)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	}).Methods(http.MethodGet)
}

// requestContext records the caller's address and User-Agent for audit
// events.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := goSignIn.WithClientIP(r.Context(), ip)
		ctx = goSignIn.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
