package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"hisab/internal/auth"
	"hisab/internal/log"
	"hisab/internal/middleware/ratelimit"
	"hisab/internal/middleware/security"
	"hisab/internal/middleware/trace"
	"hisab/internal/views"
	appweb "hisab/web"
)

const loginPath = "/auth"

// Ledger is the data access facade the handlers call.
type Ledger interface {
	views.Ledger
	SettleDebt(ctx context.Context, id string) error
	DeleteTransaction(ctx context.Context, id string) error
	DeleteDebt(ctx context.Context, id string) error
}

// Authenticator signs users in and out and resolves the session cookie.
type Authenticator interface {
	auth.Provider
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (auth.Session, error)
	SetCookie(w http.ResponseWriter, sess auth.Session)
	ClearCookie(w http.ResponseWriter)
	Middleware(next http.Handler) http.Handler
}

// Pinger reports whether the data provider is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server.
type Deps struct {
	Ledger Ledger
	Auth   Authenticator
	Views  *views.Registry
	Store  Pinger
	Logger *log.Logger

	RateLimitPerMinute int
	TrustedProxies     []string
	ForceHSTS          bool
}

type appMetrics struct {
	transactionsCreated atomic.Int64
	debtsCreated        atomic.Int64
	debtsSettled        atomic.Int64
	recordsDeleted      atomic.Int64
	uptime              time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    Ledger
	auth      Authenticator
	views     *views.Registry
	store     Pinger
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, d Deps) *Server {
	return newServer(addr, d, appweb.TemplatesFS, appweb.StaticFS)
}

func newServer(addr string, d Deps, templatesFS, staticFS fs.FS) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		ledger:     d.Ledger,
		auth:       d.Auth,
		views:      d.Views,
		store:      d.Store,
		logger:     logger,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
		detector:   security.NewDetector(),
		appMetrics: &appMetrics{uptime: time.Now()},
	}
	for _, cidr := range d.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	// Parse embedded templates at startup.
	t, err := parseTemplates(templatesFS)
	if err != nil {
		logger.Warn("Failed parsing templates",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(staticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.Handle("GET /{$}", s.guard(s.handleIndex))

	mux.HandleFunc("GET /auth", s.handleAuthPage)
	mux.HandleFunc("POST /auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// UI partials
	mux.Handle("GET /ui/dashboard", s.guard(s.handleDashboard))
	mux.Handle("GET /ui/transactions", s.guard(s.handleTransactionList))
	mux.Handle("GET /ui/debts", s.guard(s.handleDebtList))

	mux.Handle("POST /transactions", s.guard(s.handleCreateTransaction))
	mux.Handle("DELETE /transactions/{id}", s.guard(s.handleDeleteTransaction))
	mux.Handle("POST /transactions/{id}", s.guard(s.handleDeleteTransaction))

	mux.Handle("POST /debts", s.guard(s.handleCreateDebt))
	mux.Handle("DELETE /debts/{id}", s.guard(s.handleDeleteDebt))
	mux.Handle("POST /debts/{id}", s.guard(s.handleDeleteDebt))
	mux.Handle("POST /debts/{id}/settle", s.guard(s.handleSettleDebt))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.DefaultHeadersConfig()
	headers.ForceHSTS = d.ForceHSTS

	var handler http.Handler = mux
	handler = s.auth.Middleware(handler)
	handler = s.withRateLimit(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// guard sends anonymous requests to the sign-in page.
func (s *Server) guard(h http.HandlerFunc) http.Handler {
	return auth.Require(s.auth, loginPath, h)
}

// withRateLimit applies the per-client limit to state-changing requests.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mutating(r) {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	const msg = "Too many requests, please try again later"
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError(msg).TriggerErrorNotification(msg).Write(w)
}

// page returns the view state of the signed-in user. Only called behind guard.
func (s *Server) page(r *http.Request) (auth.User, *views.Page) {
	user, _ := s.auth.CurrentUser(r.Context())
	return user, s.views.For(user.ID)
}

// render executes the named template into b and writes it.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	if err := b.BodyTemplate(s.templates, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		InternalServerError("Failed to render page").Write(w)
		return
	}
	b.Write(w)
}

// done finishes a successful mutation. Plain form posts are sent back to the
// page; htmx requests get b with its triggers.
func (s *Server) done(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	b.Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
