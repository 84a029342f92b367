package web

import (
	"crypto/rand"
	"log"
	"net/http"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/email"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/http/middleware"
	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/executor"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/config"
)

// Stores holds all storage dependencies.
type Stores struct {
	RegistrationStore registrationStore.Store
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// Global email sender instance (set by NewMux)
var emailSender email.Sender

// Global background executor for confirmation mail dispatch (set by NewMux)
var jobExecutor executor.Executor

// Application configuration (set by NewMux)
var appConfig config.Config

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// NewMux wires HTTP handlers for the app.
func NewMux(cfg config.Config, staticDir string, s *Stores, sender email.Sender, exec executor.Executor) http.Handler {
	appConfig = cfg
	stores = s
	emailSender = sender
	jobExecutor = exec
	sessions = middleware.NewSessionStore()
	middleware.SecureCookies = cfg.Env == "production"

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	registerRoutes(mux)

	csrfKey := cfg.CSRFKey
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			log.Fatalf("failed to generate CSRF key: %v", err)
		}
		log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set ZELTLAGER_CSRF_KEY for production.")
	}

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: RateLimit -> Sessions -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey),
		middleware.Sessions(sessions),
		middleware.RateLimit(limiter),
	)
}
