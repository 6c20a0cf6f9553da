package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/airewrite/antigravity-gateway/internal/agent"
	"github.com/airewrite/antigravity-gateway/internal/api/handlers"
	"github.com/airewrite/antigravity-gateway/internal/api/middleware"
	"github.com/airewrite/antigravity-gateway/internal/auth/google"
	"github.com/airewrite/antigravity-gateway/internal/auth/token"
	"github.com/airewrite/antigravity-gateway/internal/config"
	"github.com/airewrite/antigravity-gateway/internal/db"
	"github.com/airewrite/antigravity-gateway/internal/logging"
	"github.com/airewrite/antigravity-gateway/internal/monitor"
	"github.com/airewrite/antigravity-gateway/internal/router"
	"github.com/airewrite/antigravity-gateway/internal/store"
	"github.com/airewrite/antigravity-gateway/internal/upstream"
	"github.com/airewrite/antigravity-gateway/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Verbose {
		os.Setenv("GATEWAY_VERBOSE", "1")
	}

	// Account pool
	st, err := store.Open(cfg.AccountsDir)
	if err != nil {
		log.Fatalf("Failed to open account store: %v", err)
	}
	log.Printf("👥 Loaded %d account(s) from %s", len(st.IDs()), cfg.AccountsDir)

	// Usage monitor database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	mon := monitor.New(database)

	// Upstream client and token manager
	upstreamClient := upstream.NewClient()
	oauthCfg := google.OAuthConfig(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, callbackURL(cfg.ListenAddr))
	tokenManager := token.NewManager(st, upstreamClient, oauthCfg)

	// Request router and tool loop
	rt := router.New(st, tokenManager, upstreamClient)
	loop := agent.NewLoop(rt, agent.NewToolbox())

	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// OAuth flow (no auth, the browser lands here)
	r.Get("/auth/google/login", handlers.LoginHandler(oauthCfg))
	r.Get("/auth/google/callback", handlers.CallbackHandler(oauthCfg, tokenManager))

	// Management API
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))
		r.Get("/accounts", handlers.AccountsHandler(st))
		r.Post("/accounts", handlers.RegisterAccountHandler(tokenManager))
		r.Post("/login", handlers.RegisterAccountHandler(tokenManager))
		r.Delete("/accounts/{id}", handlers.DeleteAccountHandler(st))
		r.Post("/accounts/refresh", handlers.RefreshPoolHandler(st, tokenManager))
		r.Post("/accounts/{id}/refresh", handlers.RefreshQuotaHandler(tokenManager))

		r.Get("/discovery/scan", handlers.ScanCredentialsHandler())
		r.Post("/discovery/import", handlers.ImportCredentialsHandler(tokenManager))

		r.Get("/monitor/logs", handlers.MonitorLogsHandler(mon))
		r.Get("/monitor/stats", handlers.MonitorStatsHandler(mon))
		r.Post("/monitor/clear", handlers.MonitorClearHandler(mon))
	})

	// Chat-message compatible API
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))
		r.Post("/chat/completions", handlers.OpenAIChatHandler(rt, loop, mon))
		r.Get("/models", handlers.OpenAIModelsHandler(st))
		r.Post("/agent/smart", handlers.SmartAgentHandler(rt, loop, mon))
	})

	// Content-list compatible API
	r.Route("/v1beta/models", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))
		r.Get("/", handlers.GenAIModelsHandler(st))
		r.Get("/{model}", handlers.GenAIModelHandler(st))
		r.Post("/{model}:generateContent", handlers.GenAIHandler(rt, mon))
		r.Post("/{model}:streamGenerateContent", handlers.GenAIStreamHandler(rt, mon))
	})

	log.Printf("🚀 Antigravity gateway %s starting on %s", version.Version, cfg.ListenAddr)
	log.Printf("🔌 Chat API:    http://%s/v1", displayHost(cfg.ListenAddr))
	log.Printf("🔌 GenAI API:   http://%s/v1beta", displayHost(cfg.ListenAddr))
	log.Printf("🔑 OAuth login: http://%s/auth/google/login", displayHost(cfg.ListenAddr))

	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// callbackURL derives the OAuth redirect from the listen address.
func callbackURL(addr string) string {
	return "http://" + displayHost(addr) + "/auth/google/callback"
}

func displayHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	if host, port, found := strings.Cut(addr, ":"); found && host == "0.0.0.0" {
		return "localhost:" + port
	}
	return addr
}
