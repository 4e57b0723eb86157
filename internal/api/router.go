package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/api/handlers"
	"github.com/TWRT/smarttask/internal/auth"
	"github.com/TWRT/smarttask/internal/metrics"
	"github.com/TWRT/smarttask/internal/repository"
	"github.com/TWRT/smarttask/internal/storage"
)

// Options carries what SetupRouter needs beyond the database.
type Options struct {
	Objects storage.ObjectStore

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	Bucket            string
	MaxUploadBytes    int64
	AuthRatePerMinute float64
	// TrustProxyHeaders keys the auth rate limit on X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that overwrites them.
	TrustProxyHeaders bool

	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func SetupRouter(db *sql.DB, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	authService := auth.NewService(
		userRepo,
		tokenRepo,
		auth.NewPasswordHasher(opts.BcryptCost),
		auth.NewTokenManager(opts.JWTSecret, opts.TokenTTL),
		logger,
	)

	authHandler := handlers.NewAuthHandler(authService, logger)
	taskHandler := handlers.NewTaskHandler(taskRepo, logger)
	storageHandler := handlers.NewStorageHandler(opts.Objects, opts.Bucket, opts.MaxUploadBytes, logger, opts.Metrics)

	authed := requireAuth(authService, logger)
	limiter := newIPRateLimiter(opts.AuthRatePerMinute, opts.TrustProxyHeaders)

	mux.HandleFunc("POST /auth/v1/signup", limiter.wrap(logger, authHandler.SignUp))
	mux.HandleFunc("POST /auth/v1/token", limiter.wrap(logger, authHandler.Token))
	mux.HandleFunc("POST /auth/v1/logout", authed(authHandler.Logout))
	mux.HandleFunc("GET /auth/v1/user", authed(authHandler.User))

	mux.HandleFunc("GET /rest/v1/tasks", authed(taskHandler.List))
	mux.HandleFunc("POST /rest/v1/tasks", authed(taskHandler.Upsert))
	mux.HandleFunc("DELETE /rest/v1/tasks", authed(taskHandler.Delete))

	mux.HandleFunc("POST /storage/v1/object/{bucket}/{path...}", authed(storageHandler.Upload))
	mux.HandleFunc("GET /storage/v1/object/public/{bucket}/{path...}", storageHandler.Public)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return observe(logger, opts.Metrics, mux)
}
