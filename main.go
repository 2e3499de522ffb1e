package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/debemdeboas/quill/internal/auth"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/editor"
	"github.com/debemdeboas/quill/internal/logger"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/posts"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/routes"
	"github.com/debemdeboas/quill/internal/sse"
	"github.com/debemdeboas/quill/internal/storage"
	"github.com/debemdeboas/quill/internal/submit"
	"github.com/debemdeboas/quill/internal/util/compression"
)

const (
	defaultConfigPath = "config.yaml"
	refreshInterval   = 30 * time.Second
	sweepInterval     = 5 * time.Minute
)

// app holds everything the HTTP surface is built from.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	posts    *repository.DBPostRepository
	files    storage.FileStore
	auth     auth.AuthProvider
	sessions *editor.Registry
	clients  *sse.SSEClients
}

func main() {
	envErr := godotenv.Load()

	bootLog := logger.New("info")
	config.SetLogger(logger.Component(bootLog, "config"))
	if envErr != nil {
		bootLog.Debug().Err(envErr).Msg("No .env file loaded")
	}

	configPath := os.Getenv("QUILL_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if err := config.LoadConfig(configPath); err != nil {
		bootLog.Fatal().Err(err).Str("path", configPath).Msg("Invalid configuration")
	}
	cfg := config.AppConfig

	log := logger.New(cfg.Logging.Level)
	setLoggers(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDb(ctx); err != nil {
		log.Fatal().Err(err).Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	a, err := newApp(ctx, cfg, log, database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	go a.posts.Watch(ctx, refreshInterval)
	if a.sessions != nil {
		a.sessions.StartSweeper(ctx, sweepInterval, cfg.Features.Editor.SessionTTL)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("site", cfg.Site.Name).Msg("Listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(logger.Component(l, "config"))
	db.SetLogger(logger.Component(l, "db"))
	repository.SetLogger(logger.Component(l, "repository"))
	storage.SetLogger(logger.Component(l, "storage"))
	auth.SetLogger(logger.Component(l, "auth"))
	submit.SetLogger(logger.Component(l, "submit"))
	editor.SetLogger(logger.Component(l, "editor"))
	posts.SetLogger(logger.Component(l, "posts"))
	sse.SetLogger(logger.Component(l, "sse"))
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, database db.Db) (*app, error) {
	compressor, err := compression.ByName(cfg.Database.Compression)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		posts:   repository.NewDBPostRepository(database, compressor),
		clients: sse.NewSSEClients(),
	}
	if err := a.posts.Init(ctx); err != nil {
		return nil, fmt.Errorf("error loading posts: %w", err)
	}
	a.posts.SetReloadNotifier(a.clients.NotifyReload)

	if a.files, err = newFileStore(ctx, cfg.Storage); err != nil {
		return nil, err
	}

	if cfg.Features.Authentication.Enabled {
		if a.auth, err = newAuthProvider(cfg.Features.Authentication, database); err != nil {
			return nil, fmt.Errorf(config.ErrCreateProviderFmt, err)
		}
	}

	if cfg.Features.Editor.Enabled && a.auth != nil {
		a.sessions = editor.NewRegistry(editor.Deps{
			Files:   a.files,
			Posts:   a.posts,
			Session: a.auth,
		})
	} else if cfg.Features.Editor.Enabled {
		log.Warn().Msg("Editor needs authentication, leaving it disabled")
	}
	return a, nil
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	switch cfg.Backend {
	case "s3":
		pathStyle, _ := strconv.ParseBool(os.Getenv("S3_USE_PATH_STYLE"))
		return storage.NewS3FileStore(ctx, storage.S3Options{
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("S3_SECRET_ACCESS_KEY"),
			BaseEndpoint:    os.Getenv("S3_ENDPOINT"),
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			PreviewTTL:      cfg.PreviewTTL,
			UsePathStyle:    pathStyle,
		})
	default:
		return storage.NewMemoryFileStore(), nil
	}
}

func newAuthProvider(cfg config.AuthConfig, database db.Db) (auth.AuthProvider, error) {
	switch cfg.Type {
	case "clerk":
		return auth.NewClerkAuthProvider(os.Getenv("CLERK_API"), database), nil
	default:
		return auth.NewEd25519AuthProvider(os.Getenv("ED25519_PUBKEY"), "Authorization", model.UserID("admin"))
	}
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, serveRobots)
	mux.Handle(routes.SSEPath, a.clients)

	posts.NewHandler(a.posts, a.files).Register(mux)
	if mem, ok := a.files.(*storage.MemoryFileStore); ok {
		mux.Handle(routes.FileServe, mem)
	}

	if a.auth != nil {
		mux.HandleFunc(routes.WebhookUser, a.auth.HandleWebhookUser)
		if ed, ok := a.auth.(*auth.Ed25519AuthProvider); ok {
			auth.RegisterEd25519AuthRoutes(mux, ed)
		}
	}

	if a.sessions != nil {
		editor.NewHandler(a.sessions, a.posts, a.files, a.auth, int64(a.cfg.Features.Editor.MaxImageBytes)).Register(mux)
	}

	var h http.Handler = secureHeaders(mux)
	if a.auth != nil {
		h = a.auth.WithHeaderAuthorization()(h)
	}
	h = cacheIt(h)

	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	return hlog.NewHandler(a.log)(h)
}

func serveRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("User-agent: *\nDisallow:"))
}

func cacheIt(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")
		h.ServeHTTP(w, r)
	})
}

// secureHeaders skips robots.txt.
func secureHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes.RobotsPath {
			w.Header().Set("X-Frame-Options", "deny")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
		}
		h.ServeHTTP(w, r)
	})
}
