package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hrivera88/campfyr-sub001/internal/auth"
	"github.com/hrivera88/campfyr-sub001/internal/call"
	"github.com/hrivera88/campfyr-sub001/internal/chat"
	"github.com/hrivera88/campfyr-sub001/internal/config"
	"github.com/hrivera88/campfyr-sub001/internal/db"
	"github.com/hrivera88/campfyr-sub001/internal/direct"
	"github.com/hrivera88/campfyr-sub001/internal/ephemeral"
	"github.com/hrivera88/campfyr-sub001/internal/httpapi"
	"github.com/hrivera88/campfyr-sub001/internal/realtime"
	"github.com/hrivera88/campfyr-sub001/internal/user"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	userRepo := user.NewRepository(database.Conn)
	roomRepo := chat.NewRepository(database.Conn)
	directRepo := direct.NewRepository(database.Conn)
	callRepo := call.NewRepository(database.Conn)

	core := realtime.New(
		realtime.Config{PermissiveRelay: cfg.PermissiveRelay},
		realtime.Deps{
			Ephemeral:     ephemeral.NewRedis(redisClient),
			Users:         userRepo,
			Rooms:         roomRepo,
			Conversations: directRepo,
			Calls:         callRepo,
			Logger:        logger,
		},
	)

	authenticator := auth.NewAuthenticator(cfg.JWTSecret)
	authMiddleware := auth.NewMiddleware(authenticator)
	api := httpapi.NewHandler(core, directRepo, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", httpapi.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/ws", core.ServeWS)
		r.Get("/api/rooms/{roomID}/messages", api.RecentMessages)
		r.Post("/api/conversations", api.StartConversation)
	})

	logger.Info("server starting", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
