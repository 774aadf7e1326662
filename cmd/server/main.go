package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mindtek/leadchat/config"
	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/handlers"
	"github.com/mindtek/leadchat/internal/auth"
	"github.com/mindtek/leadchat/internal/utils"
	"github.com/mindtek/leadchat/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	store, err := db.NewStore(ctx, cfg.Store, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialise store", "driver", cfg.Store.Driver, "error", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			sugar.Warnw("store close error", "error", err)
		}
	}()

	completer := services.NewOpenAIClient(cfg.OpenAI, sugar)
	chatService := services.NewChatService(store, completer, sugar)
	extractionService := services.NewExtractionService(store, completer, sugar)

	var authService *auth.Service
	if cfg.Admin.PasswordHash != "" {
		authService, err = auth.NewService(cfg.Admin.JWTSecret, cfg.Admin.PasswordHash, cfg.Admin.TokenTTL)
		if err != nil {
			sugar.Fatalw("failed to initialise auth service", "error", err)
		}
	} else {
		sugar.Warn("ADMIN_PASSWORD_HASH not set; dashboard routes are open")
	}

	router := setupRouter(chatService, extractionService, store, authService, sugar)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr, "store_driver", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(chat *services.ChatService, extraction *services.ExtractionService, store db.Store, authService *auth.Service, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), handlers.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	handlers.NewHandler(chat, extraction, store, authService, logger).RegisterRoutes(router)

	return router
}
