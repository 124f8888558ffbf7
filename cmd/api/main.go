package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvergara/docuchat/internal/config"
	"github.com/dvergara/docuchat/internal/extract"
	"github.com/dvergara/docuchat/internal/handler"
	"github.com/dvergara/docuchat/internal/handler/events"
	"github.com/dvergara/docuchat/internal/service/ai"
	"github.com/dvergara/docuchat/internal/service/conversation"
	"github.com/dvergara/docuchat/internal/session"
	"github.com/dvergara/docuchat/internal/store"
	"github.com/dvergara/docuchat/internal/upload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatStore := store.New(cfg.Paths.DataRoot)
	sess := session.New(cfg.Session.Username)
	uploads := upload.NewManager(cfg.Paths.UploadsDir)
	extractor := extract.New(cfg.Paths.Tesseract)
	hub := events.NewHub()

	var completer conversation.Completer
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize completion backend: %v", err)
		} else {
			completer = aiSvc
			log.Printf("completion backend ready, model=%s", cfg.AI.Model)
		}
	} else {
		log.Println("OPENAI_API_KEY not set, messages will fail until configured")
	}

	svc := conversation.NewService(sess, chatStore, completer, extractor, uploads, hub, conversation.Options{
		HistoryWindow: cfg.AI.HistoryWindow,
		ContextLimit:  cfg.AI.ContextLimit,
	})

	if err := svc.RefreshSavedChats(); err != nil {
		log.Printf("warning: failed to list saved chats: %v", err)
	}

	router := handler.NewRouter(svc, hub)
	startServer(ctx, cfg.Server, router)
}

// configPath resolves the optional YAML config file.
func configPath() string {
	if path := os.Getenv("CHAT_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("docuchat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
