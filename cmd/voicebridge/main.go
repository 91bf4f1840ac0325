package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/agriagents/voicebridge/internal/config"
	"github.com/agriagents/voicebridge/internal/httpapi"
	"github.com/agriagents/voicebridge/internal/observability"
	"github.com/agriagents/voicebridge/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics("voicebridge")

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("aws config load failed: %v", err)
	}
	bedrockClient := bedrockruntime.NewFromConfig(awsCfg)
	llmAdapter := voice.NewBedrockLLMAdapter(bedrockClient, cfg.BedrockModelID)

	sttProvider := voice.NewSarvamSTTProvider(voice.SarvamSTTConfig{APIKey: cfg.SarvamAPIKey})
	ttsProvider := voice.NewSarvamTTSProvider(voice.SarvamTTSConfig{APIKey: cfg.SarvamAPIKey})
	ttsQueue := voice.NewTTSQueue(ttsProvider)

	orchestrator := voice.NewOrchestrator(sttProvider, llmAdapter, ttsQueue, cfg.RecordingDir, metrics)

	api := httpapi.New(cfg, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
