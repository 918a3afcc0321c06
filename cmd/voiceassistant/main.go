// Command voiceassistant wires the core runtime (C1-C12) to real backends
// and runs the pipeline until interrupted. It is the analogue of the
// teacher's cmd/agent/main.go: provider selection by environment variable,
// a malgo-backed duplex audio device, and signal-driven shutdown — but
// driving internal/pipeline.Orchestrator's explicit state machine instead
// of the teacher's always-on ManagedStream.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
	"github.com/lokutor-ai/voiceassistant/internal/config"
	"github.com/lokutor-ai/voiceassistant/internal/feature"
	"github.com/lokutor-ai/voiceassistant/internal/feature/builtin"
	"github.com/lokutor-ai/voiceassistant/internal/llmport"
	"github.com/lokutor-ai/voiceassistant/internal/obslog"
	"github.com/lokutor-ai/voiceassistant/internal/pipeline"
	"github.com/lokutor-ai/voiceassistant/internal/router"
	"github.com/lokutor-ai/voiceassistant/internal/stt"
	"github.com/lokutor-ai/voiceassistant/internal/telemetry"
	"github.com/lokutor-ai/voiceassistant/internal/tts"
	"github.com/lokutor-ai/voiceassistant/internal/vad"
	"github.com/lokutor-ai/voiceassistant/internal/wake"
)

func main() {
	cfg := config.Load("")

	logger, err := obslog.NewZapLogger()
	if err != nil {
		log.Fatalf("voiceassistant: logger init: %v", err)
	}
	defer logger.Sync()

	sttProvider, err := buildSTT(cfg, logger)
	if err != nil {
		logger.Error("stt provider init failed", "error", err)
		os.Exit(1)
	}

	history := llmport.NewHistory(
		cfg.Int(config.KeyLLMMaxHistory, 20),
		cfg.Duration(config.KeyLLMHistoryTTL, 30*time.Minute),
	)
	llmProvider, err := buildLLM(cfg, history, logger)
	if err != nil {
		logger.Error("llm provider init failed", "error", err)
		os.Exit(1)
	}

	ttsProvider, err := buildTTS(cfg, logger)
	if err != nil {
		logger.Error("tts provider init failed", "error", err)
		os.Exit(1)
	}

	audio, err := audioio.NewMalgoDevice(logger)
	if err != nil {
		logger.Error("audio device init failed", "error", err)
		os.Exit(1)
	}

	// Both gates are RMS-over-normalized-[0,1]-samples thresholds (see
	// internal/wake.rms / internal/vad.rms), not the raw-int16 RMS scale
	// spec.md §9's illustrative "500 RMS" default refers to. 0.02-0.1 is
	// the teacher's own scale for this (cmd/agent/main.go's VAD threshold
	// of 0.02) and what internal/vad's tests exercise.
	wakeDetector := wake.NewEnergyGatedDetector(
		cfg.Float(config.KeyWakeThreshold, 0.02),
		cfg.Int(config.KeyWakeMinRunChunks, 3),
	)

	vadRec := vad.NewRecorder(vad.Params{
		SilenceThreshold:     cfg.Float(config.KeyVADSilenceThreshold, 0.02),
		SilenceDurationS:     cfg.Duration(config.KeyVADSilenceDuration, 1200*time.Millisecond).Seconds(),
		MinDurationS:         cfg.Duration(config.KeyVADMinDuration, 1*time.Second).Seconds(),
		MaxDurationS:         cfg.Duration(config.KeyVADMaxDuration, 15*time.Second).Seconds(),
		SpeechChunksRequired: cfg.Int(config.KeyVADSpeechChunksRequired, 3),
	})

	registry := feature.NewRegistry(
		builtin.NewTimeFeature(),
		builtin.NewRepeatFeature(),
	)

	r := router.New(registry, llmProvider, cfg.Bool(config.KeyIntentRecoveryEnabled, true), logger)

	dbPath := cfg.Get(config.KeyTelemetryDBPath, "voiceassistant.db")
	maxSize := int64(cfg.Int(config.KeyTelemetryMaxSizeBytes, 200*1024*1024))
	store, err := telemetry.Open(dbPath, maxSize, logger)
	if err != nil {
		logger.Error("telemetry store init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cache *pipeline.PromptCache
	if cfg.Bool(config.KeyVoiceWakeFeedback, true) {
		cache = pipeline.NewPromptCache(ctx, ttsProvider, []string{
			"Mm-hmm?",
			"I'm listening.",
			"Go ahead.",
			"Yes?",
		}, logger)
	}

	orch := pipeline.New(audio, wakeDetector, vadRec, sttProvider, ttsProvider, r, store, cache, cfg, logger)
	defer orch.Close()
	if repeatFeature, ok := registry.Lookup("repeat"); ok {
		if observer, ok := repeatFeature.(*builtin.RepeatFeature); ok {
			orch.SetExchangeObserver(func(ex telemetry.Exchange) {
				if ex.ResponseText != "" {
					observer.Observe(ex.ResponseText)
				}
			})
		}
	}

	web, err := telemetry.NewWebServer(dbPath, cfg.Get(config.KeyTelemetryWebAddr, ":8088"), logger)
	if err != nil {
		logger.Error("telemetry web init failed", "error", err)
	} else {
		go web.Serve()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = web.Shutdown(shutdownCtx)
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		orch.Stop()
		cancel()
	}()

	logger.Info("voiceassistant started", "wake_model", wakeDetector.Name())
	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("pipeline exited with error", "error", err)
	}
	logger.Info("voiceassistant stopped")
}

func buildSTT(cfg config.Config, logger obslog.Logger) (stt.Provider, error) {
	switch cfg.Get(config.KeySTTProvider, "groq") {
	case "openai":
		return stt.NewOpenAISTT(cfg.Get(config.KeyOpenAIAPIKey, ""), "whisper-1", "en", ""), nil
	case "deepgram":
		return stt.NewDeepgramSTT(cfg.Get(config.KeyDeepgramAPIKey, ""), "en"), nil
	case "assemblyai":
		return stt.NewAssemblyAISTT(cfg.Get(config.KeyAssemblyAIAPIKey, ""), "en"), nil
	default:
		return stt.NewGroqSTT(cfg.Get(config.KeyGroqAPIKey, ""), "whisper-large-v3-turbo", "en"), nil
	}
}

func buildLLM(cfg config.Config, history *llmport.History, logger obslog.Logger) (llmport.Provider, error) {
	system := "You are a helpful and concise voice assistant. Use short sentences suitable for speech."
	switch cfg.Get(config.KeyLLMProvider, "groq") {
	case "openai":
		return llmport.NewOpenAIProvider(cfg.Get(config.KeyOpenAIAPIKey, ""), "gpt-4o", system, "", history, logger), nil
	case "anthropic":
		return llmport.NewAnthropicProvider(cfg.Get(config.KeyAnthropicAPIKey, ""), "claude-3-5-sonnet-20241022", system, history, logger), nil
	default:
		return llmport.NewGroqProvider(cfg.Get(config.KeyGroqAPIKey, ""), "", system, history, logger), nil
	}
}

func buildTTS(cfg config.Config, logger obslog.Logger) (tts.Provider, error) {
	switch cfg.Get(config.KeyTTSProvider, "lokutor") {
	case "openai":
		return tts.NewOpenAITTS(cfg.Get(config.KeyOpenAIAPIKey, ""), "tts-1", "alloy"), nil
	default:
		return tts.NewLokutorTTS(cfg.Get(config.KeyLokutorAPIKey, ""), "default", "en"), nil
	}
}
