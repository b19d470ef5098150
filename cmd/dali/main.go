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

	"github.com/adimehra/dali/internal/audio"
	"github.com/adimehra/dali/internal/config"
	"github.com/adimehra/dali/internal/dialogue"
	"github.com/adimehra/dali/internal/gateway"
	"github.com/adimehra/dali/internal/httpapi"
	"github.com/adimehra/dali/internal/lang"
	"github.com/adimehra/dali/internal/observability"
	"github.com/adimehra/dali/internal/recog"
	"github.com/adimehra/dali/internal/session"
	"github.com/adimehra/dali/internal/spotter"
	"github.com/adimehra/dali/internal/store"
	"github.com/adimehra/dali/internal/tts"
	"github.com/adimehra/dali/internal/wakeword"
)

// Handoff deadlines for wake events crossing into the hub's event loop.
// Disabling gets more slack because the timer callback can afford to wait.
const (
	enableHandoffWait  = time.Second
	disableHandoffWait = 2 * time.Second
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	logStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("conversation store init failed: %v", err)
	}
	defer logStore.Close()

	// Recognition models. Without configured model paths the mock engine
	// still serves both languages so the rest of the pipeline stays live.
	var models *recog.ModelSet
	if len(cfg.ModelPaths) > 0 {
		models, err = recog.LoadModelSet(cfg.ModelPaths)
		if err != nil {
			log.Fatalf("model set load failed: %v", err)
		}
		log.Printf("recognition models: %v", models.Languages())
	} else {
		models = recog.NewStaticModelSet("english", "hindi")
		log.Printf("recognition models: static (english, hindi)")
	}
	if !models.Has(session.DefaultLanguage) {
		log.Fatalf("no model configured for default language %q", session.DefaultLanguage)
	}

	// Native acoustic decoders and capture backends plug in behind the
	// recog.Engine and audio.Device contracts. The in-process defaults
	// keep the full loop runnable without linked hardware bindings.
	engine := recog.NewMockEngine(nil)
	device := audio.NewMemoryDevice(nil)
	log.Printf("audio capture: silence (no native backend linked)")

	var speaker tts.Speaker
	if cfg.TTSCommand != "" {
		speaker = tts.NewCommandSpeaker(cfg.TTSCommand, cfg.TTSRate)
		log.Printf("tts: command %q", cfg.TTSCommand)
	} else {
		speaker = tts.NoopSpeaker{}
		log.Printf("tts: muted (no command configured)")
	}

	coord := recog.NewCoordinator(engine, models, device, speaker, cfg.SampleRate, cfg.FrameLength)
	if _, err := coord.Start(session.DefaultLanguage); err != nil {
		log.Fatalf("recognition start failed: %v", err)
	}
	defer coord.Close()

	hub := gateway.NewHub(gateway.Options{
		Registry: session.NewRegistry(),
		Store:    logStore,
		Dialogue: dialogue.NewClient(cfg.DialogueURL, cfg.DialogueRetries, cfg.DialogueTimeout),
		Detector: lang.NewDetector(models.Languages()),
		SwitchLanguage: func(ctx context.Context, target string) error {
			_, err := coord.SwitchTo(ctx, target)
			return err
		},
		Metrics: metrics,
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go hub.Run(runCtx)

	// The wake spotter transcribes capture frames through whichever
	// decoder binding is currently live.
	transcribe := func(frame []int16) (string, bool, error) {
		binding := coord.Current()
		if binding == nil {
			return "", false, nil
		}
		res, err := binding.Accept(frame)
		if errors.Is(err, audio.ErrStreamClosed) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return res.Text, res.Final, nil
	}

	spot, err := spotter.New(spotter.Config{
		Provider:      cfg.SpotterProvider,
		AccessKey:     cfg.SpotterAccessKey,
		KeywordPaths:  cfg.KeywordPaths,
		Sensitivities: cfg.Sensitivities,
		SampleRate:    cfg.SampleRate,
		FrameLength:   cfg.FrameLength,
	}, transcribe)
	if err != nil {
		log.Fatalf("keyword spotter init failed: %v", err)
	}

	detector, err := wakeword.New(wakeword.Options{
		Device:            device,
		Spotter:           spot,
		InactivityTimeout: cfg.InactivityTimeout,
		CaptureDumpDir:    cfg.CaptureDumpDir,
		Notify: func(enabled bool) error {
			wait := disableHandoffWait
			if enabled {
				wait = enableHandoffWait
				metrics.WakeDetections.Inc()
			}
			return hub.SetVoiceMode(enabled, wait)
		},
	})
	if err != nil {
		log.Fatalf("wake detector init failed: %v", err)
	}
	if err := detector.Start(); err != nil {
		log.Fatalf("wake detector start failed: %v", err)
	}

	startJanitor(runCtx, logStore, time.Duration(cfg.RetentionDays)*24*time.Hour)

	api := httpapi.New(cfg, hub, logStore, metrics)
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

	detector.Stop()
	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// startJanitor prunes sessions older than the retention window once an
// hour until ctx is cancelled.
func startJanitor(ctx context.Context, s store.Store, retention time.Duration) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.CleanupOldSessions(ctx, retention); err != nil {
					log.Printf("session cleanup failed: %v", err)
				}
			}
		}
	}()
}
