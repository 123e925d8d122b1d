package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"

	"github.com/lingorelay/lingo-relay/internal/audio"
	"github.com/lingorelay/lingo-relay/internal/config"
	"github.com/lingorelay/lingo-relay/internal/gdrive"
	"github.com/lingorelay/lingo-relay/internal/logging"
	"github.com/lingorelay/lingo-relay/internal/server"
	"github.com/lingorelay/lingo-relay/internal/session"
	"github.com/lingorelay/lingo-relay/internal/storage"
	"github.com/lingorelay/lingo-relay/internal/transcribe"
	"github.com/lingorelay/lingo-relay/internal/translate"
)

type statusTracker struct {
	mu     sync.RWMutex
	status session.Status
}

func (s *statusTracker) Set(status session.Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *statusTracker) Get() session.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	listDevices := flag.Bool("list-devices", false, "list audio input devices and exit")
	sessionName := flag.String("name", "", "start a session with this name at boot")
	direction := flag.String("direction", "", "translation direction for the boot session (en-es or es-en)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	if *listDevices {
		if err := printInputDevices(); err != nil {
			logger.Fatal().Err(err).Msg("list devices failed")
		}
		return
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage init failed")
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub()
	tracker := &statusTracker{status: session.StatusReady}

	var syncer *gdrive.Syncer
	if cfg.GDriveFolderID != "" {
		syncer, err = gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			logger.Warn().Err(err).Msg("gdrive sync disabled")
			syncer = nil
		}
	}

	translationKey := cfg.TranslateAPIKey
	if cfg.TranslateProvider == "openai" {
		translationKey = cfg.OpenAIAPIKey
	}

	ctrl := session.NewController(session.Deps{
		NewMixer: func() session.Mixer {
			return audio.NewMixer(cfg.SampleRate, logger)
		},
		NewSegmenter: func(language string) session.Segmenter {
			return transcribe.NewSegmenter(transcribe.Config{
				APIKey:         cfg.DeepgramAPIKey,
				Language:       language,
				SampleRate:     cfg.SampleRate,
				QuietPeriod:    cfg.ParsedQuietPeriod(),
				ConnectTimeout: cfg.ParsedConnectTimeout(),
			}, logger)
		},
		NewTranslator: func() (translate.Translator, error) {
			return translate.NewTranslator(cfg.TranslateProvider, translationKey, cfg.OpenAIModel)
		},
		NewSink: func(dir, name string, langs ...string) (session.Sink, error) {
			return storage.CreateFiles(dir, name, langs...)
		},
		Credentials: func() session.Credentials {
			return session.Credentials{
				Recognition: cfg.DeepgramAPIKey,
				Translation: translationKey,
			}
		},
		Store: store,
		OnStatus: func(status session.Status) {
			tracker.Set(status)
			hub.BroadcastStatus(status)
		},
		OnLine:           hub.BroadcastLine,
		OnSessionStarted: hub.BroadcastSessionStarted,
		OnSessionEnded: func(sessionID string, hadContent bool, transcriptPaths []string) {
			hub.BroadcastSessionEnded(sessionID, hadContent, transcriptPaths)
			if syncer != nil && hadContent {
				go func() {
					if err := syncer.SyncTranscripts(transcriptPaths); err != nil {
						logger.Warn().Err(err).Msg("gdrive sync failed")
					}
				}()
			}
		},
		ChunkInterval: cfg.ParsedChunkInterval(),
	}, logger)

	startSession := func(name, dir string) error {
		if dir == "" {
			dir = cfg.Direction
		}
		return ctrl.Start(ctx, session.Config{
			Direction:       translate.Direction(dir),
			PrimaryDevice:   cfg.PrimaryDevice,
			SecondaryDevice: cfg.SecondaryDevice,
			OutputDir:       cfg.OutputDir,
			Name:            name,
		})
	}

	handler := server.Handler(hub, store, server.ControlHooks{
		Start:    startSession,
		Stop:     ctrl.Stop,
		Status:   tracker.Get,
		Warnings: func() []string { return warnings },
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	if *sessionName != "" {
		if err := startSession(*sessionName, *direction); err != nil {
			logger.Error().Err(err).Msg("boot session start failed")
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	cancel()

	if _, err := ctrl.Stop(); err != nil {
		logger.Warn().Err(err).Msg("session stop failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown failed")
	}
}

func printInputDevices() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize audio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := audio.InputDevices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%3d  %s (%d ch)\n", d.Index, d.Name, d.Channels)
	}
	return nil
}
