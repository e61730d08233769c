// oscbridge - avatar parameter OSC client
//
// oscbridge exchanges named avatar parameter values with a peer
// application over UDP using a restricted OSC subset. It keeps a typed
// parameter cache, publishes change notifications, and optionally
// exposes a REST API, MQTT telemetry and a SQLite change history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/oscbridge-project/oscbridge/internal/api"
	"github.com/oscbridge-project/oscbridge/internal/cli"
	"github.com/oscbridge-project/oscbridge/internal/client"
	"github.com/oscbridge-project/oscbridge/internal/config"
	"github.com/oscbridge-project/oscbridge/internal/db"
	"github.com/oscbridge-project/oscbridge/internal/events"
	"github.com/oscbridge-project/oscbridge/internal/telemetry"
	"github.com/oscbridge-project/oscbridge/internal/util"
)

const (
	AppName    = "oscbridge"
	AppVersion = "1.0.0"
)

func main() {
	configDir := flag.String("config", config.DefaultConfigDir, "configuration directory")
	noConsole := flag.Bool("no-console", false, "disable the interactive console")
	flag.Parse()

	fmt.Printf("%s v%s - avatar parameter OSC client\n\n", AppName, AppVersion)

	// Load configuration first; logging settings live in it.
	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := util.InitLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("hostname", sysInfo.Hostname).
		Str("cpu", sysInfo.CPUModel).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("starting oscbridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	// Console echo of every change event received from the peer.
	subscribeConsoleLogging(eventBus)

	osc, err := client.New(cfg.OSC, eventBus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start OSC client")
	}

	var history *db.History
	if cfg.History.Enabled {
		history, err = db.NewHistory(cfg.History.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open history database")
		}
		history.Attach(eventBus)
	}

	var wg sync.WaitGroup

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, osc, history)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("API server failed")
			}
		}()
	}

	if cfg.MQTT.Enabled {
		mqttHandler, err := telemetry.NewMQTTHandler(cfg.MQTT, eventBus)
		if err != nil {
			log.Error().Err(err).Msg("failed to create MQTT handler")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := mqttHandler.Start(ctx); err != nil {
					log.Error().Err(err).Msg("MQTT telemetry failed")
				}
			}()
		}
	}

	if !*noConsole {
		go cli.NewCLI(osc).Start(ctx)
	}

	// Wait for a shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	if err := osc.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing OSC client")
	}
	wg.Wait()
	eventBus.Stop()

	if history != nil {
		history.Detach(eventBus)
		if err := history.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing history database")
		}
	}

	log.Info().Msg("oscbridge stopped")
}

// subscribeConsoleLogging surfaces send/receive activity on the colored
// console writer.
func subscribeConsoleLogging(bus *events.EventBus) {
	bus.Subscribe(events.EventFloatParameterChanged, "console.float", func(ctx context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.FloatParameterPayload); ok {
			log.Info().Str("parameter", p.Name).Float32("value", p.Value).Msg("float parameter changed")
		}
		return nil
	})
	bus.Subscribe(events.EventIntParameterChanged, "console.int", func(ctx context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.IntParameterPayload); ok {
			log.Info().Str("parameter", p.Name).Int32("value", p.Value).Msg("int parameter changed")
		}
		return nil
	})
	bus.Subscribe(events.EventBoolParameterChanged, "console.bool", func(ctx context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.BoolParameterPayload); ok {
			log.Info().Str("parameter", p.Name).Bool("value", p.Value).Msg("bool parameter changed")
		}
		return nil
	})
	bus.Subscribe(events.EventAvatarChanged, "console.avatar", func(ctx context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.AvatarChangedPayload); ok {
			log.Info().Str("avatar", p.ID.String()).Msg("avatar changed")
		}
		return nil
	})
}
