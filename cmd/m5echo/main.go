// Command m5echo samples three buttons into a debounced wrapping counter
// and runs a diagnostic TCP echo service alongside.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/m5echo/internal/config"
	"github.com/sweeney/m5echo/internal/display"
	"github.com/sweeney/m5echo/internal/echo"
	"github.com/sweeney/m5echo/internal/gpio"
	"github.com/sweeney/m5echo/internal/logger"
	"github.com/sweeney/m5echo/internal/logic"
	"github.com/sweeney/m5echo/internal/mqtt"
	"github.com/sweeney/m5echo/internal/poll"
	"github.com/sweeney/m5echo/internal/radio"
	"github.com/sweeney/m5echo/internal/status"
	"github.com/sweeney/m5echo/internal/tick"
	"github.com/sweeney/m5echo/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "m5echo: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(os.Stderr, cfg.LoggerOptions(logger.IsService()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "m5echo: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()
	start := time.Now()

	tracker := status.NewTracker(start, status.Config{
		Debounce:       cfg.Logic.Debounce,
		ActionInterval: cfg.Logic.ActionInterval,
		EchoAddr:       cfg.Echo.Addr,
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})

	if cfg.Radio.Enabled {
		rc, err := cfg.RadioConfig()
		if err != nil {
			return err
		}
		info, err := radio.NewHost(rc, log).Start(ctx)
		if err != nil {
			return fmt.Errorf("start radio: %w", err)
		}
		tracker.SetRadio(&status.RadioInfo{Mode: string(info.Mode), SSID: info.SSID, Channel: info.Channel})
	}

	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIOPins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	// Hosts have no panel attached; draw into memory so the same code path runs.
	screen := display.NewStatusScreen(display.NewPanel(display.NewFramebuffer(display.DefaultWidth, display.DefaultHeight)), cfg.Display.Title)
	if err := screen.Init(); err != nil {
		log.Warn().Err(err).Msg("display init failed")
	}

	var publisher mqtt.Publisher = mqtt.Nop{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTTConfig(), log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	echoLn, err := echo.Listen(ctx, cfg.Echo.Addr)
	if err != nil {
		return err
	}
	echoSrv := echo.New(cfg.EchoConfig(), log)
	tracker.SetEchoSource(echoSrv.Stats)

	var webSrv *web.Server
	var webLn net.Listener
	if cfg.HTTP.Addr != "" {
		webLn, err = net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			echoLn.Close()
			return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
		}
		webSrv = web.New(cfg.HTTP.Addr, tracker, log)
	}

	loop := &poll.Loop{
		Reader:     reader,
		Clock:      tick.NewSystemClock(0),
		Controller: logic.NewController(cfg.LogicConfig()),
		Screen:     screen,
		Publisher:  publisher,
		MQTTStatus: mqttStatus,
		Tracker:    tracker,
		Log:        log.With().Str("component", "poll").Logger(),
	}

	log.Info().
		Str("echo", echoLn.Addr().String()).
		Dur("debounce", cfg.Logic.Debounce).
		Dur("action_interval", cfg.Logic.ActionInterval).
		Str("broker", cfg.MQTT.Broker).
		Msgf("started; try `telnet <ip> %d`", echoLn.Addr().(*net.TCPAddr).Port)

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.SystemStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.SystemStartup, ""),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	}

	ticker := time.NewTicker(tick.Period)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(ctx, services{
		echo:       echoSrv,
		echoLn:     echoLn,
		web:        webSrv,
		webLn:      webLn,
		loop:       loop,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		log:        log,
	}, ticker.C, sigCh)
}

// services is everything runLoop starts and stops.
type services struct {
	echo       *echo.Server
	echoLn     net.Listener
	web        *web.Server // nil when the status page is disabled
	webLn      net.Listener
	loop       *poll.Loop
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	log        zerolog.Logger
}

// runLoop runs the accept loop and the polling loop side by side. A signal
// stops both and returns nil; a fatal error in either stops the other and
// is returned. SHUTDOWN is published either way.
func runLoop(ctx context.Context, s services, tickCh <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.echo.Serve(gctx, s.echoLn) })
	g.Go(func() error { return s.loop.Run(gctx, tickCh) })
	if s.web != nil {
		g.Go(func() error { return s.web.Run(gctx, s.webLn) })
	}

	reason := "ERROR"
	g.Go(func() error {
		select {
		case sg := <-sig:
			reason = signalName(sg)
			s.log.Info().Str("signal", reason).Msg("shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err := g.Wait()

	event := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     mqtt.SystemShutdown,
		Reason:    reason,
		Retained:  true,
	}
	if s.tracker != nil {
		if s.mqttStatus != nil {
			s.tracker.SetMQTTConnected(s.mqttStatus.IsConnected())
		}
		snap := s.tracker.Snapshot()
		event.Timestamp = snap.Now
		event.RawPayload = status.FormatStatusEvent(snap, mqtt.SystemShutdown, reason)
	}
	if perr := s.publisher.PublishSystem(event); perr != nil {
		s.log.Warn().Err(perr).Msg("failed to publish shutdown event")
	}
	return err
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
