//go:build tinygo && baremetal

// Command m5echo-pico is the firmware build for a Raspberry Pi Pico W with
// an ILI9341 panel and three buttons. Network settings are baked in at
// link time, for example:
//
//	tinygo flash -target=pico-w -ldflags="-X main.SSID=lab -X main.Passphrase=secret12" ./cmd/m5echo-pico
package main

import (
	"context"
	"fmt"
	"machine"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

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
)

// Set with -ldflags "-X main.Name=value".
var (
	SSID       = radio.DefaultSSID
	Passphrase string
	Channel    = "11"
	Auth       = string(radio.AuthWPA2Personal)
	Hostname   = "m5echo"
	StaticIP   string
	Title      = display.DefaultTitle
)

func main() {
	// Give the USB serial console time to enumerate.
	time.Sleep(2 * time.Second)

	log, err := logger.New(machine.Serial, logger.Options{Format: logger.FormatConsole, NoTimestamp: true})
	if err != nil {
		panic(err)
	}

	if err := run(log); err != nil {
		log.Error().Err(err).Msg("fatal, resetting")
	}
	// Nothing to return to. Let the watchdog reboot the board so it comes
	// back up from scratch.
	time.Sleep(time.Second)
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 100})
	machine.Watchdog.Start()
	select {}
}

func run(log zerolog.Logger) error {
	// Cancelled on return so the radio's NIC loop stops with everything else.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := radioConfig()
	if err != nil {
		return err
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Debounce:       logic.DefaultDebounce,
		ActionInterval: logic.DefaultActionInterval,
		EchoAddr:       ":" + strconv.Itoa(echo.DefaultPort),
	})

	nic := radio.NewPicoW(cfg, log)
	info, err := nic.Start(ctx)
	if err != nil {
		return err
	}
	tracker.SetRadio(&status.RadioInfo{Mode: string(info.Mode), SSID: info.SSID, Channel: info.Channel, Addr: info.Addr.String()})

	ln, err := nic.Listen(echo.DefaultPort)
	if err != nil {
		return err
	}
	srv := echo.New(echo.Config{}, log)
	tracker.SetEchoSource(srv.Stats)

	panel, err := display.NewILI9341(machine.SPI0, display.SPIPins{
		SCK:       machine.GP18,
		SDO:       machine.GP19,
		SDI:       machine.GP16,
		DC:        machine.GP20,
		CS:        machine.GP17,
		RST:       machine.GP21,
		Backlight: machine.GP22,
	})
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	screen := display.NewStatusScreen(display.NewPanel(panel), Title)
	if err := screen.Init(); err != nil {
		log.Warn().Err(err).Msg("display draw failed")
	}

	loop := &poll.Loop{
		Reader:     gpio.NewMachineReader(machine.GP13, machine.GP14, machine.GP15),
		Clock:      tick.NewSystemClock(0),
		Controller: logic.NewController(logic.Config{}),
		Screen:     screen,
		Publisher:  mqtt.Nop{},
		Tracker:    tracker,
		Log:        log.With().Str("component", "poll").Logger(),
	}

	log.Info().
		Str("ssid", info.SSID).
		Str("addr", info.Addr.String()).
		Msgf("started; try `telnet %s %d`", info.Addr, echo.DefaultPort)

	ticker := time.NewTicker(tick.Period)
	defer ticker.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })
	g.Go(func() error { return loop.Run(gctx, ticker.C) })
	return g.Wait()
}

func radioConfig() (radio.Config, error) {
	cfg := radio.DefaultConfig()
	cfg.SSID = SSID
	cfg.Passphrase = Passphrase
	cfg.Hostname = Hostname
	cfg.StaticIP = StaticIP

	ch, err := strconv.ParseUint(Channel, 10, 8)
	if err != nil {
		return cfg, radio.ErrInvalidConfig
	}
	cfg.Channel = uint8(ch)

	auth, err := radio.ParseAuthMethod(Auth)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = auth
	return cfg, cfg.Validate()
}
