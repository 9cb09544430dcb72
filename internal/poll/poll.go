// Package poll runs the button polling cycle: sample, measure elapsed
// ticks, feed the controller and fan its events out to the display, the
// log and MQTT. A Loop owns its reader, clock, controller and screen; none
// of them are touched from any other goroutine.
package poll

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/m5echo/internal/gpio"
	"github.com/sweeney/m5echo/internal/logic"
	"github.com/sweeney/m5echo/internal/mqtt"
	"github.com/sweeney/m5echo/internal/status"
	"github.com/sweeney/m5echo/internal/tick"
)

// Screen shows the accepted button state.
type Screen interface {
	ShowButtons(b logic.Buttons) error
}

// Loop is one polling cycle plus its state. Screen, Tracker and
// MQTTStatus may be nil; Publisher must not be (use mqtt.Nop).
type Loop struct {
	Reader     gpio.Reader
	Clock      tick.Clock
	Controller *logic.Controller
	Screen     Screen
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Tracker    *status.Tracker
	Log        zerolog.Logger

	prev    tick.Ticks
	started bool
}

// Run calls Step on every receive from tickCh until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, tickCh <-chan time.Time) error {
	l.Start()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tickCh:
			l.Step()
		}
	}
}

// Start records the reference tick. Step calls it if needed.
func (l *Loop) Start() {
	l.prev = l.Clock.Now()
	l.started = true
}

// Step runs a single cycle and returns the events it produced. A GPIO
// read error skips the cycle without consuming elapsed time.
func (l *Loop) Step() []logic.Event {
	if !l.started {
		l.Start()
	}

	raw, err := l.Reader.Read()
	if err != nil {
		l.Log.Warn().Err(err).Msg("gpio read failed, skipping cycle")
		return nil
	}

	now := l.Clock.Now()
	elapsed := tick.Elapsed(l.prev, now)
	l.prev = now

	l.Log.Info().Bool("a", raw.A).Bool("b", raw.B).Bool("c", raw.C).Uint32("ticks", uint32(now)).Msg("buttons")

	events := l.Controller.Process(logic.Input{Raw: raw, Elapsed: elapsed, Ticks: now})
	for _, ev := range events {
		l.handle(ev)
	}

	if l.Tracker != nil {
		l.Tracker.Update(l.Controller.Accepted(), l.Controller.Counter(), now, l.Controller.Counts())
		if l.MQTTStatus != nil {
			l.Tracker.SetMQTTConnected(l.MQTTStatus.IsConnected())
		}
	}
	return events
}

func (l *Loop) handle(ev logic.Event) {
	switch ev.Type {
	case logic.EventButtonsChanged:
		l.Log.Info().Str("buttons", ev.Buttons.String()).Msg("buttons changed")
		if l.Screen != nil {
			if err := l.Screen.ShowButtons(ev.Buttons); err != nil {
				l.Log.Warn().Err(err).Msg("display update failed")
			}
		}
	case logic.EventCounterTick:
		l.Log.Info().Bool("a_pressed", ev.APressed).Int8("counter", ev.Counter).Msg("counter status")
	}

	if err := l.Publisher.Publish(ev); err != nil {
		l.Log.Debug().Err(err).Str("event", string(ev.Type)).Msg("publish failed")
	}
}
