package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/m5echo/internal/display"
	"github.com/sweeney/m5echo/internal/echo"
	"github.com/sweeney/m5echo/internal/gpio"
	"github.com/sweeney/m5echo/internal/logic"
	"github.com/sweeney/m5echo/internal/mqtt"
	"github.com/sweeney/m5echo/internal/poll"
	"github.com/sweeney/m5echo/internal/status"
	"github.com/sweeney/m5echo/internal/tick"
	"github.com/sweeney/m5echo/internal/web"
)

type rig struct {
	loop   *poll.Loop
	reader *gpio.FakeReader
	clock  *tick.FakeClock
	pub    *mqtt.FakePublisher
	fb     *display.Framebuffer
	track  *status.Tracker
}

// newRig wires a poll loop from a fake GPIO reader through to an in-memory
// panel and a fake publisher. Each cycle advances the clock by step ticks.
func newRig(t *testing.T, samples []logic.Buttons, step tick.Ticks) *rig {
	t.Helper()
	fb := display.NewFramebuffer(display.DefaultWidth, display.DefaultHeight)
	screen := display.NewStatusScreen(display.NewPanel(fb), "")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}

	r := &rig{
		reader: gpio.NewFakeReader(samples),
		clock:  tick.NewFakeClock(0, step),
		pub:    mqtt.NewFakePublisher(),
		fb:     fb,
		track:  status.NewTracker(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), status.Config{}),
	}
	r.pub.Now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.loop = &poll.Loop{
		Reader:     r.reader,
		Clock:      r.clock,
		Controller: logic.NewController(logic.Config{}),
		Screen:     screen,
		Publisher:  r.pub,
		MQTTStatus: r.pub,
		Tracker:    r.track,
		Log:        zerolog.Nop(),
	}
	return r
}

func (r *rig) steps(n int) {
	for i := 0; i < n; i++ {
		r.loop.Step()
	}
}

// inkOnButtonLine counts black pixels in the band the button line is drawn in.
func inkOnButtonLine(fb *display.Framebuffer) int {
	w, h := fb.Size()
	line := display.ButtonLine(w, h)
	black := display.RGB565(display.Black)
	n := 0
	for y := line.Y - 12; y < line.Y+4; y++ {
		for x := int16(display.BorderWidth); x < w-display.BorderWidth; x++ {
			if fb.Pixel(x, y) == black {
				n++
			}
		}
	}
	return n
}

func TestIntegrationPressAndHold(t *testing.T) {
	// 30ms per cycle. A is accepted on the first cycle and the counter
	// ticks on cycles 34 and 68.
	r := newRig(t, []logic.Buttons{{A: true}}, 3)
	r.steps(68)

	changes := r.pub.EventsOfType(logic.EventButtonsChanged)
	if len(changes) != 1 || changes[0].Buttons != (logic.Buttons{A: true}) {
		t.Fatalf("changes: got %+v", changes)
	}
	ticks := r.pub.EventsOfType(logic.EventCounterTick)
	if len(ticks) != 2 {
		t.Fatalf("expected 2 counter ticks, got %d", len(ticks))
	}
	if ticks[0].Counter != 11 || ticks[1].Counter != 22 {
		t.Errorf("counters: got %d, %d; want 11, 22", ticks[0].Counter, ticks[1].Counter)
	}
	if ticks[0].Ticks != 102 {
		t.Errorf("first tick at %d, want 102", ticks[0].Ticks)
	}

	// The tick payload carries the counter; the change payload does not.
	var p mqtt.Payload
	if err := json.Unmarshal(r.pub.Payloads[1], &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Device.Event != "COUNTER_TICK" || p.Device.Counter == nil || *p.Device.Counter != 11 {
		t.Errorf("tick payload: got %+v", p.Device)
	}
	if p.Device.APressed == nil || !*p.Device.APressed {
		t.Error("tick payload should report A pressed")
	}
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(r.pub.Payloads[0], &raw); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if _, ok := raw["m5echo"]["counter"]; ok {
		t.Error("BUTTONS_CHANGED payload should omit counter")
	}

	snap := r.track.Snapshot()
	if snap.Counter != 22 || !snap.Buttons.A || snap.Counts.Actions != 2 || snap.Counts.Changes != 1 {
		t.Errorf("tracker: got %+v", snap)
	}
}

func TestIntegrationCounterWrapsWithC(t *testing.T) {
	// C held: each tick is -16 then +1, so -15 per second with int8 wrap.
	r := newRig(t, []logic.Buttons{{C: true}}, 3)
	r.steps(34 * 9)

	ticks := r.pub.EventsOfType(logic.EventCounterTick)
	if len(ticks) != 9 {
		t.Fatalf("expected 9 counter ticks, got %d", len(ticks))
	}
	var want int8
	for i, e := range ticks {
		want = logic.ApplyAction(want, false, true)
		if e.Counter != want {
			t.Errorf("tick %d: got %d, want %d", i, e.Counter, want)
		}
		if e.APressed {
			t.Errorf("tick %d: A should not be reported pressed", i)
		}
	}
	// -15 * 9 = -135 wraps to 121.
	if ticks[8].Counter != 121 {
		t.Errorf("final counter: got %d, want 121", ticks[8].Counter)
	}
}

func TestIntegrationReleaseRedrawsDisplay(t *testing.T) {
	samples := make([]logic.Buttons, 0, 8)
	for i := 0; i < 4; i++ {
		samples = append(samples, logic.Buttons{A: true, B: true, C: true})
	}
	samples = append(samples, logic.Buttons{})
	r := newRig(t, samples, 3)

	before := inkOnButtonLine(r.fb)
	if before != 0 {
		t.Fatalf("button line should be blank after init, got %d ink pixels", before)
	}

	r.steps(1)
	pressed := inkOnButtonLine(r.fb)
	if pressed == 0 {
		t.Fatal("expected button text after first accepted change")
	}

	r.steps(5)
	changes := r.pub.EventsOfType(logic.EventButtonsChanged)
	if len(changes) != 2 || changes[1].Buttons != (logic.Buttons{}) {
		t.Fatalf("changes: got %+v", changes)
	}
	if released := inkOnButtonLine(r.fb); released == 0 || released == pressed {
		t.Errorf("release should redraw the line: pressed=%d released=%d", pressed, released)
	}
}

func TestIntegrationGPIOFaultDoesNotLoseTime(t *testing.T) {
	r := newRig(t, []logic.Buttons{{A: true}}, 3)

	r.reader.ReadError = errors.New("line busy")
	r.steps(10)
	if len(r.pub.Events) != 0 {
		t.Fatalf("no events expected during fault, got %+v", r.pub.Events)
	}

	// The clock was not sampled during the fault, so the next cycle sees
	// one step of elapsed time.
	r.reader.ReadError = nil
	r.steps(1)
	if n := len(r.pub.EventsOfType(logic.EventButtonsChanged)); n != 1 {
		t.Errorf("expected change after recovery, got %d", n)
	}
	if r.clock.Peek() != 6 {
		t.Errorf("clock: got %d, want 6", r.clock.Peek())
	}
}

func TestIntegrationEchoAndStatusPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := echo.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := echo.New(echo.Config{}, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	r := newRig(t, []logic.Buttons{{B: true}}, 3)
	r.track.SetEchoSource(srv.Stats)
	r.steps(2)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	msg := []byte("hello m5")
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, len(msg))
	if _, err := io.ReadFull(conn, got); err != nil || string(got) != string(msg) {
		t.Fatalf("echo: got %q, %v", got, err)
	}

	// The byte counter is bumped after the write reaches the client.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Stats().Bytes < uint64(len(msg)) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ws := web.New(":0", r.track, zerolog.Nop())
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status page: %d", rec.Code)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if !parsed.Status.Buttons.B {
		t.Errorf("status buttons: got %+v", parsed.Status.Buttons)
	}
	if parsed.Status.Echo.Accepted != 1 || parsed.Status.Echo.Active != 1 || parsed.Status.Echo.Bytes != uint64(len(msg)) {
		t.Errorf("status echo: got %+v", parsed.Status.Echo)
	}

	conn.Close()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
