package logic

import "time"

// Controller debounces button samples and drives the wrapping counter.
// It is owned by a single goroutine and is not safe for concurrent use.
type Controller struct {
	cfg            Config
	accepted       Buttons
	debounceWindow time.Duration
	actionTimer    time.Duration
	counter        int8
	counts         Counts
}

// NewController creates a controller with all buttons released and the
// counter at zero. Zero thresholds fall back to the defaults.
func NewController(cfg Config) *Controller {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ActionInterval <= 0 {
		cfg.ActionInterval = DefaultActionInterval
	}
	return &Controller{cfg: cfg}
}

// Process runs one cycle and returns the events it produced.
// The debounce step always runs before the action step, so a counter tick
// sees the state accepted in this same cycle, never the raw sample.
func (c *Controller) Process(in Input) []Event {
	var events []Event

	c.debounceWindow += in.Elapsed
	if c.debounceWindow > c.cfg.Debounce && in.Raw.Differs(c.accepted) {
		c.accepted = in.Raw
		c.debounceWindow = 0
		c.counts.Changes++
		events = append(events, Event{
			Type:    EventButtonsChanged,
			Ticks:   in.Ticks,
			Buttons: c.accepted,
		})
	}

	c.actionTimer += in.Elapsed
	if c.actionTimer > c.cfg.ActionInterval {
		c.actionTimer = 0
		c.counter = ApplyAction(c.counter, c.accepted.A, c.accepted.C)
		c.counts.Actions++
		events = append(events, Event{
			Type:     EventCounterTick,
			Ticks:    in.Ticks,
			Buttons:  c.accepted,
			APressed: c.accepted.A,
			Counter:  c.counter,
		})
	}

	return events
}

// ApplyAction applies one action tick to counter: +10 if a is pressed,
// -16 if c is pressed, then +1. int8 arithmetic wraps at each step.
func ApplyAction(counter int8, a, c bool) int8 {
	if a {
		counter += 10
	}
	if c {
		counter -= 16
	}
	return counter + 1
}

// Accepted returns the last accepted (debounced) button state.
func (c *Controller) Accepted() Buttons {
	return c.accepted
}

// Counter returns the current counter value.
func (c *Controller) Counter() int8 {
	return c.counter
}

// Counts returns a copy of the event counts.
func (c *Controller) Counts() Counts {
	return c.counts
}
