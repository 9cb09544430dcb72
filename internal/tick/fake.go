package tick

// FakeClock is a test double that returns scripted tick values.
// Each call to Now returns the current value and then advances it by Step.
// Not safe for concurrent use.
type FakeClock struct {
	// Step is added to the current value after every Now call.
	Step Ticks

	now Ticks
}

// NewFakeClock creates a FakeClock starting at start.
func NewFakeClock(start, step Ticks) *FakeClock {
	return &FakeClock{Step: step, now: start}
}

// Now returns the current value and advances by Step.
func (f *FakeClock) Now() Ticks {
	t := f.now
	f.now += f.Step
	return t
}

// Set moves the clock to t without advancing.
func (f *FakeClock) Set(t Ticks) {
	f.now = t
}

// Advance moves the clock forward by n ticks.
func (f *FakeClock) Advance(n Ticks) {
	f.now += n
}

// Peek returns the value the next Now call will return.
func (f *FakeClock) Peek() Ticks {
	return f.now
}
