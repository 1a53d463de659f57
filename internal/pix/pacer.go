package pix

import "time"

// Pacer throttles remote API calls. The service pauses between uploads,
// between lookup batches and between album chunks; production uses a fixed
// delay while tests inject NopPacer to run at full speed.
type Pacer interface {
	Pause()
}

// DelayPacer sleeps for a fixed duration on every Pause.
type DelayPacer struct {
	d time.Duration
}

// NewDelayPacer creates a DelayPacer with the given delay.
func NewDelayPacer(d time.Duration) *DelayPacer {
	return &DelayPacer{d: d}
}

func (p *DelayPacer) Pause() {
	if p.d > 0 {
		time.Sleep(p.d)
	}
}

// NopPacer never pauses. Use in tests and dry runs.
type NopPacer struct{}

func (NopPacer) Pause() {}
