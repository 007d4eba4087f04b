package delivery

import (
	"context"
	"sync"
	"time"
)

// Delivery is one recorded attempt.
type Delivery struct {
	Address string
	Text    string
}

// Recorder is an in-memory Deliverer for tests. It logs "start <addr>"
// and "end <addr>" markers around each attempt so callers can check
// ordering.
type Recorder struct {
	// Fail maps an address to the error its delivery returns.
	Fail map[string]error
	// Delay is slept between the start and end markers.
	Delay time.Duration

	mu         sync.Mutex
	events     []string
	deliveries []Delivery
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Fail: map[string]error{}}
}

func (r *Recorder) Deliver(_ context.Context, address, text string) error {
	r.mu.Lock()
	r.events = append(r.events, "start "+address)
	err := r.Fail[address]
	r.mu.Unlock()

	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "end "+address)
	if err == nil {
		r.deliveries = append(r.deliveries, Delivery{Address: address, Text: text})
	}
	return err
}

// Events returns the start/end markers in the order they were recorded.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Deliveries returns successful attempts in order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Texts returns the text delivered to address, in order.
func (r *Recorder) Texts(address string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.deliveries {
		if d.Address == address {
			out = append(out, d.Text)
		}
	}
	return out
}
