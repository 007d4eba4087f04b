// Package sweep removes agents whose pane no longer exists.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/signalbox/internal/directory"
	"github.com/zulandar/signalbox/internal/service"
	"github.com/zulandar/signalbox/internal/tmux"
)

// Sweeper compares directory addresses against live tmux panes.
type Sweeper struct {
	svc  *service.Service
	tmux tmux.Tmux
}

// New creates a Sweeper.
func New(svc *service.Service, t tmux.Tmux) *Sweeper {
	return &Sweeper{svc: svc, tmux: t}
}

// Removed describes one agent dropped by a sweep.
type Removed struct {
	Name    string
	Address string
}

// RunOnce deregisters every agent whose resolved address is not a live
// pane, announcing each departure. Agents without an address are left
// alone since their pane may still be being assigned, and an agent whose
// address changed after the listing is kept. If tmux cannot be queried
// nothing is removed.
func (s *Sweeper) RunOnce(ctx context.Context) ([]Removed, error) {
	panes, err := s.tmux.ListAllPanes()
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	live := tmux.LiveSet(panes)

	var removed []Removed
	for _, a := range s.svc.Dir.List(ctx, "") {
		addr, ok := directory.Address(a)
		if !ok || live[addr] {
			continue
		}
		res, err := s.svc.DeregisterAt(ctx, a.Name, addr)
		if err != nil {
			log.Printf("sweep: deregister %s: %v", a.Name, err)
			continue
		}
		if res.Agent == nil {
			continue
		}
		log.Printf("sweep: removed %s (pane %s gone)", a.Name, addr)
		removed = append(removed, Removed{Name: a.Name, Address: addr})
	}
	return removed, nil
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	d := nextCronDuration(schedule, time.Now())
	if d <= 0 {
		return fmt.Errorf("sweep: invalid schedule %q", schedule)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if removed, err := s.RunOnce(ctx); err != nil {
				log.Printf("%v", err)
			} else if len(removed) > 0 {
				log.Printf("sweep: removed %d stale agents", len(removed))
			}
			timer.Reset(nextCronDuration(schedule, time.Now()))
		}
	}
}
