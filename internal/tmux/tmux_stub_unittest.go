//go:build unittest

package tmux

import "context"

// RealTmux is a no-op stub used during unit testing (build tag: unittest).
// The real implementation is in tmux_real.go.
type RealTmux struct{}

func (RealTmux) Locate(paneID string) (Location, error)                  { return Location{PaneID: paneID}, nil }
func (RealTmux) ListAllPanes() ([]Location, error)                       { return nil, nil }
func (RealTmux) SendKeys(ctx context.Context, target, text string) error { return nil }
