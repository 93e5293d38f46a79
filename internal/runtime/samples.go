package runtime

import (
	"context"

	"tanks/internal/tankapi"
)

// Sentry alternates scanning a fixed forward arc and shooting whenever the
// scan last came back positive. It never moves. Useful as a load-bearing
// test fixture and as the built-in "sentry" catalog entry for
// collaborators that have no player source of their own to submit.
type Sentry struct {
	Class string
	ADeg  float64
	BDeg  float64
}

func (s *Sentry) ClassTag() string { return s.Class }

func (s *Sentry) Loop(ctx context.Context, api *tankapi.TankAPI) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		found, err := api.Scan(ctx, s.ADeg, s.BDeg)
		if err != nil {
			return err
		}
		if found {
			if _, err := api.Shoot(ctx); err != nil {
				return err
			}
		}
	}
}

// Patroller turns right for the default duration every TurnEvery-th
// iteration (4 when unset) and moves forward otherwise; it never scans or
// shoots. Another built-in fixture, distinct
// enough from Sentry to exercise the movement and timed-turn paths in
// integration tests.
type Patroller struct {
	Class     string
	TurnEvery int
}

func (p *Patroller) ClassTag() string { return p.Class }

func (p *Patroller) Loop(ctx context.Context, api *tankapi.TankAPI) error {
	turnEvery := p.TurnEvery
	if turnEvery <= 0 {
		turnEvery = 4
	}
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if i%turnEvery == 0 {
			if _, err := api.TurnRight(ctx, nil); err != nil {
				return err
			}
			continue
		}
		if _, err := api.MoveForward(ctx); err != nil {
			return err
		}
	}
}
