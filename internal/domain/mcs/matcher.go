package mcs

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// Options are passed to the matcher for every pair.
type Options struct {
	// TimeBudget bounds one Match call.  Zero means no limit.
	TimeBudget time.Duration
	// Use3D asks the matcher to respect coordinates and the scoring engine to
	// clip pairs farther apart than Max3DDistance.
	Use3D         bool
	Max3DDistance float64
}

// Matcher computes one atom correspondence for an ordered ligand pair.
// Failures carry the MatchTimeout or MatchFailure code; structurally unusable
// ligands yield an input error.
type Matcher interface {
	Match(ctx context.Context, a, b *ligand.Ligand, opts Options) (*Correspondence, error)
}

// Identifier is implemented by matchers whose output depends on settings
// beyond the two ligands.  Identity must change whenever those settings would
// change a correspondence; score caches fold it into their keys.
type Identifier interface {
	Identity() string
}

// IdentityOf returns m's identity, or "custom" when m does not report one.
func IdentityOf(m Matcher) string {
	if id, ok := m.(Identifier); ok {
		return id.Identity()
	}
	return "custom"
}

// MatchFunc adapts a function to Matcher.
type MatchFunc func(ctx context.Context, a, b *ligand.Ligand, opts Options) (*Correspondence, error)

func (f MatchFunc) Match(ctx context.Context, a, b *ligand.Ligand, opts Options) (*Correspondence, error) {
	return f(ctx, a, b, opts)
}

type matchResult struct {
	corr *Correspondence
	err  error
}

// Timed runs fn under the time budget.  Deadline expiry, whether observed by
// fn or by Timed itself, becomes a MatchTimeout error; any other uncoded
// failure becomes MatchFailure.
func Timed(ctx context.Context, budget time.Duration, fn func(ctx context.Context) (*Correspondence, error)) (*Correspondence, error) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	done := make(chan matchResult, 1)
	go func() {
		corr, err := fn(ctx)
		done <- matchResult{corr: corr, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, classify(res.err, budget)
		}
		return res.corr, nil
	case <-ctx.Done():
		return nil, classify(ctx.Err(), budget)
	}
}

func classify(err error, budget time.Duration) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrCodeMatchTimeout, "structure match exceeded time budget").
			WithDetail("budget=" + budget.String())
	case errors.GetCode(err) != errors.CodeUnknown:
		return err
	default:
		return errors.Wrap(err, errors.ErrCodeMatchFailure, "structure match failed")
	}
}
