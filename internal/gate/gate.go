// Package gate is the render-time guard for protected screens. It holds
// rendering until the auth state resolves, then either renders or redirects
// to the login page.
package gate

import (
	"context"

	"github.com/tyemirov/shuttleup/internal/authstate"
)

// LoginPath is where signed-out visitors are sent.
const LoginPath = "/login"

// Action is what the protected screen should do.
type Action int

const (
	ActionLoading Action = iota
	ActionRedirect
	ActionRender
)

func (action Action) String() string {
	switch action {
	case ActionRedirect:
		return "redirect"
	case ActionRender:
		return "render"
	default:
		return "loading"
	}
}

// Outcome is one gate evaluation.
type Outcome struct {
	Action     Action
	RedirectTo string
	Identity   *authstate.Identity
}

// Evaluate never renders protected content for an unresolved or signed-out state.
func Evaluate(state authstate.State) Outcome {
	switch {
	case state.Loading:
		return Outcome{Action: ActionLoading}
	case state.Identity == nil:
		return Outcome{Action: ActionRedirect, RedirectTo: LoginPath}
	default:
		return Outcome{Action: ActionRender, Identity: state.Identity}
	}
}

// StateSource is satisfied by *authstate.Publisher.
type StateSource interface {
	Subscribe() (<-chan authstate.State, func())
}

// Gate re-evaluates on every published state.
type Gate struct {
	source StateSource
}

// New builds a gate over source.
func New(source StateSource) *Gate {
	return &Gate{source: source}
}

// Run calls onChange with each evaluation until ctx ends or the source closes.
// Consecutive identical actions for the same identity are collapsed.
func (gate *Gate) Run(ctx context.Context, onChange func(Outcome)) error {
	states, cancel := gate.source.Subscribe()
	defer cancel()
	var previous *Outcome
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, open := <-states:
			if !open {
				return nil
			}
			outcome := Evaluate(state)
			if previous != nil && sameOutcome(*previous, outcome) {
				continue
			}
			previous = &outcome
			onChange(outcome)
		}
	}
}

// AwaitResolved blocks until the state resolves and returns the first non-loading outcome.
func (gate *Gate) AwaitResolved(ctx context.Context) (Outcome, error) {
	resolvedCtx, stop := context.WithCancel(ctx)
	defer stop()
	var resolved Outcome
	found := false
	runErr := gate.Run(resolvedCtx, func(outcome Outcome) {
		if found || outcome.Action == ActionLoading {
			return
		}
		resolved = outcome
		found = true
		stop()
	})
	if found {
		return resolved, nil
	}
	if runErr == nil {
		runErr = context.Canceled
	}
	return Outcome{}, runErr
}

func sameOutcome(left Outcome, right Outcome) bool {
	if left.Action != right.Action || left.RedirectTo != right.RedirectTo {
		return false
	}
	if left.Identity == nil || right.Identity == nil {
		return left.Identity == right.Identity
	}
	return *left.Identity == *right.Identity
}
