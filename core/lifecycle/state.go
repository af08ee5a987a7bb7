package lifecycle

import "EmberFM/model"

// State is the derived lifecycle position. It is never persisted; it is a
// pure function of the principal, the fetched profile and the fetch
// outcome, computed in one place instead of scattered flag checks.
type State int

const (
	// StateLoading is the initial state before the gateway has reported.
	StateLoading State = iota
	// StateAuthError is reached when the profile fetch exhausts its retry
	// budget or fails permanently; recoverable through a manual retry.
	StateAuthError
	// StateUnauthenticated means no principal; the auth forms are shown.
	StateUnauthenticated
	// StateProfileLoading means a principal exists and its profile fetch
	// (including the retry chain) is still in flight.
	StateProfileLoading
	// StateProfileSetupRequired gates an artist on describing their craft.
	StateProfileSetupRequired
	// StateOnboardingRequired gates the one-time tutorial.
	StateOnboardingRequired
	// StateReady is the steady-state dashboard.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthError:
		return "auth_error"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateProfileLoading:
		return "profile_loading"
	case StateProfileSetupRequired:
		return "profile_setup_required"
	case StateOnboardingRequired:
		return "onboarding_required"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// FetchOutcome is the third input of the state function: where the
// profile fetch currently stands for the active principal.
type FetchOutcome int

const (
	// FetchIdle: the gateway has not reported yet.
	FetchIdle FetchOutcome = iota
	// FetchPending: a fetch or its retry chain is in flight.
	FetchPending
	// FetchResolved: a profile document is available.
	FetchResolved
	// FetchFailed: the retry budget is exhausted or the failure was
	// permanent.
	FetchFailed
)

// ComputeState derives the lifecycle state. Same inputs always produce
// the same state; the controller owns the inputs, nothing else does.
func ComputeState(principal *model.Principal, profile *model.Profile, outcome FetchOutcome) State {
	if principal == nil {
		if outcome == FetchIdle {
			return StateLoading
		}
		return StateUnauthenticated
	}
	switch outcome {
	case FetchFailed:
		return StateAuthError
	case FetchResolved:
		if profile == nil {
			// Resolved without a document should not happen; treat it as
			// still loading rather than inventing a screen.
			return StateProfileLoading
		}
		if !profile.SetupComplete {
			return StateProfileSetupRequired
		}
		if !profile.Onboarded {
			return StateOnboardingRequired
		}
		return StateReady
	default:
		return StateProfileLoading
	}
}
