package lifecycle

import (
	"testing"

	"EmberFM/model"
)

func TestComputeState(t *testing.T) {
	principal := &model.Principal{ID: "u1", Email: "u1@example.com"}
	ready := &model.Profile{ID: "u1", SetupComplete: true, Onboarded: true}
	needsSetup := &model.Profile{ID: "u1", Role: model.RoleArtist, SetupComplete: false, Onboarded: true}
	needsTour := &model.Profile{ID: "u1", SetupComplete: true, Onboarded: false}

	cases := []struct {
		name      string
		principal *model.Principal
		profile   *model.Profile
		outcome   FetchOutcome
		want      State
	}{
		{"no principal, nothing reported", nil, nil, FetchIdle, StateLoading},
		{"no principal after report", nil, nil, FetchPending, StateUnauthenticated},
		{"no principal, stale resolved outcome", nil, ready, FetchResolved, StateUnauthenticated},
		{"fetch in flight", principal, nil, FetchPending, StateProfileLoading},
		{"fetch exhausted", principal, nil, FetchFailed, StateAuthError},
		{"resolved without document", principal, nil, FetchResolved, StateProfileLoading},
		{"artist missing setup", principal, needsSetup, FetchResolved, StateProfileSetupRequired},
		{"setup done, tour pending", principal, needsTour, FetchResolved, StateOnboardingRequired},
		{"fully onboarded", principal, ready, FetchResolved, StateReady},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeState(tc.principal, tc.profile, tc.outcome)
			if got != tc.want {
				t.Fatalf("ComputeState() = %v, want %v", got, tc.want)
			}
			// Same inputs, same answer.
			if again := ComputeState(tc.principal, tc.profile, tc.outcome); again != got {
				t.Fatalf("ComputeState() not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestSetupGateCheckedBeforeOnboardingGate(t *testing.T) {
	principal := &model.Principal{ID: "u1"}
	profile := &model.Profile{ID: "u1", Role: model.RoleArtist, SetupComplete: false, Onboarded: false}
	if got := ComputeState(principal, profile, FetchResolved); got != StateProfileSetupRequired {
		t.Fatalf("both gates open: got %v, want %v", got, StateProfileSetupRequired)
	}
}
