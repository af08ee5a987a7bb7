package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"EmberFM/core/fault"
	"EmberFM/model"
	"EmberFM/repository"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*model.User{}}
}

func (s *fakeUserStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrDuplicateUser
	}
	u := *user
	s.users[user.Email] = &u
	return nil
}

func (s *fakeUserStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func TestSignUpSignInRoundTrip(t *testing.T) {
	InitJWT("test-secret", time.Hour)
	g := NewGateway(newFakeUserStore())

	var notified []*model.Principal
	sub := g.Subscribe(func(id string, p *model.Principal) { notified = append(notified, p) })
	defer sub.Close()

	principal, token, err := g.SignUp(context.Background(), "a@example.com", "secret1", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if token == "" {
		t.Fatal("SignUp returned no token")
	}
	if len(notified) != 1 || notified[0] == nil || notified[0].ID != principal.ID {
		t.Fatalf("subscriber saw %v, want the new principal", notified)
	}

	resolved, err := g.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if resolved.ID != principal.ID || resolved.Email != "a@example.com" {
		t.Fatalf("token resolved to %+v", resolved)
	}

	if _, _, err := g.SignIn(context.Background(), "a@example.com", "wrong"); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("bad password: got %v, want validation fault", err)
	}
	if _, _, err := g.SignIn(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestSignOutEmitsNilPrincipal(t *testing.T) {
	InitJWT("test-secret", time.Hour)
	g := NewGateway(newFakeUserStore())

	var got []*model.Principal
	sub := g.Subscribe(func(id string, p *model.Principal) { got = append(got, p) })
	defer sub.Close()

	g.SignOut("u1")
	if len(got) != 1 || got[0] != nil {
		t.Fatalf("subscriber saw %v, want a single nil", got)
	}
}

func TestClosedSubscriptionStopsReceiving(t *testing.T) {
	g := NewGateway(newFakeUserStore())

	calls := 0
	sub := g.Subscribe(func(id string, p *model.Principal) { calls++ })
	g.SignOut("u1")
	sub.Close()
	sub.Close() // idempotent
	g.SignOut("u1")

	if calls != 1 {
		t.Fatalf("subscriber called %d times, want 1", calls)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	InitJWT("test-secret", time.Hour)
	g := NewGateway(newFakeUserStore())
	if _, err := g.Authenticate("not-a-token"); !fault.IsKind(err, fault.KindPermission) {
		t.Fatalf("got %v, want permission fault", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	InitJWT("test-secret", time.Hour)
	g := NewGateway(newFakeUserStore())

	if _, _, err := g.SignUp(context.Background(), "", "secret1", "x"); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("empty email: got %v, want validation fault", err)
	}
	if _, _, err := g.SignUp(context.Background(), "a@example.com", "short", "x"); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("short password: got %v, want validation fault", err)
	}
}
