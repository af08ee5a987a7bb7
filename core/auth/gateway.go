package auth

import (
	"context"
	"fmt"
	"sync"

	"EmberFM/core/fault"
	"EmberFM/logger"
	"EmberFM/model"
	"EmberFM/repository"

	"github.com/google/uuid"
)

// Gateway is the identity provider boundary. It owns credentials, issues
// tokens, and pushes principal-change notifications to subscribers. The
// lifecycle controller only ever reads the principal it emits.
type Gateway struct {
	users repository.UserRepository

	mu     sync.Mutex
	subs   map[int]func(principalID string, p *model.Principal)
	nextID int
}

// NewGateway creates a gateway backed by the given credential store.
func NewGateway(users repository.UserRepository) *Gateway {
	return &Gateway{
		users: users,
		subs:  make(map[int]func(string, *model.Principal)),
	}
}

// Subscription is an explicitly owned handle on the principal-change
// stream. Close detaches the listener; it is safe to call more than once.
type Subscription struct {
	once    sync.Once
	gateway *Gateway
	id      int
}

// Close tears the subscription down.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.gateway.mu.Lock()
		delete(s.gateway.subs, s.id)
		s.gateway.mu.Unlock()
	})
}

// Subscribe registers fn to receive principal changes. fn is invoked with
// the affected principal id and the new principal value (nil on sign-out).
func (g *Gateway) Subscribe(fn func(principalID string, p *model.Principal)) *Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	return &Subscription{gateway: g, id: id}
}

func (g *Gateway) notify(principalID string, p *model.Principal) {
	g.mu.Lock()
	fns := make([]func(string, *model.Principal), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	// 通知在锁外进行，订阅者回调里可能再操作网关
	for _, fn := range fns {
		fn(principalID, p)
	}
}

// SignUp registers a credential record and emits the new principal.
func (g *Gateway) SignUp(ctx context.Context, email, password, displayName string) (*model.Principal, string, error) {
	if email == "" || password == "" {
		return nil, "", fault.Newf(fault.KindValidation, "email and password are required")
	}
	if len(password) < 6 {
		return nil, "", fault.Newf(fault.KindValidation, "password must be at least 6 characters")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to process password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := g.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := GenerateToken(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	principal := user.Principal()
	logger.Info("[Gateway] 注册成功", logger.String("email", email))
	g.notify(principal.ID, principal)
	return principal, token, nil
}

// SignIn verifies credentials and emits the authenticated principal.
// Bad credentials come back as a validation fault so the handler can
// surface them inline instead of feeding them to the lifecycle machine.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*model.Principal, string, error) {
	user, err := g.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		logger.Warn("[Gateway] 登录失败", logger.String("email", email))
		return nil, "", fault.Newf(fault.KindValidation, "invalid email or password")
	}

	token, err := GenerateToken(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	principal := user.Principal()
	logger.Info("[Gateway] 登录成功", logger.String("email", email))
	g.notify(principal.ID, principal)
	return principal, token, nil
}

// SignOut emits a nil principal for the given id. Tokens are stateless,
// so this only exists to drive subscriber state machines.
func (g *Gateway) SignOut(principalID string) {
	logger.Info("[Gateway] 登出", logger.String("principalId", principalID))
	g.notify(principalID, nil)
}

// Authenticate resolves a bearer token back into a principal.
func (g *Gateway) Authenticate(tokenString string) (*model.Principal, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, fault.New(fault.KindPermission, err)
	}
	return &model.Principal{
		ID:          claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}
