package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EmberFM/core/auth"
	"EmberFM/core/clock"
	"EmberFM/core/fault"
	"EmberFM/logger"
	"EmberFM/model"
	"EmberFM/repository"
)

// KVStore is the local key-value fallback used when the profile store
// rejects the onboarding-completion write. Values are plain strings.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

func onboardedFallbackKey(principalID string) string {
	return "lifecycle:onboarded:" + principalID
}

// SetupRequest carries the mandatory-setup form fields.
type SetupRequest struct {
	DisplayName string     `json:"displayName"`
	Role        model.Role `json:"role"`
	Bio         string     `json:"bio"`
	AvatarURL   string     `json:"avatarUrl"`
}

// Controller owns the session/profile lifecycle state machine for one
// principal slot. All inputs funnel through SetPrincipal and the
// completion operations; State() is derived, never stored.
//
// Cancellation works through a generation token: every principal change
// bumps it, and every timer callback and in-flight fetch checks it before
// touching controller state, so a stale resolution can never corrupt the
// now-current session.
type Controller struct {
	profiles repository.ProfileRepository
	kv       KVStore
	clk      clock.Clock
	policy   RetryPolicy

	// fetchTimeout bounds both the initial wait for a gateway report and
	// each individual store call.
	fetchTimeout time.Duration

	mu         sync.Mutex
	generation int
	principal  *model.Principal
	profile    *model.Profile
	outcome    FetchOutcome
	failKind   fault.Kind
	retryTimer clock.Timer
	guardTimer clock.Timer
	sub        *auth.Subscription
	closed     bool

	listeners []func(State)
}

// NewController wires a controller. kv may be nil when no local fallback
// storage is available.
func NewController(profiles repository.ProfileRepository, kv KVStore, clk clock.Clock, policy RetryPolicy, fetchTimeout time.Duration) *Controller {
	return &Controller{
		profiles:     profiles,
		kv:           kv,
		clk:          clk,
		policy:       policy,
		fetchTimeout: fetchTimeout,
		outcome:      FetchIdle,
	}
}

// Bind subscribes the controller to gateway events for one principal id.
// The subscription is owned by the controller and released in Close.
func (c *Controller) Bind(gw *auth.Gateway, principalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return
	}
	c.sub = gw.Subscribe(func(id string, p *model.Principal) {
		if id == principalID {
			c.SetPrincipal(p)
		}
	})
}

// Start arms the bounded wait: if the gateway has not reported within the
// fetch timeout, fall back to the auth forms so the UI never hangs.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guardTimer != nil || c.outcome != FetchIdle {
		return
	}
	gen := c.generation
	c.guardTimer = c.clk.AfterFunc(c.fetchTimeout, func() {
		c.mu.Lock()
		if c.generation != gen || c.closed || c.outcome != FetchIdle {
			c.mu.Unlock()
			return
		}
		// Nothing arrived in time; present the auth forms.
		c.outcome = FetchPending
		c.mu.Unlock()
		logger.Warn("[Lifecycle] 等待认证回调超时，回退到未登录状态")
		c.notify()
	})
}

// Close cancels pending work and tears down the gateway subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	c.stopTimersLocked()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (c *Controller) stopTimersLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.guardTimer != nil {
		c.guardTimer.Stop()
		c.guardTimer = nil
	}
}

// SetPrincipal is the gateway push. A nil principal is a sign-out; any
// pending retry or timeout chain for the previous principal is cancelled
// before the new one is processed.
func (c *Controller) SetPrincipal(p *model.Principal) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	gen := c.generation
	c.stopTimersLocked()
	c.principal = p
	c.profile = nil // clear the local profile cache
	c.outcome = FetchPending
	c.mu.Unlock()

	c.notify()
	if p != nil {
		go c.attempt(gen, *p, 1)
	}
}

func (c *Controller) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen || c.closed
}

// attempt runs one profile fetch. NotFound materializes a minimal
// document; failures go through the retry policy.
func (c *Controller) attempt(gen int, principal model.Principal, attemptNo int) {
	if c.stale(gen) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	record, err := c.profiles.Get(ctx, principal.ID)
	if err != nil && fault.IsKind(err, fault.KindNotFound) {
		profile := NewMinimalProfile(&principal)
		if cerr := c.profiles.Create(ctx, profile); cerr != nil {
			err = cerr
		} else {
			logger.Info("[Lifecycle] 已为新用户创建档案",
				logger.String("principalId", principal.ID),
				logger.Bool("setupComplete", profile.SetupComplete))
			record = &model.ProfileRecord{Profile: *profile, HasSetupComplete: true, HasOnboarded: true}
			err = nil
		}
	}
	if c.stale(gen) {
		return
	}

	verdict, kind := c.policy.Classify(err, attemptNo)
	switch verdict {
	case VerdictOk:
		c.finishFetch(gen, principal, record)
	case VerdictRetry:
		wait := c.policy.Backoff(attemptNo)
		logger.Warn("[Lifecycle] 档案拉取失败，稍后重试",
			logger.String("principalId", principal.ID),
			logger.Int("attempt", attemptNo),
			logger.Duration("backoff", wait),
			logger.ErrorField(err))
		c.mu.Lock()
		if c.generation != gen || c.closed {
			c.mu.Unlock()
			return
		}
		c.retryTimer = c.clk.AfterFunc(wait, func() {
			if c.stale(gen) {
				return
			}
			c.attempt(gen, principal, attemptNo+1)
		})
		c.mu.Unlock()
	case VerdictFatal:
		logger.Error("[Lifecycle] 档案拉取最终失败",
			logger.String("principalId", principal.ID),
			logger.Int("attempt", attemptNo),
			logger.String("kind", kind.String()),
			logger.ErrorField(err))
		c.mu.Lock()
		if c.generation != gen || c.closed {
			c.mu.Unlock()
			return
		}
		c.outcome = FetchFailed
		c.failKind = kind
		c.mu.Unlock()
		c.notify()
	}
}

// finishFetch applies the migration rule, reconciles the local onboarded
// fallback, installs the profile and advances the state machine.
func (c *Controller) finishFetch(gen int, principal model.Principal, record *model.ProfileRecord) {
	profile, patch, migrated := MigrateRecord(record)

	// A previous onboarding-completion write may have landed only in the
	// local fallback; honor it and try to reconcile with the store.
	if !profile.Onboarded && c.kv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if v, err := c.kv.Get(ctx, onboardedFallbackKey(principal.ID)); err == nil && v == "true" {
			profile.Onboarded = true
			patch.Onboarded = model.BoolPtr(true)
			migrated = true
		}
		cancel()
	}

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		return
	}
	p := profile
	c.profile = &p
	c.outcome = FetchResolved
	c.mu.Unlock()
	c.notify()

	if migrated {
		// Idempotent write-back; the in-memory defaults stand either way.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
			defer cancel()
			if err := c.profiles.Patch(ctx, principal.ID, patch); err != nil {
				logger.Warn("[Lifecycle] 档案迁移回写失败",
					logger.String("principalId", principal.ID),
					logger.ErrorField(err))
				return
			}
			if patch.Onboarded != nil && *patch.Onboarded && c.kv != nil {
				kvCtx, kvCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer kvCancel()
				_ = c.kv.Del(kvCtx, onboardedFallbackKey(principal.ID))
			}
		}()
	}
}

// Retry restarts the whole fetch sequence after an AuthError, on explicit
// user action.
func (c *Controller) Retry() {
	c.mu.Lock()
	if c.closed || c.principal == nil {
		c.mu.Unlock()
		return
	}
	c.generation++
	gen := c.generation
	c.stopTimersLocked()
	principal := *c.principal
	c.outcome = FetchPending
	c.mu.Unlock()

	c.notify()
	go c.attempt(gen, principal, 1)
}

// CompleteSetup writes the setup form and raises setupComplete.
func (c *Controller) CompleteSetup(ctx context.Context, req SetupRequest) error {
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return fault.Newf(fault.KindValidation, "no profile loaded")
	}
	principalID := c.profile.ID
	role := c.profile.Role
	c.mu.Unlock()

	if req.Role != "" {
		role = req.Role
	}
	if role == model.RoleArtist && req.Bio == "" {
		return fault.Newf(fault.KindValidation, "artists must describe their craft")
	}
	if req.DisplayName == "" {
		return fault.Newf(fault.KindValidation, "display name is required")
	}

	patch := model.ProfilePatch{
		DisplayName:   model.StringPtr(req.DisplayName),
		Role:          &role,
		Bio:           model.StringPtr(req.Bio),
		SetupComplete: model.BoolPtr(true),
	}
	if req.AvatarURL != "" {
		patch.AvatarURL = model.StringPtr(req.AvatarURL)
	}
	if err := c.profiles.Patch(ctx, principalID, patch); err != nil {
		return fmt.Errorf("failed to complete setup: %w", err)
	}

	c.mu.Lock()
	if c.profile != nil && c.profile.ID == principalID {
		c.profile.DisplayName = req.DisplayName
		c.profile.Role = role
		c.profile.Bio = req.Bio
		if req.AvatarURL != "" {
			c.profile.AvatarURL = req.AvatarURL
		}
		c.profile.SetupComplete = true
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// SkipSetup raises setupComplete without touching the other fields.
func (c *Controller) SkipSetup(ctx context.Context) error {
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return fault.Newf(fault.KindValidation, "no profile loaded")
	}
	principalID := c.profile.ID
	c.mu.Unlock()

	if err := c.profiles.Patch(ctx, principalID, model.ProfilePatch{SetupComplete: model.BoolPtr(true)}); err != nil {
		return fmt.Errorf("failed to skip setup: %w", err)
	}

	c.mu.Lock()
	if c.profile != nil && c.profile.ID == principalID {
		c.profile.SetupComplete = true
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// CompleteOnboarding raises the onboarded flag. The dashboard must never
// be blocked on this write: if the store rejects it, the flag is parked in
// local storage and the controller advances anyway.
func (c *Controller) CompleteOnboarding(ctx context.Context) error {
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return fault.Newf(fault.KindValidation, "no profile loaded")
	}
	principalID := c.profile.ID
	c.mu.Unlock()

	if err := c.profiles.Patch(ctx, principalID, model.ProfilePatch{Onboarded: model.BoolPtr(true)}); err != nil {
		logger.Warn("[Lifecycle] 引导完成写入失败，降级到本地存储",
			logger.String("principalId", principalID),
			logger.ErrorField(err))
		if c.kv != nil {
			if kvErr := c.kv.Set(ctx, onboardedFallbackKey(principalID), "true"); kvErr != nil {
				logger.Warn("[Lifecycle] 本地存储写入也失败", logger.ErrorField(kvErr))
			}
		}
	}

	c.mu.Lock()
	if c.profile != nil && c.profile.ID == principalID {
		c.profile.Onboarded = true
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// ResetOnboarding lets the user replay the tutorial. This is explicit
// intent, not a stale write, so it is allowed to lower the flag.
func (c *Controller) ResetOnboarding(ctx context.Context) error {
	c.mu.Lock()
	if c.profile == nil {
		c.mu.Unlock()
		return fault.Newf(fault.KindValidation, "no profile loaded")
	}
	principalID := c.profile.ID
	c.mu.Unlock()

	if err := c.profiles.Patch(ctx, principalID, model.ProfilePatch{Onboarded: model.BoolPtr(false)}); err != nil {
		return fmt.Errorf("failed to reset onboarding: %w", err)
	}
	if c.kv != nil {
		_ = c.kv.Del(ctx, onboardedFallbackKey(principalID))
	}

	c.mu.Lock()
	if c.profile != nil && c.profile.ID == principalID {
		c.profile.Onboarded = false
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// State derives the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeState(c.principal, c.profile, c.outcome)
}

// Profile returns a copy of the cached profile, or nil before resolution.
func (c *Controller) Profile() *model.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// Principal returns the current principal, nil when signed out.
func (c *Controller) Principal() *model.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.principal == nil {
		return nil
	}
	p := *c.principal
	return &p
}

// FailKind reports why the last fetch failed; meaningful in AuthError.
func (c *Controller) FailKind() fault.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failKind
}

// OnChange registers a state listener, invoked after every transition.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	state := ComputeState(c.principal, c.profile, c.outcome)
	fns := make([]func(State), len(c.listeners))
	copy(fns, c.listeners)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}
