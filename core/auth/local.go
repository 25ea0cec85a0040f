package auth

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/user"
)

const (
	minPasswordLength = 6
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepSize  = 1024
)

var emailRgx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalProvider authenticates users stored in the user.Service with bcrypt passwords.
// Sign-in attempts are rate limited per email.
type LocalProvider struct {
	usrSvc        user.Service
	disableSignUp bool
	limit         rate.Limit
	burst         int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(conf *core.Config, usrSvc user.Service) *LocalProvider {
	limit := rate.Limit(conf.Auth.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := conf.Auth.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &LocalProvider{
		usrSvc:        usrSvc,
		disableSignUp: conf.Auth.DisableSignUp,
		limit:         limit,
		burst:         burst,
		limiters:      make(map[string]*limiterEntry),
	}
}

func (p *LocalProvider) allow(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if len(p.limiters) >= limiterSweepSize {
		for key, entry := range p.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(p.limiters, key)
			}
		}
	}

	entry, ok := p.limiters[email]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.limiters[email] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (user.User, error) {
	email = core.CleanString(email, true /* lower */)
	if !emailRgx.MatchString(email) {
		return user.User{}, &ProviderError{Code: CodeInvalidEmail}
	}
	if !p.allow(email) {
		return user.User{}, &ProviderError{Code: CodeTooManyRequests}
	}

	usr, err := p.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, &ProviderError{Code: CodeUserNotFound}
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if !usr.IsActive {
		return user.User{}, &ProviderError{Code: CodeUserDisabled}
	}
	if err = usr.CheckPassword(password); err != nil {
		return user.User{}, &ProviderError{Code: CodeWrongPassword}
	}

	return p.usrSvc.SetLastLogin(ctx, usr)
}

func (p *LocalProvider) SignUp(ctx context.Context, nu user.NewUser) (user.User, error) {
	if p.disableSignUp {
		return user.User{}, &ProviderError{Code: CodeOperationNotAllowed}
	}
	nu.Clean()
	if !emailRgx.MatchString(nu.Email) {
		return user.User{}, &ProviderError{Code: CodeInvalidEmail}
	}
	if len(nu.Password) < minPasswordLength {
		return user.User{}, &ProviderError{Code: CodeWeakPassword}
	}

	usr, err := p.usrSvc.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, user.ErrEmailExists) {
			return user.User{}, &ProviderError{Code: CodeEmailAlreadyInUse}
		}
		return user.User{}, err
	}
	return usr, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, userID string) error {
	return p.usrSvc.SignOut(ctx, userID)
}
