package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
)

// State is the lifecycle position of the session.
type State string

const (
	// StateInitializing lasts until the bootstrap fetch resolves.
	StateInitializing  State = "initializing"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// LocationMode selects which location endpoint SetLocation calls.
type LocationMode string

const (
	LocationAuto   LocationMode = "auto"
	LocationManual LocationMode = "manual"
)

// LocationRequest carries either coordinates (auto) or a free-text query
// (manual).
type LocationRequest struct {
	Mode  LocationMode
	Lat   float64
	Lng   float64
	Query string
}

// Session owns the current user and drives every credential exchange. It is
// constructed explicitly at process start and handed to consumers; there is
// no ambient global. All mutation happens through its methods, guarded by a
// single mutex, so consumers may share one Session across goroutines.
type Session struct {
	api    *client.Client
	store  client.TokenStore
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	user      *client.User
	lastError string

	bootstrapOnce sync.Once
	bootstrapErr  error
}

// New wires a session around an API client and its token store. The session
// registers itself as the client's session-expiry hook: when the pipeline
// gives up on a refresh, the session drops to anonymous.
func New(api *client.Client, store client.TokenStore, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		api:    api,
		store:  store,
		logger: logger,
		state:  StateInitializing,
	}
	api.SetSessionExpiredHook(s.expire)
	return s
}

// Bootstrap restores the session from persisted tokens. It runs the fetch at
// most once per process; repeated calls return the first outcome. After it
// returns, Loading reports false and the session is either authenticated or
// anonymous.
func (s *Session) Bootstrap(ctx context.Context) error {
	s.bootstrapOnce.Do(func() {
		s.bootstrapErr = s.bootstrap(ctx)
	})
	return s.bootstrapErr
}

func (s *Session) bootstrap(ctx context.Context) error {
	pair, err := s.store.Read()
	if err != nil || pair.AccessToken == "" {
		s.conclude(StateAnonymous, nil)
		return nil
	}

	user, err := s.api.Users().Me(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			// The pipeline already tried one refresh; the session is gone.
			if clearErr := s.store.Clear(); clearErr != nil {
				s.logger.Warn("failed to clear token store", zap.Error(clearErr))
			}
			s.conclude(StateAnonymous, nil)
			return nil
		}
		s.logger.Warn("bootstrap fetch failed", zap.Error(err))
		s.conclude(StateAnonymous, nil)
		return err
	}
	s.mu.Lock()
	s.user = user
	s.state = StateAuthenticated
	s.mu.Unlock()
	return nil
}

func (s *Session) conclude(state State, user *client.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.user = user
}

// Login exchanges an email/password pair for a session.
func (s *Session) Login(ctx context.Context, email, password string) (*client.User, error) {
	return s.establish(func() (*client.Credentials, error) {
		return s.api.Auth().Login(ctx, email, password)
	})
}

// LoginWithIdentityToken exchanges a Google ID token for a session.
func (s *Session) LoginWithIdentityToken(ctx context.Context, idToken string) (*client.User, error) {
	return s.establish(func() (*client.Credentials, error) {
		return s.api.Auth().LoginWithIDToken(ctx, idToken)
	})
}

// RequestCode asks the server to dispatch a one-time code. The session is
// untouched until the code is verified.
func (s *Session) RequestCode(ctx context.Context, identifier string) (string, error) {
	msg, err := s.api.Auth().RequestOTP(ctx, identifier)
	if err != nil {
		s.recordError(err)
		return "", err
	}
	return msg, nil
}

// VerifyCode exchanges the identifier and one-time code for a session.
func (s *Session) VerifyCode(ctx context.Context, identifier, code string) (*client.User, error) {
	return s.establish(func() (*client.Credentials, error) {
		return s.api.Auth().VerifyOTP(ctx, identifier, code)
	})
}

// Register creates an account and establishes the session in one exchange.
func (s *Session) Register(ctx context.Context, req client.RegisterRequest) (*client.User, error) {
	return s.establish(func() (*client.Credentials, error) {
		return s.api.Auth().Register(ctx, req)
	})
}

// establish runs a credential exchange and applies the shared post-condition:
// persist the pair, replace the current user. On failure the prior session
// state is left untouched.
func (s *Session) establish(exchange func() (*client.Credentials, error)) (*client.User, error) {
	creds, err := exchange()
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	if !creds.Tokens.Complete() {
		err := errors.New("server returned an incomplete token pair")
		s.recordError(err)
		return nil, err
	}
	if err := s.store.Write(creds.Tokens); err != nil {
		s.logger.Warn("failed to persist tokens", zap.Error(err))
	}
	user := creds.User
	s.mu.Lock()
	s.user = &user
	s.state = StateAuthenticated
	s.lastError = ""
	s.mu.Unlock()
	return &user, nil
}

// Logout revokes the session server-side on a best-effort basis, then always
// succeeds locally: tokens cleared, user dropped, state anonymous. Calling it
// while already anonymous is a no-op apart from clearing an empty store.
func (s *Session) Logout(ctx context.Context) {
	if err := s.api.Auth().Logout(ctx); err != nil {
		s.logger.Debug("server-side logout failed", zap.Error(err))
	}
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("failed to clear token store", zap.Error(err))
	}
	s.conclude(StateAnonymous, nil)
}

// UpdateProfile patches the profile and replaces the current user with the
// server's response.
func (s *Session) UpdateProfile(ctx context.Context, update client.UserUpdate) (*client.User, error) {
	user, err := s.api.Users().Update(ctx, update)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

// SetLocation calls the endpoint for the requested mode and merges the
// returned location fields into the current user in place. Authentication
// status is unaffected.
func (s *Session) SetLocation(ctx context.Context, req LocationRequest) (*client.Location, error) {
	var loc *client.Location
	var err error
	switch req.Mode {
	case LocationAuto:
		loc, err = s.api.Users().SetLocationAuto(ctx, req.Lat, req.Lng)
	case LocationManual:
		loc, err = s.api.Users().SetLocationManual(ctx, req.Query)
	default:
		return nil, errors.New("location mode must be auto or manual")
	}
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.Lat = loc.Lat
		s.user.Lng = loc.Lng
		s.user.LocationLabel = loc.LocationLabel
		s.user.LocationMode = string(req.Mode)
	}
	s.mu.Unlock()
	return loc, nil
}

// RefreshCurrentUser re-fetches /me and replaces the current user.
func (s *Session) RefreshCurrentUser(ctx context.Context) (*client.User, error) {
	user, err := s.api.Users().Me(ctx)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.state = StateAuthenticated
	s.mu.Unlock()
	return user, nil
}

// CurrentUser returns a copy of the current profile, or nil when anonymous.
func (s *Session) CurrentUser() *client.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// Loading reports whether the bootstrap fetch has resolved yet.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateInitializing
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the most recent user-facing failure message, cleared by the
// next successful exchange.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Client exposes the authenticated request function for collaborators
// (uploads, chat, doctors, nearby).
func (s *Session) Client() *client.Client {
	return s.api
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// expire runs when the request pipeline gives up on recovering the session.
// The store is already cleared; the bootstrap sequence, if still running,
// concludes on its own.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	if s.state == StateAuthenticated {
		s.state = StateAnonymous
	}
}
