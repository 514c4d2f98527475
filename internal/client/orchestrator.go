package client

import (
	"context"
	"sync"
	"time"

	"lighthouse/internal/email/dto"

	"go.uber.org/zap"
)

// tokenSkew refreshes ID tokens slightly before they actually expire.
const tokenSkew = time.Minute

// Outcome is where a pipeline run ended. Emails is set only when the fetch step ran and succeeded.
type Outcome struct {
	State      State
	Identity   *Identity
	EmailCount int
	Emails     *dto.GetUserEmailsResponse
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator sequences identity sign-in, the Gmail grant, the server-side token exchange
// and email retrieval. Operations are serialised; a failed step halts the run.
type Orchestrator struct {
	mu       sync.Mutex
	provider IdentityProvider
	backend  Backend
	store    SessionStore
	logger   *zap.SugaredLogger
	now      func() time.Time
	observer func(State)
	state    State
}

func NewOrchestrator(provider IdentityProvider, backend Backend, store SessionStore, logger *zap.SugaredLogger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	o := &Orchestrator{
		provider: provider,
		backend:  backend,
		store:    store,
		logger:   logger,
		now:      time.Now,
		state:    SignedOut,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the state reached by the last operation.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	if o.state == s {
		return
	}
	o.logger.Debugw("state transition", "from", o.state.String(), "to", s.String())
	o.state = s
	if o.observer != nil {
		o.observer(s)
	}
}

// halt moves to s and builds the outcome/error pair returned by a failed step.
func (o *Orchestrator) halt(s State, identity *Identity, step Step, message string, err error) (*Outcome, error) {
	o.setState(s)
	o.logger.Warnw("step failed", "step", string(step), "message", message, "error", err)
	return &Outcome{State: s, Identity: identity}, &StepError{Step: step, Message: message, Err: err}
}

// SignIn runs the full pipeline from interactive sign-in. Calling it again always restarts
// from the first step.
func (o *Orchestrator) SignIn(ctx context.Context) (*Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Clear(); err != nil {
		o.logger.Warnw("failed to clear stored session", "error", err)
	}

	o.setState(Authenticating)
	res, err := o.provider.SignIn(ctx)
	if err != nil {
		return o.halt(SignedOut, nil, StepSignIn, FriendlyMessage(err, MsgSignInFailed), err)
	}
	if res == nil || res.Identity == nil {
		return o.halt(SignedOut, nil, StepSignIn, MsgSignInFailed, nil)
	}
	identity := res.Identity
	o.saveSession(&Session{Identity: identity})
	o.logger.Infow("identity established", "uid", identity.UID, "email", identity.Email)

	grant := res.Grant
	if grant.empty() {
		o.setState(AwaitingGrant)
		grant, err = o.provider.RequestGrant(ctx, identity)
		if err != nil {
			return o.halt(SignedInNoEmails, identity, StepGrant, FriendlyMessage(err, MsgSignInFailed), err)
		}
		if grant.empty() {
			return o.halt(SignedInNoEmails, identity, StepGrant, MsgNoAuthCode, nil)
		}
	}

	o.setState(ExchangingTokens)
	login, err := o.backend.ProcessUserLogin(ctx, identity.IDToken, &dto.ProcessUserLoginRequest{
		AuthorizationCode: grant.AuthorizationCode,
		AccessToken:       grant.AccessToken,
		UID:               identity.UID,
	})
	if err != nil {
		return o.halt(SignedInNoEmails, identity, StepExchange, FriendlyMessage(err, MsgSignInFailed), err)
	}
	if !login.Success {
		msg := login.Message
		if msg == "" {
			msg = MsgSignInFailed
		}
		return o.halt(SignedInNoEmails, identity, StepExchange, msg, nil)
	}
	o.saveSession(&Session{Identity: identity, TokensExchanged: true})
	o.logger.Info(MsgSignedIn)

	o.setState(FetchingEmails)
	emails, err := o.backend.GetUserEmails(ctx, identity.IDToken)
	if err != nil {
		return o.halt(SignedInNoEmails, identity, StepFetch, MsgFetchFailed, err)
	}
	o.setState(SignedInWithEmails)
	return &Outcome{
		State:      SignedInWithEmails,
		Identity:   identity,
		EmailCount: login.EmailCount,
		Emails:     emails,
	}, nil
}

// Resume picks up a stored session. Emails are fetched only when a token exchange has
// completed for that session.
func (o *Orchestrator) Resume(ctx context.Context) (*Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.store.Load()
	if err != nil {
		return o.halt(SignedOut, nil, StepResume, MsgLoadFailed, err)
	}
	if sess == nil || sess.Identity == nil {
		o.setState(SignedOut)
		return &Outcome{State: SignedOut}, nil
	}

	identity, err := o.freshIdentity(ctx, sess)
	if err != nil {
		return o.halt(SignedOut, nil, StepResume, MsgLoadFailed, err)
	}
	if !sess.TokensExchanged {
		o.setState(SignedInNoEmails)
		return &Outcome{State: SignedInNoEmails, Identity: identity}, nil
	}

	emails, err := o.backend.GetUserEmails(ctx, identity.IDToken)
	if err != nil {
		return o.halt(SignedInNoEmails, identity, StepResume, MsgLoadFailed, err)
	}
	o.setState(SignedInWithEmails)
	return &Outcome{State: SignedInWithEmails, Identity: identity, Emails: emails}, nil
}

// RefreshTokens asks the server to refresh the stored Gmail access token.
func (o *Orchestrator) RefreshTokens(ctx context.Context) (*dto.StatusResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	identity, err := o.signedInIdentity(ctx, StepRefresh)
	if err != nil {
		return nil, err
	}
	resp, err := o.backend.RefreshUserTokens(ctx, identity.IDToken)
	if err != nil {
		return nil, &StepError{Step: StepRefresh, Message: FriendlyMessage(err, MsgRefreshFailed), Err: err}
	}
	return resp, nil
}

// DeleteData removes the caller's stored tokens and snapshot on the server. The session stays
// signed in but will not auto-fetch until the next sign-in.
func (o *Orchestrator) DeleteData(ctx context.Context) (*dto.StatusResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	identity, err := o.signedInIdentity(ctx, StepDelete)
	if err != nil {
		return nil, err
	}
	resp, err := o.backend.DeleteUserData(ctx, identity.IDToken)
	if err != nil {
		return nil, &StepError{Step: StepDelete, Message: FriendlyMessage(err, MsgDeleteFailed), Err: err}
	}
	o.saveSession(&Session{Identity: identity})
	o.setState(SignedInNoEmails)
	return resp, nil
}

// SignOut forgets the stored session.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Clear(); err != nil {
		o.logger.Warnw("sign out failed", "error", err)
		return &StepError{Step: StepSignOut, Message: MsgSignOutFailed, Err: err}
	}
	o.setState(SignedOut)
	return nil
}

// signedInIdentity loads the session for operations that need a caller.
func (o *Orchestrator) signedInIdentity(ctx context.Context, step Step) (*Identity, error) {
	sess, err := o.store.Load()
	if err != nil {
		return nil, &StepError{Step: step, Message: MsgLoadFailed, Err: err}
	}
	if sess == nil || sess.Identity == nil {
		o.setState(SignedOut)
		return nil, &StepError{Step: step, Message: MsgNotSignedIn}
	}
	identity, err := o.freshIdentity(ctx, sess)
	if err != nil {
		o.setState(SignedOut)
		return nil, &StepError{Step: step, Message: MsgLoadFailed, Err: err}
	}
	return identity, nil
}

// freshIdentity returns the session identity, refreshing its ID token when it is about to
// expire. A session whose token cannot be refreshed is cleared.
func (o *Orchestrator) freshIdentity(ctx context.Context, sess *Session) (*Identity, error) {
	identity := sess.Identity
	if !identity.Expired(o.now(), tokenSkew) {
		return identity, nil
	}
	o.logger.Debugw("refreshing id token", "uid", identity.UID)
	refreshed, err := o.provider.Refresh(ctx, identity)
	if err != nil {
		if clearErr := o.store.Clear(); clearErr != nil {
			o.logger.Warnw("failed to clear stored session", "error", clearErr)
		}
		return nil, err
	}
	o.saveSession(&Session{Identity: refreshed, TokensExchanged: sess.TokensExchanged})
	return refreshed, nil
}

func (o *Orchestrator) saveSession(sess *Session) {
	if err := o.store.Save(sess); err != nil {
		o.logger.Warnw("failed to persist session", "error", err)
	}
}
