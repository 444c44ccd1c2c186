// Package auth drives the two-step NIK -> OTP login flow and the session
// lifecycle around it. All credential persistence goes through the injected
// session store; nothing else writes session state.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/models"
	"github.com/bumisarana/absensi-client/session"
	"github.com/bumisarana/absensi-client/utils"
)

// State is the login flow position.
type State int

const (
	// StateAwaitingNik is the initial state: no OTP issued yet.
	StateAwaitingNik State = iota
	// StateAwaitingOtp means an OTP was issued and the flow waits for it.
	StateAwaitingOtp
	// StateAuthenticated is terminal for the session.
	StateAuthenticated
	// StateFailed is re-entrant: Reset (or a new RequestOTP) returns to AwaitingNik.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingOtp:
		return "awaiting-otp"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "awaiting-nik"
	}
}

// ValidationError reports an empty required field, caught before any network
// call is made.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// API is the slice of the remote API the auth flow needs.
type API interface {
	GenerateOTP(ctx context.Context, karNik string) error
	VerifyOTP(ctx context.Context, karNik, otp string, info models.BrowserInfo) (string, *models.User, error)
	VerifyToken(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context) error
}

// CheckResult is the outcome of CheckAuth.
type CheckResult struct {
	Authenticated bool
	User          *models.User
	// FromCache marks the offline fallback: the server could not be reached
	// and the locally cached credential was trusted instead.
	FromCache bool
}

// Flow is the login state machine. Safe for use from one goroutine at a time
// per operation; state reads are synchronized.
type Flow struct {
	api   API
	store session.Store
	info  models.BrowserInfo

	mu    sync.Mutex
	state State
	nik   string
}

// NewFlow creates a flow in AwaitingNik.
func NewFlow(api API, store session.Store, info models.BrowserInfo) *Flow {
	return &Flow{api: api, store: store, info: info, state: StateAwaitingNik}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reset returns a Failed flow to AwaitingNik.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateAwaitingNik
	f.nik = ""
}

// RequestOTP asks the server to issue an OTP for the NIK. On success the flow
// moves to AwaitingOtp; on any failure it stays in AwaitingNik and the error
// carries the reason. No retry happens automatically.
func (f *Flow) RequestOTP(ctx context.Context, karNik string) error {
	karNik = strings.TrimSpace(karNik)
	if karNik == "" {
		return &ValidationError{Field: "nik"}
	}

	if err := f.api.GenerateOTP(ctx, karNik); err != nil {
		f.mu.Lock()
		f.state = StateAwaitingNik
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.state = StateAwaitingOtp
	f.nik = karNik
	f.mu.Unlock()
	return nil
}

// VerifyOTP exchanges the OTP for a session credential and persists it. On
// success the flow is Authenticated. On rejection (wrong or expired OTP; the
// server's validity window is one minute) or network failure the flow moves
// to Failed, any partial credential is cleared, and the caller may retry by
// requesting a new OTP.
func (f *Flow) VerifyOTP(ctx context.Context, karNik, otp string) error {
	karNik = strings.TrimSpace(karNik)
	otp = strings.TrimSpace(otp)
	if karNik == "" {
		return &ValidationError{Field: "nik"}
	}
	if otp == "" {
		return &ValidationError{Field: "otp"}
	}

	token, user, err := f.api.VerifyOTP(ctx, karNik, otp, f.info)
	if err != nil {
		_ = f.store.Clear()
		f.mu.Lock()
		f.state = StateFailed
		f.mu.Unlock()
		return err
	}

	if err := f.store.SetToken(token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := f.store.SetUser(user); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	f.mu.Lock()
	f.state = StateAuthenticated
	f.nik = karNik
	f.mu.Unlock()
	utils.Sugar.Infow("login successful", "kar_nik", user.KarNik)
	return nil
}

// CheckAuth reports whether a usable session exists. With a stored credential
// it asks the server to confirm; confirmation refreshes the stored profile,
// explicit rejection clears the credential. A network failure degrades to
// trusting the cached credential: availability over strict consistency.
func (f *Flow) CheckAuth(ctx context.Context) (CheckResult, error) {
	token, err := f.store.Token()
	if err != nil {
		return CheckResult{}, fmt.Errorf("read token: %w", err)
	}
	user, err := f.store.User()
	if err != nil {
		return CheckResult{}, fmt.Errorf("read user: %w", err)
	}
	if token == "" || user == nil {
		_ = f.store.Clear()
		return CheckResult{}, nil
	}

	fresh, err := f.api.VerifyToken(ctx, token)
	if err != nil {
		if apiclient.IsNetworkError(err) {
			utils.Sugar.Warnw("token validation unreachable, trusting cached credential", "error", err)
			f.setState(StateAuthenticated)
			return CheckResult{Authenticated: true, User: user, FromCache: true}, nil
		}
		// Explicit rejection: the session is gone server-side.
		if clearErr := f.store.Clear(); clearErr != nil {
			return CheckResult{}, fmt.Errorf("clear rejected credential: %w", clearErr)
		}
		f.setState(StateAwaitingNik)
		return CheckResult{}, nil
	}

	if err := f.store.SetUser(fresh); err != nil {
		return CheckResult{}, fmt.Errorf("refresh user: %w", err)
	}
	f.setState(StateAuthenticated)
	return CheckResult{Authenticated: true, User: fresh}, nil
}

// Logout notifies the server best-effort, then unconditionally clears the
// local credential.
func (f *Flow) Logout(ctx context.Context) error {
	if err := f.api.Logout(ctx); err != nil {
		utils.Sugar.Warnw("logout notification failed", "error", err)
	}
	if err := f.store.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	f.mu.Lock()
	f.state = StateAwaitingNik
	f.nik = ""
	f.mu.Unlock()
	return nil
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
