// Package attendance drives the dashboard flow: load the session's user, the
// unit's registered location, and today's record, then gate check-in and
// check-out on the 500 m geofence and on today's state.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/auth"
	"github.com/bumisarana/absensi-client/geo"
	"github.com/bumisarana/absensi-client/location"
	"github.com/bumisarana/absensi-client/models"
	"github.com/bumisarana/absensi-client/utils"
)

// RangeThresholdMeters is the geofence radius for attendance actions.
const RangeThresholdMeters = geo.DefaultRadiusMeters

// tanggalLayout matches the upstream API's timestamp format. Timestamps are
// UTC, as in the original client.
const tanggalLayout = "2006-01-02 15:04:05"

// Gate sentinels. These are policy denials, not faults: the corresponding
// action is disabled, nothing was submitted.
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrActionInFlight    = errors.New("an attendance action is already in flight")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrAlreadyCheckedOut = errors.New("already checked out today")
	ErrNotCheckedIn      = errors.New("cannot check out before checking in")
	ErrOutOfRange        = errors.New("outside the permitted range of the unit")
	ErrNoLocation        = errors.New("current location unknown")
)

// API is the slice of the remote API the orchestrator needs.
type API interface {
	GetUnit(ctx context.Context, kdUnit string) (*models.Unit, error)
	SubmitAttendance(ctx context.Context, sub apiclient.Submission) error
	TodayAttendance(ctx context.Context, karNama string) (models.AttendanceRecord, error)
	AttendanceHistory(ctx context.Context, karNama string) ([]map[string]any, error)
}

// Authenticator verifies the stored session, normally *auth.Flow.
type Authenticator interface {
	CheckAuth(ctx context.Context) (auth.CheckResult, error)
}

// Snapshot is the dashboard view of the orchestrator's state. The Can* flags
// mirror the disabled state of the original's buttons.
type Snapshot struct {
	User   models.User             `json:"user"`
	Unit   models.Unit             `json:"unit"`
	Today  models.AttendanceRecord `json:"today"`
	Status string                  `json:"status"`

	HasLocation    bool             `json:"has_location"`
	Location       *models.Location `json:"location,omitempty"`
	DistanceMeters float64          `json:"distance_meters"`
	WithinRange    bool             `json:"within_range"`

	CanCheckIn  bool `json:"can_check_in"`
	CanCheckOut bool `json:"can_check_out"`
}

// Orchestrator owns the dashboard state. Create one per authenticated
// session via Init.
type Orchestrator struct {
	api      API
	authn    Authenticator
	provider location.Provider

	mu          sync.Mutex
	user        *models.User
	unit        *models.Unit
	today       models.AttendanceRecord
	loc         models.Location
	hasLoc      bool
	checkingIn  bool
	checkingOut bool

	now func() time.Time
}

// NewOrchestrator wires the orchestrator; call Init before anything else.
func NewOrchestrator(api API, authn Authenticator, provider location.Provider) *Orchestrator {
	return &Orchestrator{
		api:      api,
		authn:    authn,
		provider: provider,
		now:      time.Now,
	}
}

// Init verifies authentication, loads the unit and today's record, and takes
// an initial location reading. A failed location reading is not fatal; the
// dashboard starts without a position and the geofence gate stays closed.
func (o *Orchestrator) Init(ctx context.Context) error {
	res, err := o.authn.CheckAuth(ctx)
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	if !res.Authenticated {
		return ErrNotAuthenticated
	}

	unit, err := o.api.GetUnit(ctx, res.User.KarKdUnit)
	if err != nil {
		return fmt.Errorf("load unit %s: %w", res.User.KarKdUnit, err)
	}
	today, err := o.api.TodayAttendance(ctx, res.User.KarNama)
	if err != nil {
		return fmt.Errorf("load today's attendance: %w", err)
	}

	o.mu.Lock()
	o.user = res.User
	o.unit = unit
	o.today = today
	o.mu.Unlock()

	if err := o.RefreshLocation(ctx); err != nil {
		utils.Sugar.Warnw("initial location reading failed", "error", err)
	}
	return nil
}

// RefreshLocation takes a fresh device reading. On failure the last known
// location is kept and the error is reported.
func (o *Orchestrator) RefreshLocation(ctx context.Context) error {
	loc, err := o.provider.Current(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.loc = loc
	o.hasLoc = true
	o.mu.Unlock()
	return nil
}

// CheckIn submits today's check-in. Gated on: no check-in already in flight,
// today's check-in half still empty, a known location inside the geofence.
// After submission today's record is reloaded from the server; the in-flight
// flag clears on every path.
func (o *Orchestrator) CheckIn(ctx context.Context) error {
	o.mu.Lock()
	if o.user == nil || o.unit == nil {
		o.mu.Unlock()
		return ErrNotAuthenticated
	}
	if o.checkingIn {
		o.mu.Unlock()
		return ErrActionInFlight
	}
	// State gates come before the range gate: an existing check-in disables
	// the action regardless of where the device is.
	if o.today.HasCheckedIn() {
		o.mu.Unlock()
		return ErrAlreadyCheckedIn
	}
	if err := o.rangeGateLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.checkingIn = true
	sub := o.submissionLocked()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.checkingIn = false
		o.mu.Unlock()
	}()

	return o.submitAndReload(ctx, "check-in", sub)
}

// CheckOut submits today's check-out. Additionally gated on a populated
// check-in half: a day never checks out before it checks in.
func (o *Orchestrator) CheckOut(ctx context.Context) error {
	o.mu.Lock()
	if o.user == nil || o.unit == nil {
		o.mu.Unlock()
		return ErrNotAuthenticated
	}
	if o.checkingOut {
		o.mu.Unlock()
		return ErrActionInFlight
	}
	if !o.today.HasCheckedIn() {
		o.mu.Unlock()
		return ErrNotCheckedIn
	}
	if o.today.HasCheckedOut() {
		o.mu.Unlock()
		return ErrAlreadyCheckedOut
	}
	if err := o.rangeGateLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.checkingOut = true
	sub := o.submissionLocked()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.checkingOut = false
		o.mu.Unlock()
	}()

	return o.submitAndReload(ctx, "check-out", sub)
}

// Reload refreshes today's record from the server.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	user := o.user
	o.mu.Unlock()
	if user == nil {
		return ErrNotAuthenticated
	}

	today, err := o.api.TodayAttendance(ctx, user.KarNama)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.today = today
	o.mu.Unlock()
	return nil
}

// History returns past attendance entries for the session's user.
func (o *Orchestrator) History(ctx context.Context) ([]map[string]any, error) {
	o.mu.Lock()
	user := o.user
	o.mu.Unlock()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return o.api.AttendanceHistory(ctx, user.KarNama)
}

// Snapshot returns the current dashboard view.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		Today:  o.today,
		Status: o.today.Status().String(),
	}
	if o.user != nil {
		snap.User = *o.user
	}
	if o.unit != nil {
		snap.Unit = *o.unit
	}
	if o.hasLoc {
		loc := o.loc
		snap.HasLocation = true
		snap.Location = &loc
		if o.unit != nil {
			if d, err := geo.Distance(loc, o.unit.Location()); err == nil {
				snap.DistanceMeters = d
				snap.WithinRange = geo.WithinRange(d, RangeThresholdMeters)
			}
		}
	}

	snap.CanCheckIn = !o.checkingIn && !o.today.HasCheckedIn() && snap.WithinRange
	snap.CanCheckOut = !o.checkingOut && o.today.HasCheckedIn() && !o.today.HasCheckedOut() && snap.WithinRange
	return snap
}

// rangeGateLocked enforces the geofence. Caller holds o.mu.
func (o *Orchestrator) rangeGateLocked() error {
	if !o.hasLoc {
		return ErrNoLocation
	}
	d, err := geo.Distance(o.loc, o.unit.Location())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoLocation, err)
	}
	if !geo.WithinRange(d, RangeThresholdMeters) {
		return fmt.Errorf("%w: %.0f m from %s", ErrOutOfRange, d, o.unit.NmUnit)
	}
	return nil
}

// submissionLocked builds the attendance event payload. Caller holds o.mu.
func (o *Orchestrator) submissionLocked() apiclient.Submission {
	return apiclient.Submission{
		KarNik:    o.user.KarNik,
		Tanggal:   o.now().UTC().Format(tanggalLayout),
		KdCabang:  o.user.KarKdUnit,
		Latitude:  strconv.FormatFloat(o.loc.Latitude, 'f', -1, 64),
		Longitude: strconv.FormatFloat(o.loc.Longitude, 'f', -1, 64),
	}
}

// submitAndReload posts the event and refreshes today's record so the local
// state mirrors what the server accepted. A failed reload after a committed
// submission is logged, not surfaced: the submission itself succeeded.
func (o *Orchestrator) submitAndReload(ctx context.Context, kind string, sub apiclient.Submission) error {
	if err := o.api.SubmitAttendance(ctx, sub); err != nil {
		utils.Sugar.Warnw("attendance submission failed", "kind", kind, "error", err)
		return err
	}
	utils.Sugar.Infow("attendance submitted", "kind", kind, "tanggal", sub.Tanggal)

	if err := o.Reload(ctx); err != nil {
		utils.Sugar.Warnw("reload after submission failed", "kind", kind, "error", err)
	}
	return nil
}
