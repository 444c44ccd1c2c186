package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/auth"
	"github.com/bumisarana/absensi-client/location"
	"github.com/bumisarana/absensi-client/models"
)

var (
	officeLoc = models.Location{Latitude: -7.538982, Longitude: 110.844009}
	// Roughly 2.2 km north of the office, well outside the geofence.
	farLoc = models.Location{Latitude: -7.519, Longitude: 110.844009}

	solo = &models.Unit{KdUnit: "SOLO01", NmUnit: "Kantor Solo", Latitude: officeLoc.Latitude, Longitude: officeLoc.Longitude}
	budi = &models.User{KarNik: "1234", KarNama: "Budi", KarKdUnit: "SOLO01"}
)

type fakeAuthn struct {
	res auth.CheckResult
	err error
}

func (f *fakeAuthn) CheckAuth(ctx context.Context) (auth.CheckResult, error) {
	return f.res, f.err
}

// fakeAPI serves Init and records submissions. After a successful submission
// the served record advances, mimicking the server persisting the event.
type fakeAPI struct {
	mu sync.Mutex

	unit      *models.Unit
	unitErr   error
	today     models.AttendanceRecord
	todayErr  error
	submitErr error

	// next replaces today after a successful submission.
	next *models.AttendanceRecord

	// blockSubmit, when non-nil, parks SubmitAttendance until closed.
	blockSubmit chan struct{}

	submissions []apiclient.Submission
	history     []map[string]any
}

func (f *fakeAPI) GetUnit(ctx context.Context, kdUnit string) (*models.Unit, error) {
	if f.unitErr != nil {
		return nil, f.unitErr
	}
	return f.unit, nil
}

func (f *fakeAPI) SubmitAttendance(ctx context.Context, sub apiclient.Submission) error {
	f.mu.Lock()
	block := f.blockSubmit
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submissions = append(f.submissions, sub)
	if f.next != nil {
		f.today = *f.next
		f.next = nil
	}
	return nil
}

func (f *fakeAPI) TodayAttendance(ctx context.Context, karNama string) (models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.today, f.todayErr
}

func (f *fakeAPI) AttendanceHistory(ctx context.Context, karNama string) ([]map[string]any, error) {
	return f.history, nil
}

func authenticated() *fakeAuthn {
	return &fakeAuthn{res: auth.CheckResult{Authenticated: true, User: budi}}
}

func newReady(t *testing.T, api *fakeAPI, loc models.Location) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(api, authenticated(), &location.Static{Loc: loc})
	o.now = func() time.Time { return time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC) }
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return o
}

func TestInit_Unauthenticated(t *testing.T) {
	o := NewOrchestrator(&fakeAPI{}, &fakeAuthn{}, &location.Static{Loc: officeLoc})
	if err := o.Init(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Init error = %v, want ErrNotAuthenticated", err)
	}
}

func TestInit_LoadsState(t *testing.T) {
	api := &fakeAPI{unit: solo}
	o := newReady(t, api, officeLoc)

	snap := o.Snapshot()
	if snap.User.KarNik != "1234" || snap.Unit.KdUnit != "SOLO01" {
		t.Errorf("snapshot user/unit = %+v / %+v", snap.User, snap.Unit)
	}
	if !snap.HasLocation || !snap.WithinRange {
		t.Errorf("snapshot location = %+v", snap)
	}
	if snap.Status != "not-started" || !snap.CanCheckIn || snap.CanCheckOut {
		t.Errorf("fresh day snapshot = %+v", snap)
	}
}

func TestInit_LocationFailureNotFatal(t *testing.T) {
	api := &fakeAPI{unit: solo}
	o := NewOrchestrator(api, authenticated(), location.NewManual())
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	snap := o.Snapshot()
	if snap.HasLocation {
		t.Error("no reading was available, HasLocation must be false")
	}
	if snap.CanCheckIn {
		t.Error("geofence gate must stay closed without a location")
	}
	if err := o.CheckIn(context.Background()); !errors.Is(err, ErrNoLocation) {
		t.Errorf("CheckIn error = %v, want ErrNoLocation", err)
	}
}

func TestCheckIn_Success(t *testing.T) {
	api := &fakeAPI{
		unit: solo,
		next: &models.AttendanceRecord{CheckInTime: "08:00:01"},
	}
	o := newReady(t, api, officeLoc)

	if err := o.CheckIn(context.Background()); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	if len(api.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(api.submissions))
	}
	sub := api.submissions[0]
	if sub.KarNik != "1234" || sub.KdCabang != "SOLO01" {
		t.Errorf("submission = %+v", sub)
	}
	if sub.Tanggal != "2026-08-28 08:00:00" {
		t.Errorf("tanggal = %q", sub.Tanggal)
	}
	if sub.Latitude != "-7.538982" || sub.Longitude != "110.844009" {
		t.Errorf("coordinates = %q, %q", sub.Latitude, sub.Longitude)
	}

	snap := o.Snapshot()
	if snap.Status != "checked-in" {
		t.Errorf("status after reload = %q", snap.Status)
	}
	if snap.CanCheckIn || !snap.CanCheckOut {
		t.Errorf("gates after check-in = %+v", snap)
	}
}

func TestCheckIn_AlreadyCheckedInRegardlessOfRange(t *testing.T) {
	api := &fakeAPI{
		unit:  solo,
		today: models.AttendanceRecord{CheckInTime: "07:55:00"},
	}
	// Device is far from the unit: the state gate must fire first and no
	// submission may happen either way.
	o := newReady(t, api, farLoc)

	if err := o.CheckIn(context.Background()); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Errorf("CheckIn error = %v, want ErrAlreadyCheckedIn", err)
	}
	if len(api.submissions) != 0 {
		t.Error("gated action must not submit")
	}
}

func TestOutOfRange_BlocksBothActions(t *testing.T) {
	api := &fakeAPI{
		unit:  solo,
		today: models.AttendanceRecord{CheckInTime: "07:55:00"},
	}
	o := newReady(t, api, farLoc)

	if err := o.CheckOut(context.Background()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("CheckOut error = %v, want ErrOutOfRange", err)
	}

	api2 := &fakeAPI{unit: solo}
	o2 := newReady(t, api2, farLoc)
	if err := o2.CheckIn(context.Background()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("CheckIn error = %v, want ErrOutOfRange", err)
	}
	if len(api.submissions)+len(api2.submissions) != 0 {
		t.Error("out-of-range actions must not submit")
	}

	snap := o.Snapshot()
	if snap.CanCheckIn || snap.CanCheckOut {
		t.Errorf("out-of-range gates = %+v", snap)
	}
}

func TestCheckOut_RequiresCheckIn(t *testing.T) {
	api := &fakeAPI{unit: solo}
	o := newReady(t, api, officeLoc)

	if err := o.CheckOut(context.Background()); !errors.Is(err, ErrNotCheckedIn) {
		t.Errorf("CheckOut error = %v, want ErrNotCheckedIn", err)
	}
}

func TestCheckOut_CompletedDay(t *testing.T) {
	api := &fakeAPI{
		unit:  solo,
		today: models.AttendanceRecord{CheckInTime: "08:00:00", CheckOutTime: "17:00:00"},
	}
	o := newReady(t, api, officeLoc)

	if err := o.CheckOut(context.Background()); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Errorf("CheckOut error = %v, want ErrAlreadyCheckedOut", err)
	}
	snap := o.Snapshot()
	if snap.Status != "completed" || snap.CanCheckIn || snap.CanCheckOut {
		t.Errorf("completed day snapshot = %+v", snap)
	}
}

func TestCheckIn_InFlightRejectsSecondCall(t *testing.T) {
	block := make(chan struct{})
	api := &fakeAPI{unit: solo, blockSubmit: block}
	o := newReady(t, api, officeLoc)

	done := make(chan error, 1)
	go func() { done <- o.CheckIn(context.Background()) }()

	// Wait for the first call to pass the gates and mark itself in flight.
	deadline := time.After(2 * time.Second)
	for {
		o.mu.Lock()
		busy := o.checkingIn
		o.mu.Unlock()
		if busy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first CheckIn never became in-flight")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := o.CheckIn(context.Background()); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("second CheckIn error = %v, want ErrActionInFlight", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}
	if len(api.submissions) != 1 {
		t.Errorf("submissions = %d, want 1", len(api.submissions))
	}
}

func TestCheckIn_SubmitFailureClearsInFlight(t *testing.T) {
	api := &fakeAPI{unit: solo, submitErr: errors.New("HTTP 500")}
	o := newReady(t, api, officeLoc)

	if err := o.CheckIn(context.Background()); err == nil {
		t.Fatal("expected submission error")
	}
	snap := o.Snapshot()
	if snap.Status != "not-started" {
		t.Errorf("failed submission must leave today unchanged, status = %q", snap.Status)
	}

	// The in-flight flag cleared: a retry reaches the API again.
	api.submitErr = nil
	if err := o.CheckIn(context.Background()); err != nil {
		t.Fatalf("retry CheckIn: %v", err)
	}
	if len(api.submissions) != 1 {
		t.Errorf("submissions = %d, want 1", len(api.submissions))
	}
}

func TestRefreshLocation_FailureKeepsLastReading(t *testing.T) {
	api := &fakeAPI{unit: solo}
	manual := location.NewManual()
	if err := manual.Set(officeLoc); err != nil {
		t.Fatalf("Set: %v", err)
	}
	o := NewOrchestrator(api, authenticated(), manual)
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Swap in a provider that now fails; the office reading must survive.
	o.provider = location.NewManual()
	if err := o.RefreshLocation(context.Background()); !errors.Is(err, location.ErrUnavailable) {
		t.Errorf("RefreshLocation error = %v, want ErrUnavailable", err)
	}
	snap := o.Snapshot()
	if !snap.HasLocation || !snap.WithinRange {
		t.Errorf("last known reading lost: %+v", snap)
	}
}

func TestHistory(t *testing.T) {
	api := &fakeAPI{
		unit:    solo,
		history: []map[string]any{{"tanggal": "2026-08-27", "_IN": "08:01:12", "_OUT": "17:03:40"}},
	}
	o := newReady(t, api, officeLoc)

	entries, err := o.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0]["_IN"] != "08:01:12" {
		t.Errorf("entries = %+v", entries)
	}

	fresh := NewOrchestrator(api, authenticated(), &location.Static{Loc: officeLoc})
	if _, err := fresh.History(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("History before Init error = %v, want ErrNotAuthenticated", err)
	}
}
