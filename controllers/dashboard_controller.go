package controllers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/attendance"
	"github.com/bumisarana/absensi-client/location"
	"github.com/bumisarana/absensi-client/models"
	"github.com/bumisarana/absensi-client/utils"
)

// DashboardController serves the attendance dashboard: snapshot, location
// pushes from the browser, the two attendance actions, and history.
type DashboardController struct {
	orch *attendance.Orchestrator
	// manual receives browser geolocation readings; nil when the gateway
	// runs with a static or command provider.
	manual *location.Manual

	initMu sync.Mutex
	inited bool
}

func NewDashboardController(orch *attendance.Orchestrator, manual *location.Manual) *DashboardController {
	return &DashboardController{orch: orch, manual: manual}
}

// ensureInit lazily loads the orchestrator on the first dashboard request,
// after the session cookie exists but possibly before any action.
func (d *DashboardController) ensureInit(ctx *gin.Context) bool {
	d.initMu.Lock()
	defer d.initMu.Unlock()
	if d.inited {
		return true
	}
	if err := d.orch.Init(ctx.Request.Context()); err != nil {
		writeAttendanceError(ctx, err)
		return false
	}
	d.inited = true
	return true
}

// Snapshot returns the dashboard view: user, unit, today's record, distance
// and the action gates.
func (d *DashboardController) Snapshot(ctx *gin.Context) {
	if !d.ensureInit(ctx) {
		return
	}
	utils.Success(ctx, d.orch.Snapshot())
}

// UpdateLocation accepts a fresh browser geolocation reading and returns the
// recomputed snapshot.
func (d *DashboardController) UpdateLocation(ctx *gin.Context) {
	if !d.ensureInit(ctx) {
		return
	}

	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "latitude and longitude are required")
		return
	}

	if d.manual != nil {
		if err := d.manual.Set(models.Location{Latitude: req.Latitude, Longitude: req.Longitude}); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40031, "coordinates out of range")
			return
		}
	}
	if err := d.orch.RefreshLocation(ctx.Request.Context()); err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50330, "location unavailable")
		return
	}
	utils.Success(ctx, d.orch.Snapshot())
}

// CheckIn submits today's check-in.
func (d *DashboardController) CheckIn(ctx *gin.Context) {
	if !d.ensureInit(ctx) {
		return
	}
	if err := d.orch.CheckIn(ctx.Request.Context()); err != nil {
		writeAttendanceError(ctx, err)
		return
	}
	utils.Success(ctx, d.orch.Snapshot())
}

// CheckOut submits today's check-out.
func (d *DashboardController) CheckOut(ctx *gin.Context) {
	if !d.ensureInit(ctx) {
		return
	}
	if err := d.orch.CheckOut(ctx.Request.Context()); err != nil {
		writeAttendanceError(ctx, err)
		return
	}
	utils.Success(ctx, d.orch.Snapshot())
}

// History lists past attendance entries.
func (d *DashboardController) History(ctx *gin.Context) {
	if !d.ensureInit(ctx) {
		return
	}
	entries, err := d.orch.History(ctx.Request.Context())
	if err != nil {
		writeAttendanceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": entries})
}

// writeAttendanceError maps orchestrator errors onto the response envelope.
// Gate denials are 409: the request was understood, the action is disabled.
func writeAttendanceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotAuthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "not authenticated")
	case errors.Is(err, attendance.ErrActionInFlight):
		utils.Error(ctx, http.StatusConflict, 40910, "action already in flight")
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		utils.Error(ctx, http.StatusConflict, 40911, "already checked in today")
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		utils.Error(ctx, http.StatusConflict, 40912, "already checked out today")
	case errors.Is(err, attendance.ErrNotCheckedIn):
		utils.Error(ctx, http.StatusConflict, 40913, "check in first")
	case errors.Is(err, attendance.ErrOutOfRange):
		utils.Error(ctx, http.StatusConflict, 40914, err.Error())
	case errors.Is(err, attendance.ErrNoLocation):
		utils.Error(ctx, http.StatusConflict, 40915, "current location unknown, share your position first")
	case apiclient.IsNetworkError(err):
		utils.Error(ctx, http.StatusBadGateway, 50210, "attendance service unreachable")
	default:
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			status := apiErr.Status
			if status < 400 || status > 599 {
				status = http.StatusBadGateway
			}
			utils.Error(ctx, status, 50020, apiErr.Message)
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50010, err.Error())
	}
}
