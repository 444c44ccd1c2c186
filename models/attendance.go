package models

// AttendanceStatus is the state of today's attendance record.
// A record only moves forward: NotStarted -> CheckedIn -> Completed.
type AttendanceStatus int

const (
	StatusNotStarted AttendanceStatus = iota
	StatusCheckedIn
	StatusCompleted
)

func (s AttendanceStatus) String() string {
	switch s {
	case StatusCheckedIn:
		return "checked-in"
	case StatusCompleted:
		return "completed"
	default:
		return "not-started"
	}
}

// AttendanceRecord is today's record for one employee, as returned by the
// attendance API. Empty strings mean the half is not yet populated.
type AttendanceRecord struct {
	CheckInTime  string `json:"_IN"`
	CheckOutTime string `json:"_OUT"`
}

// Status derives the tagged state from the populated halves.
func (r AttendanceRecord) Status() AttendanceStatus {
	switch {
	case r.CheckInTime == "":
		return StatusNotStarted
	case r.CheckOutTime == "":
		return StatusCheckedIn
	default:
		return StatusCompleted
	}
}

// HasCheckedIn reports whether today's check-in half is populated.
func (r AttendanceRecord) HasCheckedIn() bool { return r.CheckInTime != "" }

// HasCheckedOut reports whether today's check-out half is populated.
func (r AttendanceRecord) HasCheckedOut() bool { return r.CheckOutTime != "" }
