package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Status is the closed set of attendance statuses.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

func (s Status) String() string { return string(s) }

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Attendance records a student's status for a session. At most one record
// exists per (SessionID, StudentID) pair; writes go through an atomic upsert
// backed by a UNIQUE constraint, so concurrent first check-ins cannot produce
// duplicate rows.
type Attendance struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`  // last check-in/marking time, UTC
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// CheckIn is the code-based student check-in request.
type CheckIn struct {
	SessionID      string `json:"session_id" validate:"required"`
	AttendanceCode string `json:"attendance_code" validate:"required"`
}

func (ci *CheckIn) Validate() error {
	ci.SessionID = core.CleanString(ci.SessionID)
	ci.AttendanceCode = core.CleanString(ci.AttendanceCode)
	return core.Validate.Struct(ci)
}

// Mark is the teacher/admin manual marking request.
type Mark struct {
	SessionID string `json:"session_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Status    Status `json:"status" validate:"required,attstatus"`
}

func (m *Mark) Validate() error {
	m.SessionID = core.CleanString(m.SessionID)
	m.StudentID = core.CleanString(m.StudentID)
	return core.Validate.Struct(m)
}

// UpdateStatus overwrites the status of an existing record.
type UpdateStatus struct {
	Status Status `json:"status" validate:"required,attstatus"`
}

func (us UpdateStatus) Validate() error { return core.Validate.Struct(us) }

var (
	statusTag  = "attstatus"
	statusText = "invalid attendance status"
)

func init() {
	_ = core.Validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(statusTag, statusText)
}

// statusValidation checks that the provided status is one of the known Status values
func statusValidation(fl validator.FieldLevel) bool {
	if status, ok := fl.Field().Interface().(Status); ok {
		return status.Valid()
	}
	return false
}
