package session

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// Session is a scheduled teaching session. Its live-attendance cycle is a
// 3-state machine: Scheduled (IsLive=false, no code) -> Live (IsLive=true,
// AttendanceCode set) -> Ended (IsLive=false, no code, EndedAt stamped).
// AttendanceCode is non-nil only while IsLive; the two are set and cleared
// together. A session may be re-started: starting again simply replaces the
// code, silently invalidating the old one.
type Session struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DateTime       time.Time  `json:"date_time"` // scheduled start, UTC
	MeetingLink    string     `json:"meeting_link"`
	RecordingLink  *string    `json:"recording_link"`
	TeacherID      string     `json:"teacher_id"`
	AttendanceCode *string    `json:"attendance_code,omitempty"`
	IsLive         bool       `json:"is_live"`
	EndedAt        *time.Time `json:"ended_at"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// CodeMatches reports whether the session is live and code matches exactly
// (case-sensitive).
func (s *Session) CodeMatches(code string) bool {
	return s.IsLive && s.AttendanceCode != nil && *s.AttendanceCode == code
}

// Preview is the reduced view returned to students resolving an attendance
// code before checking in.
type Preview struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	DateTime time.Time `json:"date_time"`
	IsLive   bool      `json:"is_live"`
}

func (s *Session) Preview() Preview {
	return Preview{ID: s.ID, Title: s.Title, DateTime: s.DateTime, IsLive: s.IsLive}
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	DateTime    time.Time `json:"date_time" validate:"required"`
	MeetingLink string    `json:"meeting_link" validate:"required,url"`
	TeacherID   string    `json:"teacher_id"` // admin only; defaults to the acting teacher
}

func (ns *NewSession) Validate() error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.MeetingLink = core.CleanString(ns.MeetingLink)
	ns.TeacherID = core.CleanString(ns.TeacherID)
	return core.Validate.Struct(ns)
}

// UpdateSession defines what information may be provided to modify an existing Session.
type UpdateSession struct {
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	DateTime      *time.Time `json:"date_time"`
	MeetingLink   string     `json:"meeting_link" validate:"omitempty,url"`
	RecordingLink *string    `json:"recording_link" validate:"omitempty,url"`
}

func (us *UpdateSession) Validate(orig Session) error {
	title := core.CleanString(us.Title)
	if title != "" {
		us.Title = title
	} else {
		us.Title = orig.Title
	}
	us.MeetingLink = core.CleanString(us.MeetingLink)
	if us.MeetingLink == "" {
		us.MeetingLink = orig.MeetingLink
	}
	return core.Validate.Struct(us)
}

type QueryFilter struct {
	Search    string     `query:"search"`
	TeacherID string     `query:"teacher_id"`
	IsLive    *bool      `query:"is_live"`
	DateFrom  time.Time  `query:"date_from"`
	DateTo    time.Time  `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TeacherID == "" && qf.IsLive == nil && qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}
