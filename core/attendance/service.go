package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound               = errors.New("attendance record not found")
	ErrNotAcceptingAttendance = errors.New("session is not currently accepting attendance")
	ErrInvalidCode            = errors.New("invalid attendance code")
	ErrJoinWindowClosed       = errors.New("session can only be joined from 15 minutes before its scheduled time until 2 hours after")

	nowFunc = time.Now // mockable
)

// Join window around the scheduled session time (closed interval).
const (
	joinWindowBefore = 15 * time.Minute
	joinWindowAfter  = 2 * time.Hour
)

type (
	Repository interface {
		// UpsertAttendance atomically inserts the record or, if a record
		// already exists for (SessionID, StudentID), updates its status and
		// timestamp. Implementations must not use select-then-branch.
		UpsertAttendance(ctx context.Context, att Attendance) (Attendance, error)
		GetAttendanceByID(ctx context.Context, id string) (Attendance, error)
		QuerySessionAttendance(ctx context.Context, sessionID string, ordering ...core.DBOrdering) ([]Attendance, error)
		QueryStudentAttendance(ctx context.Context, studentID string, ordering ...core.DBOrdering) ([]Attendance, error)
		// UpdateAttendanceStatus overwrites the status and stamps updated_at;
		// the original check-in timestamp is left untouched.
		UpdateAttendanceStatus(ctx context.Context, id string, status Status, at time.Time) (Attendance, error)
	}

	Service struct {
		repo     Repository
		sessions *session.Service
	}
)

func NewService(repo Repository, sessions *session.Service) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// JoinResult is returned by Join: the upserted record plus the meeting link
// the client should redirect to.
type JoinResult struct {
	Attendance  Attendance `json:"attendance"`
	RedirectURL string     `json:"redirect_url"`
}

// CheckInResult is returned by CheckInWithCode: the upserted record plus a
// preview of the session the code resolved against.
type CheckInResult struct {
	Attendance Attendance      `json:"attendance"`
	Session    session.Preview `json:"session"`
}

func (svc *Service) mark(ctx context.Context, sessionID, studentID string, status Status) (Attendance, error) {
	now := nowFunc().UTC()
	return svc.repo.UpsertAttendance(ctx, Attendance{
		SessionID: sessionID,
		StudentID: studentID,
		Status:    status,
		Timestamp: now,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Mark is the teacher/admin manual marking path: no gating beyond ownership
// of the session.
func (svc *Service) Mark(ctx context.Context, actor user.User, m Mark) (Attendance, error) {
	sess, err := svc.sessions.GetByID(ctx, m.SessionID)
	if err != nil {
		return Attendance{}, err
	}
	if !access.CanManageOwned(actor, sess.TeacherID) {
		return Attendance{}, access.ErrPermissionDenied
	}
	return svc.mark(ctx, sess.ID, m.StudentID, m.Status)
}

// CheckInWithCode is the code-gated student path: the session must currently
// be live and the supplied code must match exactly. An ended session rejects
// even its previously issued code. Returns the record together with a preview
// of the session it was recorded against.
func (svc *Service) CheckInWithCode(ctx context.Context, actor user.User, ci CheckIn) (CheckInResult, error) {
	if !access.CanActAsStudent(actor, actor.ID) {
		return CheckInResult{}, access.ErrPermissionDenied
	}

	sess, err := svc.sessions.GetByID(ctx, ci.SessionID)
	if err != nil {
		return CheckInResult{}, err
	}
	if !sess.IsLive {
		return CheckInResult{}, ErrNotAcceptingAttendance
	}
	if !sess.CodeMatches(ci.AttendanceCode) {
		return CheckInResult{}, ErrInvalidCode
	}

	att, err := svc.mark(ctx, sess.ID, actor.ID, StatusPresent)
	if err != nil {
		return CheckInResult{}, err
	}
	return CheckInResult{Attendance: att, Session: sess.Preview()}, nil
}

// Join is the time-gated student path: no code required, allowed while now is
// within [DateTime-15min, DateTime+2h] (boundary-inclusive) regardless of the
// live flag. Returns the meeting link for redirection.
func (svc *Service) Join(ctx context.Context, actor user.User, sessionID string) (JoinResult, error) {
	if !access.CanActAsStudent(actor, actor.ID) {
		return JoinResult{}, access.ErrPermissionDenied
	}

	sess, err := svc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return JoinResult{}, err
	}

	now := nowFunc().UTC()
	if now.Before(sess.DateTime.Add(-joinWindowBefore)) || now.After(sess.DateTime.Add(joinWindowAfter)) {
		return JoinResult{}, ErrJoinWindowClosed
	}

	att, err := svc.mark(ctx, sess.ID, actor.ID, StatusPresent)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Attendance: att, RedirectURL: sess.MeetingLink}, nil
}

// UpdateStatus overwrites the status of an existing record by primary key,
// preserving its check-in timestamp.
func (svc *Service) UpdateStatus(ctx context.Context, actor user.User, id string, status Status) (Attendance, error) {
	att, err := svc.repo.GetAttendanceByID(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	sess, err := svc.sessions.GetByID(ctx, att.SessionID)
	if err != nil {
		return Attendance{}, err
	}
	if !access.CanManageOwned(actor, sess.TeacherID) {
		return Attendance{}, access.ErrPermissionDenied
	}
	return svc.repo.UpdateAttendanceStatus(ctx, id, status, nowFunc().UTC())
}

// QueryForSession lists a session's records for its owner (or an admin).
func (svc *Service) QueryForSession(ctx context.Context, actor user.User, sessionID string, ordering ...core.DBOrdering) ([]Attendance, error) {
	sess, err := svc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageOwned(actor, sess.TeacherID) {
		return nil, access.ErrPermissionDenied
	}
	return svc.repo.QuerySessionAttendance(ctx, sess.ID, ordering...)
}

// QueryMine lists the acting student's own records.
func (svc *Service) QueryMine(ctx context.Context, actor user.User, ordering ...core.DBOrdering) ([]Attendance, error) {
	return svc.repo.QueryStudentAttendance(ctx, actor.ID, ordering...)
}
