package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("session not found")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		// QuerySessions applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Session.Title or Session.Description.
		QuerySessions(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// GetLiveSessionByCode matches code exactly (case-sensitive) against
		// live sessions only.
		GetLiveSessionByCode(ctx context.Context, code string) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		// SetSessionLive stores the attendance code and raises the live flag in
		// one statement; any previous code is overwritten.
		SetSessionLive(ctx context.Context, id, code string, at time.Time) (Session, error)
		// EndSessionLive clears the code, lowers the live flag and stamps EndedAt.
		EndSessionLive(ctx context.Context, id string, at time.Time) (Session, error)
		DeleteSessionsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, actor user.User, ns NewSession) (Session, error) {
	teacherID := ns.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if !access.CanManageOwned(actor, teacherID) {
		return Session{}, access.ErrPermissionDenied
	}

	now := time.Now().UTC()
	sess := Session{
		Title:       ns.Title,
		Description: ns.Description,
		DateTime:    ns.DateTime.UTC(),
		MeetingLink: ns.MeetingLink,
		TeacherID:   teacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateSession(ctx, sess)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter, ordering...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

// GetByAttendanceCode resolves an attendance code to its live session.
// Codes of ended (or not yet started) sessions resolve to nothing even if a
// client resubmits a previously valid code.
func (svc *Service) GetByAttendanceCode(ctx context.Context, code string) (Session, error) {
	return svc.repo.GetLiveSessionByCode(ctx, code)
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, us UpdateSession) (Session, error) {
	orig, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !access.CanManageOwned(actor, orig.TeacherID) {
		return Session{}, access.ErrPermissionDenied
	}
	if err := us.Validate(orig); err != nil {
		return Session{}, err
	}

	sess := orig
	sess.Title = us.Title
	sess.MeetingLink = us.MeetingLink
	if us.Description != nil {
		sess.Description = *us.Description
	}
	if us.DateTime != nil {
		sess.DateTime = us.DateTime.UTC()
	}
	if us.RecordingLink != nil {
		sess.RecordingLink = us.RecordingLink
	}
	sess.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSession(ctx, sess)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	orig, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanManageOwned(actor, orig.TeacherID) {
		return access.ErrPermissionDenied
	}
	return svc.repo.DeleteSessionsByID(ctx, id)
}

// StartLive moves the session to the Live state with the caller-supplied
// attendance code. The code's shape and cross-session uniqueness are the
// caller's concern; re-starting an already live session replaces the code.
func (svc *Service) StartLive(ctx context.Context, actor user.User, id, code string) (Session, error) {
	orig, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !access.CanManageOwned(actor, orig.TeacherID) {
		return Session{}, access.ErrPermissionDenied
	}
	return svc.repo.SetSessionLive(ctx, id, code, time.Now().UTC())
}

// EndLive moves the session out of the Live state: the code is cleared so
// stale check-ins fail, and EndedAt records the end of this live cycle. It
// does not require the session to be live.
func (svc *Service) EndLive(ctx context.Context, actor user.User, id string) (Session, error) {
	orig, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !access.CanManageOwned(actor, orig.TeacherID) {
		return Session{}, access.ErrPermissionDenied
	}
	return svc.repo.EndSessionLive(ctx, id, time.Now().UTC())
}
