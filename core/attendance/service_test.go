package attendance

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

type fakeSessionRepository struct {
	table map[string]*session.Session
	pk    int
}

var _ session.Repository = (*fakeSessionRepository)(nil)

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{table: make(map[string]*session.Session)}
}

func (repo *fakeSessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.pk++
	sess.ID = strconv.Itoa(repo.pk)
	repo.table[sess.ID] = &sess
	return sess, nil
}

func (repo *fakeSessionRepository) QuerySessions(_ context.Context, _ *session.QueryFilter, _ ...core.DBOrdering) ([]session.Session, error) {
	return nil, nil
}

func (repo *fakeSessionRepository) GetSessionByID(_ context.Context, id string) (session.Session, error) {
	if sess, ok := repo.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *fakeSessionRepository) GetLiveSessionByCode(_ context.Context, code string) (session.Session, error) {
	for _, sess := range repo.table {
		if sess.IsLive && sess.AttendanceCode != nil && *sess.AttendanceCode == code {
			return *sess, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *fakeSessionRepository) UpdateSession(_ context.Context, sess session.Session) (session.Session, error) {
	orig, ok := repo.table[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	*orig = sess
	return *orig, nil
}

func (repo *fakeSessionRepository) SetSessionLive(_ context.Context, id, code string, at time.Time) (session.Session, error) {
	sess, ok := repo.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.AttendanceCode = &code
	sess.IsLive = true
	sess.UpdatedAt = at
	return *sess, nil
}

func (repo *fakeSessionRepository) EndSessionLive(_ context.Context, id string, at time.Time) (session.Session, error) {
	sess, ok := repo.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.AttendanceCode = nil
	sess.IsLive = false
	endedAt := at
	sess.EndedAt = &endedAt
	sess.UpdatedAt = at
	return *sess, nil
}

func (repo *fakeSessionRepository) DeleteSessionsByID(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(repo.table, id)
	}
	return nil
}

type fakeRepository struct {
	table map[string]*Attendance
	pk    int
}

var _ Repository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{table: make(map[string]*Attendance)}
}

func (repo *fakeRepository) UpsertAttendance(_ context.Context, att Attendance) (Attendance, error) {
	for _, existing := range repo.table {
		if existing.SessionID == att.SessionID && existing.StudentID == att.StudentID {
			existing.Status = att.Status
			existing.Timestamp = att.Timestamp
			existing.UpdatedAt = att.UpdatedAt
			return *existing, nil
		}
	}
	repo.pk++
	att.ID = strconv.Itoa(repo.pk)
	repo.table[att.ID] = &att
	return att, nil
}

func (repo *fakeRepository) GetAttendanceByID(_ context.Context, id string) (Attendance, error) {
	if att, ok := repo.table[id]; ok {
		return *att, nil
	}
	return Attendance{}, ErrNotFound
}

func (repo *fakeRepository) QuerySessionAttendance(_ context.Context, sessionID string, _ ...core.DBOrdering) ([]Attendance, error) {
	var records []Attendance
	for _, att := range repo.table {
		if att.SessionID == sessionID {
			records = append(records, *att)
		}
	}
	return records, nil
}

func (repo *fakeRepository) QueryStudentAttendance(_ context.Context, studentID string, _ ...core.DBOrdering) ([]Attendance, error) {
	var records []Attendance
	for _, att := range repo.table {
		if att.StudentID == studentID {
			records = append(records, *att)
		}
	}
	return records, nil
}

func (repo *fakeRepository) UpdateAttendanceStatus(_ context.Context, id string, status Status, at time.Time) (Attendance, error) {
	att, ok := repo.table[id]
	if !ok {
		return Attendance{}, ErrNotFound
	}
	att.Status = status
	att.UpdatedAt = at
	return *att, nil
}

var (
	admin        = user.User{ID: "admin", Role: user.RoleAdmin}
	teacher      = user.User{ID: "teacher", Role: user.RoleTeacher}
	otherTeacher = user.User{ID: "other-teacher", Role: user.RoleTeacher}
	student      = user.User{ID: "student", Role: user.RoleStudent}
)

func setup(t *testing.T) (*Service, *session.Service) {
	t.Helper()
	sessSvc := session.NewService(newFakeSessionRepository())
	return NewService(newFakeRepository(), sessSvc), sessSvc
}

func createSession(t *testing.T, sessSvc *session.Service, dateTime time.Time) session.Session {
	t.Helper()
	sess, err := sessSvc.Create(context.Background(), teacher, session.NewSession{
		Title:       "Algebra II",
		DateTime:    dateTime,
		MeetingLink: "https://meet.test/algebra",
	})
	require.NoError(t, err)
	return sess
}

func TestService_CheckInWithCode(t *testing.T) {
	svc, sessSvc := setup(t)
	ctx := context.Background()
	sess := createSession(t, sessSvc, time.Now().UTC())

	checkIn := func(actor user.User, sessionID, code string) (CheckInResult, error) {
		return svc.CheckInWithCode(ctx, actor, CheckIn{SessionID: sessionID, AttendanceCode: code})
	}

	t.Run("teacher cannot check in", func(t *testing.T) {
		_, err := checkIn(teacher, sess.ID, "MATH42")
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := checkIn(student, "404", "MATH42")
		assert.Equal(t, session.ErrNotFound, err)
	})

	t.Run("scheduled session rejects any code", func(t *testing.T) {
		_, err := checkIn(student, sess.ID, "MATH42")
		assert.Equal(t, ErrNotAcceptingAttendance, err)
	})

	_, err := sessSvc.StartLive(ctx, teacher, sess.ID, "MATH42")
	require.NoError(t, err)

	t.Run("wrong code", func(t *testing.T) {
		_, err := checkIn(student, sess.ID, "WRONG")
		assert.Equal(t, ErrInvalidCode, err)
	})

	t.Run("code is case-sensitive", func(t *testing.T) {
		_, err := checkIn(student, sess.ID, "math42")
		assert.Equal(t, ErrInvalidCode, err)
	})

	t.Run("valid code marks present", func(t *testing.T) {
		res, err := checkIn(student, sess.ID, "MATH42")
		require.NoError(t, err)
		assert.Equal(t, StatusPresent, res.Attendance.Status)
		assert.Equal(t, student.ID, res.Attendance.StudentID)
		assert.Equal(t, sess.ID, res.Session.ID)
		assert.Equal(t, sess.Title, res.Session.Title)
	})

	t.Run("repeat check-in is idempotent", func(t *testing.T) {
		first, err := checkIn(student, sess.ID, "MATH42")
		require.NoError(t, err)
		second, err := checkIn(student, sess.ID, "MATH42")
		require.NoError(t, err)
		assert.Equal(t, first.Attendance.ID, second.Attendance.ID) // same row, refreshed

		records, err := svc.QueryForSession(ctx, teacher, sess.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("stale code rejected after session ends", func(t *testing.T) {
		_, err := sessSvc.EndLive(ctx, teacher, sess.ID)
		require.NoError(t, err)

		_, err = checkIn(student, sess.ID, "MATH42")
		assert.Equal(t, ErrNotAcceptingAttendance, err)
	})

	t.Run("admin may check in on behalf of themselves", func(t *testing.T) {
		_, err := sessSvc.StartLive(ctx, teacher, sess.ID, "MATH43")
		require.NoError(t, err)
		_, err = checkIn(admin, sess.ID, "MATH43")
		assert.NoError(t, err)
	})
}

func TestService_Join(t *testing.T) {
	svc, sessSvc := setup(t)
	ctx := context.Background()

	scheduled := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	sess := createSession(t, sessSvc, scheduled)

	defer func() { nowFunc = time.Now }()
	at := func(t time.Time) { nowFunc = func() time.Time { return t } }

	t.Run("teacher cannot join as attendee", func(t *testing.T) {
		at(scheduled)
		_, err := svc.Join(ctx, teacher, sess.ID)
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("unknown session", func(t *testing.T) {
		at(scheduled)
		_, err := svc.Join(ctx, student, "404")
		assert.Equal(t, session.ErrNotFound, err)
	})

	t.Run("too early", func(t *testing.T) {
		at(scheduled.Add(-15*time.Minute - time.Second))
		_, err := svc.Join(ctx, student, sess.ID)
		assert.Equal(t, ErrJoinWindowClosed, err)
	})

	t.Run("window opens exactly 15min before", func(t *testing.T) {
		at(scheduled.Add(-15 * time.Minute))
		res, err := svc.Join(ctx, student, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPresent, res.Attendance.Status)
		assert.Equal(t, sess.MeetingLink, res.RedirectURL)
	})

	t.Run("window closes exactly 2h after", func(t *testing.T) {
		at(scheduled.Add(2 * time.Hour))
		_, err := svc.Join(ctx, student, sess.ID)
		assert.NoError(t, err)
	})

	t.Run("too late", func(t *testing.T) {
		at(scheduled.Add(2*time.Hour + time.Second))
		_, err := svc.Join(ctx, student, sess.ID)
		assert.Equal(t, ErrJoinWindowClosed, err)
	})

	t.Run("live flag is irrelevant inside the window", func(t *testing.T) {
		at(scheduled)
		sess2 := createSession(t, sessSvc, scheduled)
		res, err := svc.Join(ctx, student, sess2.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPresent, res.Attendance.Status)
	})
}

func TestService_Mark(t *testing.T) {
	svc, sessSvc := setup(t)
	ctx := context.Background()
	sess := createSession(t, sessSvc, time.Now().UTC())

	m := Mark{SessionID: sess.ID, StudentID: student.ID, Status: StatusLate}

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.Mark(ctx, teacher, Mark{SessionID: "404", StudentID: student.ID, Status: StatusLate})
		assert.Equal(t, session.ErrNotFound, err)
	})

	t.Run("non-owner teacher denied", func(t *testing.T) {
		_, err := svc.Mark(ctx, otherTeacher, m)
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("student denied", func(t *testing.T) {
		_, err := svc.Mark(ctx, student, m)
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("owner marks without gating", func(t *testing.T) {
		att, err := svc.Mark(ctx, teacher, m) // session not live: no code needed
		require.NoError(t, err)
		assert.Equal(t, StatusLate, att.Status)
	})

	t.Run("admin overrides existing record", func(t *testing.T) {
		att, err := svc.Mark(ctx, admin, Mark{SessionID: sess.ID, StudentID: student.ID, Status: StatusAbsent})
		require.NoError(t, err)
		assert.Equal(t, StatusAbsent, att.Status)

		records, err := svc.QueryForSession(ctx, admin, sess.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	svc, sessSvc := setup(t)
	ctx := context.Background()
	sess := createSession(t, sessSvc, time.Now().UTC())

	att, err := svc.Mark(ctx, teacher, Mark{SessionID: sess.ID, StudentID: student.ID, Status: StatusPresent})
	require.NoError(t, err)

	t.Run("unknown record", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, teacher, "404", StatusLate)
		assert.Equal(t, ErrNotFound, err)
	})

	t.Run("non-owner teacher denied", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, otherTeacher, att.ID, StatusLate)
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("owner updates", func(t *testing.T) {
		updated, err := svc.UpdateStatus(ctx, teacher, att.ID, StatusLate)
		require.NoError(t, err)
		assert.Equal(t, StatusLate, updated.Status)
		assert.Equal(t, att.ID, updated.ID)
		assert.Equal(t, att.Timestamp, updated.Timestamp) // original check-in time kept
	})
}

func TestService_queries(t *testing.T) {
	svc, sessSvc := setup(t)
	ctx := context.Background()
	sess := createSession(t, sessSvc, time.Now().UTC())

	_, err := svc.Mark(ctx, teacher, Mark{SessionID: sess.ID, StudentID: student.ID, Status: StatusPresent})
	require.NoError(t, err)

	t.Run("session records restricted to owner or admin", func(t *testing.T) {
		_, err := svc.QueryForSession(ctx, otherTeacher, sess.ID)
		assert.Equal(t, access.ErrPermissionDenied, err)

		records, err := svc.QueryForSession(ctx, admin, sess.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("students see their own records", func(t *testing.T) {
		records, err := svc.QueryMine(ctx, student)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, student.ID, records[0].StudentID)
	})
}
