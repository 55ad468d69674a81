package session

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

type fakeRepository struct {
	table map[string]*Session
	pk    int
}

var _ Repository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{table: make(map[string]*Session)}
}

func (repo *fakeRepository) CreateSession(_ context.Context, sess Session) (Session, error) {
	repo.pk++
	sess.ID = strconv.Itoa(repo.pk)
	repo.table[sess.ID] = &sess
	return sess, nil
}

func (repo *fakeRepository) QuerySessions(_ context.Context, _ *QueryFilter, _ ...core.DBOrdering) ([]Session, error) {
	sessions := make([]Session, 0, len(repo.table))
	for _, s := range repo.table {
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func (repo *fakeRepository) GetSessionByID(_ context.Context, id string) (Session, error) {
	if sess, ok := repo.table[id]; ok {
		return *sess, nil
	}
	return Session{}, ErrNotFound
}

func (repo *fakeRepository) GetLiveSessionByCode(_ context.Context, code string) (Session, error) {
	for _, sess := range repo.table {
		if sess.IsLive && sess.AttendanceCode != nil && *sess.AttendanceCode == code {
			return *sess, nil
		}
	}
	return Session{}, ErrNotFound
}

func (repo *fakeRepository) UpdateSession(_ context.Context, sess Session) (Session, error) {
	orig, ok := repo.table[sess.ID]
	if !ok {
		return Session{}, ErrNotFound
	}
	*orig = sess
	return *orig, nil
}

func (repo *fakeRepository) SetSessionLive(_ context.Context, id, code string, at time.Time) (Session, error) {
	sess, ok := repo.table[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.AttendanceCode = &code
	sess.IsLive = true
	sess.UpdatedAt = at
	return *sess, nil
}

func (repo *fakeRepository) EndSessionLive(_ context.Context, id string, at time.Time) (Session, error) {
	sess, ok := repo.table[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.AttendanceCode = nil
	sess.IsLive = false
	endedAt := at
	sess.EndedAt = &endedAt
	sess.UpdatedAt = at
	return *sess, nil
}

func (repo *fakeRepository) DeleteSessionsByID(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(repo.table, id)
	}
	return nil
}

var (
	admin        = user.User{ID: "admin", Role: user.RoleAdmin}
	teacher      = user.User{ID: "teacher", Role: user.RoleTeacher}
	otherTeacher = user.User{ID: "other-teacher", Role: user.RoleTeacher}
	student      = user.User{ID: "student", Role: user.RoleStudent}
)

func newSession(t *testing.T, svc *Service, teacherID string) Session {
	t.Helper()
	sess, err := svc.Create(context.Background(), admin, NewSession{
		Title:       "Algebra II",
		DateTime:    time.Now().Add(time.Hour).UTC(),
		MeetingLink: "https://meet.test/algebra",
		TeacherID:   teacherID,
	})
	require.NoError(t, err)
	return sess
}

func TestService_Create(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()

	ns := NewSession{
		Title:       "Algebra II",
		DateTime:    time.Now().Add(time.Hour).UTC(),
		MeetingLink: "https://meet.test/algebra",
	}

	t.Run("teacher defaults to self", func(t *testing.T) {
		sess, err := svc.Create(ctx, teacher, ns)
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, sess.TeacherID)
		assert.False(t, sess.IsLive)
		assert.Nil(t, sess.AttendanceCode)
	})

	t.Run("teacher cannot create for another teacher", func(t *testing.T) {
		other := ns
		other.TeacherID = otherTeacher.ID
		_, err := svc.Create(ctx, teacher, other)
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("student cannot create", func(t *testing.T) {
		_, err := svc.Create(ctx, student, ns)
		assert.Equal(t, access.ErrPermissionDenied, err)
	})

	t.Run("admin can create for any teacher", func(t *testing.T) {
		other := ns
		other.TeacherID = teacher.ID
		sess, err := svc.Create(ctx, admin, other)
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, sess.TeacherID)
	})
}

func TestService_liveCycle(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()
	sess := newSession(t, svc, teacher.ID)

	// scheduled: code resolves to nothing
	_, err := svc.GetByAttendanceCode(ctx, "MATH42")
	assert.Equal(t, ErrNotFound, err)

	// non-owner cannot start
	_, err = svc.StartLive(ctx, otherTeacher, sess.ID, "MATH42")
	assert.Equal(t, access.ErrPermissionDenied, err)

	// owner starts: live, code set
	live, err := svc.StartLive(ctx, teacher, sess.ID, "MATH42")
	require.NoError(t, err)
	assert.True(t, live.IsLive)
	require.NotNil(t, live.AttendanceCode)
	assert.Equal(t, "MATH42", *live.AttendanceCode)

	found, err := svc.GetByAttendanceCode(ctx, "MATH42")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, found.ID)

	// restarting replaces the code, the old one stops resolving
	live, err = svc.StartLive(ctx, teacher, sess.ID, "MATH43")
	require.NoError(t, err)
	assert.Equal(t, "MATH43", *live.AttendanceCode)
	_, err = svc.GetByAttendanceCode(ctx, "MATH42")
	assert.Equal(t, ErrNotFound, err)

	// ending clears the code and stamps EndedAt
	ended, err := svc.EndLive(ctx, admin, sess.ID)
	require.NoError(t, err)
	assert.False(t, ended.IsLive)
	assert.Nil(t, ended.AttendanceCode)
	assert.NotNil(t, ended.EndedAt)

	_, err = svc.GetByAttendanceCode(ctx, "MATH43")
	assert.Equal(t, ErrNotFound, err)

	// ending is allowed even when not live
	_, err = svc.EndLive(ctx, teacher, sess.ID)
	assert.NoError(t, err)

	_, err = svc.StartLive(ctx, teacher, "404", "MATH44")
	assert.Equal(t, ErrNotFound, err)
}

func TestService_Update(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()
	sess := newSession(t, svc, teacher.ID)

	us := UpdateSession{Title: "Algebra III"}
	_, err := svc.Update(ctx, otherTeacher, sess.ID, us)
	assert.Equal(t, access.ErrPermissionDenied, err)

	updated, err := svc.Update(ctx, teacher, sess.ID, us)
	require.NoError(t, err)
	assert.Equal(t, "Algebra III", updated.Title)
	assert.Equal(t, sess.MeetingLink, updated.MeetingLink) // unset fields keep originals

	link := "https://videos.test/algebra"
	updated, err = svc.Update(ctx, admin, sess.ID, UpdateSession{RecordingLink: &link})
	require.NoError(t, err)
	require.NotNil(t, updated.RecordingLink)
	assert.Equal(t, link, *updated.RecordingLink)
}

func TestService_Delete(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()
	sess := newSession(t, svc, teacher.ID)

	assert.Equal(t, access.ErrPermissionDenied, svc.Delete(ctx, otherTeacher, sess.ID))
	assert.NoError(t, svc.Delete(ctx, teacher, sess.ID))
	assert.Equal(t, ErrNotFound, svc.Delete(ctx, teacher, sess.ID))
}
