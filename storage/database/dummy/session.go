package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
)

type sessionRepository struct {
	db  *sessionTable
	att *attendanceTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session, att: db.attendance}
}

func (repo *sessionRepository) query() []session.Session {
	sessions := make([]session.Session, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].DateTime.Before(sessions[j].DateTime) })
	return sessions
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	sess.IsLive = false
	repo.db.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter *session.QueryFilter, _ ...core.DBOrdering) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := repo.query()
	if filter == nil {
		return sessions, nil
	}

	if filter.Search != "" {
		var filtered []session.Session
		search := strings.ToLower(filter.Search)
		for _, s := range sessions {
			if strings.Contains(strings.ToLower(s.Title), search) ||
				strings.Contains(strings.ToLower(s.Description), search) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && filter.TeacherID != "" {
		var filtered []session.Session
		for _, s := range sessions {
			if s.TeacherID == filter.TeacherID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && filter.IsLive != nil {
		var filtered []session.Session
		for _, s := range sessions {
			if s.IsLive == *filter.IsLive {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && !filter.DateFrom.IsZero() {
		var filtered []session.Session
		timeUTC := filter.DateFrom.UTC()
		for _, s := range sessions {
			if !s.DateTime.Before(timeUTC) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && !filter.DateTo.IsZero() {
		var filtered []session.Session
		timeUTC := filter.DateTo.UTC()
		for _, s := range sessions {
			if !s.DateTime.After(timeUTC) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) GetLiveSessionByCode(_ context.Context, code string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sess := range repo.db.table {
		if sess.IsLive && sess.AttendanceCode != nil && *sess.AttendanceCode == code {
			return *sess, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origSess, ok := repo.db.table[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	origSess.Title = sess.Title
	origSess.Description = sess.Description
	origSess.DateTime = sess.DateTime
	origSess.MeetingLink = sess.MeetingLink
	origSess.RecordingLink = sess.RecordingLink
	origSess.UpdatedAt = sess.UpdatedAt

	repo.db.table[sess.ID] = origSess
	return *origSess, nil
}

func (repo *sessionRepository) SetSessionLive(_ context.Context, id, code string, at time.Time) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.AttendanceCode = &code
	sess.IsLive = true
	sess.UpdatedAt = at
	return *sess, nil
}

func (repo *sessionRepository) EndSessionLive(_ context.Context, id string, at time.Time) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
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

// DeleteSessionsByID also drops the sessions' attendance rows, mirroring the
// schema's ON DELETE CASCADE.
func (repo *sessionRepository) DeleteSessionsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.att.Lock()
	defer repo.att.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
		for attID, att := range repo.att.table {
			if att.SessionID == id {
				delete(repo.att.table, attID)
			}
		}
	}
	return nil
}
