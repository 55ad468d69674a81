package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
)

const sessionColumns = "id, title, description, date_time, meeting_link, recording_link, " +
	"teacher_id, attendance_code, is_live, ended_at, created_at, updated_at"

type sessionRow struct {
	ID             string      `db:"id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	DateTime       time.Time   `db:"date_time"`
	MeetingLink    string      `db:"meeting_link"`
	RecordingLink  null.String `db:"recording_link"`
	TeacherID      string      `db:"teacher_id"`
	AttendanceCode null.String `db:"attendance_code"`
	IsLive         bool        `db:"is_live"`
	EndedAt        null.Time   `db:"ended_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r sessionRow) unrow() session.Session {
	sess := session.Session{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		DateTime:       r.DateTime.UTC(),
		MeetingLink:    r.MeetingLink,
		RecordingLink:  r.RecordingLink.Ptr(),
		TeacherID:      r.TeacherID,
		AttendanceCode: r.AttendanceCode.Ptr(),
		IsLive:         r.IsLive,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time.UTC()
		sess.EndedAt = &t
	}
	return sess
}

func unrowSessions(rows []sessionRow) []session.Session {
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.unrow())
	}
	return sessions
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to session.ErrNotFound
func (repo sessionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sess.ID = uuid.New().String()
	q := `INSERT INTO sessions (id, title, description, date_time, meeting_link, teacher_id, is_live, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		sess.ID, sess.Title, sess.Description, sess.DateTime, sess.MeetingLink, sess.TeacherID, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, ordering ...core.DBOrdering) ([]session.Session, error) {
	wb := new(whereBuilder)
	if filter != nil {
		if filter.Search != "" {
			wb.add("(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", filter.Search, filter.Search)
		}
		if filter.TeacherID != "" {
			wb.add("teacher_id = $%d", filter.TeacherID)
		}
		if filter.IsLive != nil {
			wb.add("is_live = $%d", *filter.IsLive)
		}
		if !filter.DateFrom.IsZero() {
			wb.add("date_time >= $%d", filter.DateFrom)
		}
		if !filter.DateTo.IsZero() {
			wb.add("date_time <= $%d", filter.DateTo)
		}
	}

	allowed := map[string]bool{"title": true, "date_time": true, "created_at": true}
	q := "SELECT " + sessionColumns + " FROM sessions" + wb.clause() + orderBy(ordering, allowed, "date_time ASC")

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return unrowSessions(rows), nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	var row sessionRow
	q := "SELECT " + sessionColumns + " FROM sessions WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "getting session by ID")
	}
	return row.unrow(), nil
}

func (repo sessionRepository) GetLiveSessionByCode(ctx context.Context, code string) (session.Session, error) {
	var row sessionRow
	q := "SELECT " + sessionColumns + " FROM sessions WHERE is_live AND attendance_code = $1"
	if err := repo.db.GetContext(ctx, &row, q, code); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "getting live session by code")
	}
	return row.unrow(), nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	q := `UPDATE sessions SET
	        title = $2, description = $3, date_time = $4, meeting_link = $5, recording_link = $6, updated_at = $7
	      WHERE id = $1
	      RETURNING ` + sessionColumns
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, q,
		sess.ID, sess.Title, sess.Description, sess.DateTime, sess.MeetingLink,
		null.StringFromPtr(sess.RecordingLink), sess.UpdatedAt)
	if err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "updating session")
	}
	return row.unrow(), nil
}

func (repo sessionRepository) SetSessionLive(ctx context.Context, id, code string, at time.Time) (session.Session, error) {
	q := `UPDATE sessions SET attendance_code = $2, is_live = true, updated_at = $3
	      WHERE id = $1
	      RETURNING ` + sessionColumns
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, q, id, code, at); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "setting session live")
	}
	return row.unrow(), nil
}

func (repo sessionRepository) EndSessionLive(ctx context.Context, id string, at time.Time) (session.Session, error) {
	q := `UPDATE sessions SET attendance_code = NULL, is_live = false, ended_at = $2, updated_at = $2
	      WHERE id = $1
	      RETURNING ` + sessionColumns
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, q, id, at); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "ending session live")
	}
	return row.unrow(), nil
}

func (repo sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ANY($1)", pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	return nil
}
