package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

const attendanceColumns = `id, session_id, student_id, status, "timestamp", created_at, updated_at`

type attendanceRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	StudentID string    `db:"student_id"`
	Status    string    `db:"status"`
	Timestamp time.Time `db:"timestamp"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r attendanceRow) unrow() attendance.Attendance {
	return attendance.Attendance{
		ID:        r.ID,
		SessionID: r.SessionID,
		StudentID: r.StudentID,
		Status:    attendance.Status(r.Status),
		Timestamp: r.Timestamp.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func unrowAttendance(rows []attendanceRow) []attendance.Attendance {
	records := make([]attendance.Attendance, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.unrow())
	}
	return records
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// UpsertAttendance relies on the UNIQUE (session_id, student_id) constraint:
// a single INSERT .. ON CONFLICT DO UPDATE statement, so concurrent first
// check-ins for the same pair cannot produce duplicate rows.
func (repo attendanceRepository) UpsertAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	att.ID = uuid.New().String()
	q := `INSERT INTO attendance (id, session_id, student_id, status, "timestamp", created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)
	      ON CONFLICT (session_id, student_id) DO UPDATE
	          SET status = EXCLUDED.status,
	              "timestamp" = EXCLUDED."timestamp",
	              updated_at = EXCLUDED.updated_at
	      RETURNING ` + attendanceColumns
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row, q,
		att.ID, att.SessionID, att.StudentID, att.Status.String(), att.Timestamp, att.CreatedAt, att.UpdatedAt)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "upserting attendance")
	}
	return row.unrow(), nil
}

func (repo attendanceRepository) GetAttendanceByID(ctx context.Context, id string) (attendance.Attendance, error) {
	var row attendanceRow
	q := "SELECT " + attendanceColumns + " FROM attendance WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "getting attendance by ID")
	}
	return row.unrow(), nil
}

func (repo attendanceRepository) QuerySessionAttendance(ctx context.Context, sessionID string, ordering ...core.DBOrdering) ([]attendance.Attendance, error) {
	allowed := map[string]bool{"timestamp": true, "status": true, "created_at": true}
	q := "SELECT " + attendanceColumns + " FROM attendance WHERE session_id = $1" +
		orderBy(ordering, allowed, `"timestamp" ASC`)

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying session attendance")
	}
	return unrowAttendance(rows), nil
}

func (repo attendanceRepository) QueryStudentAttendance(ctx context.Context, studentID string, ordering ...core.DBOrdering) ([]attendance.Attendance, error) {
	allowed := map[string]bool{"timestamp": true, "status": true, "created_at": true}
	q := "SELECT " + attendanceColumns + " FROM attendance WHERE student_id = $1" +
		orderBy(ordering, allowed, `"timestamp" ASC`)

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student attendance")
	}
	return unrowAttendance(rows), nil
}

func (repo attendanceRepository) UpdateAttendanceStatus(ctx context.Context, id string, status attendance.Status, at time.Time) (attendance.Attendance, error) {
	q := `UPDATE attendance SET status = $2, updated_at = $3
	      WHERE id = $1
	      RETURNING ` + attendanceColumns
	var row attendanceRow
	if err := repo.db.GetContext(ctx, &row, q, id, status.String(), at); err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "updating attendance status")
	}
	return row.unrow(), nil
}
