package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

// UpsertAttendance mirrors the (session_id, student_id) uniqueness under the
// table lock: the existing record is updated in place if the pair is found.
func (repo *attendanceRepository) UpsertAttendance(_ context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.SessionID == att.SessionID && existing.StudentID == att.StudentID {
			existing.Status = att.Status
			existing.Timestamp = att.Timestamp
			existing.UpdatedAt = att.UpdatedAt
			return *existing, nil
		}
	}

	att.ID = uuid.New().String()
	repo.db.table[att.ID] = &att
	return att, nil
}

func (repo *attendanceRepository) GetAttendanceByID(_ context.Context, id string) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if att, ok := repo.db.table[id]; ok {
		return *att, nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QuerySessionAttendance(_ context.Context, sessionID string, _ ...core.DBOrdering) ([]attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Attendance
	for _, att := range repo.db.table {
		if att.SessionID == sessionID {
			records = append(records, *att)
		}
	}
	sortByTimestamp(records)
	return records, nil
}

func (repo *attendanceRepository) QueryStudentAttendance(_ context.Context, studentID string, _ ...core.DBOrdering) ([]attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Attendance
	for _, att := range repo.db.table {
		if att.StudentID == studentID {
			records = append(records, *att)
		}
	}
	sortByTimestamp(records)
	return records, nil
}

func (repo *attendanceRepository) UpdateAttendanceStatus(_ context.Context, id string, status attendance.Status, at time.Time) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	att, ok := repo.db.table[id]
	if !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	att.Status = status
	att.UpdatedAt = at
	return *att, nil
}

func sortByTimestamp(records []attendance.Attendance) {
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
}
