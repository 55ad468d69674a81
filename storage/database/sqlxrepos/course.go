package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

const (
	courseColumns     = "id, title, description, teacher_id, max_students, created_at, updated_at"
	enrollmentColumns = "id, course_id, student_id, created_at"
)

type courseRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	TeacherID   string    `db:"teacher_id"`
	MaxStudents int       `db:"max_students"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r courseRow) unrow() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		TeacherID:   r.TeacherID,
		MaxStudents: r.MaxStudents,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type enrollmentRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	StudentID string    `db:"student_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r enrollmentRow) unrow() course.Enrollment {
	return course.Enrollment{
		ID:        r.ID,
		CourseID:  r.CourseID,
		StudentID: r.StudentID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO courses (id, title, description, teacher_id, max_students, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q,
		crs.ID, crs.Title, crs.Description, crs.TeacherID, crs.MaxStudents, crs.CreatedAt, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	wb := new(whereBuilder)
	if filter != nil {
		if filter.Search != "" {
			wb.add("(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", filter.Search, filter.Search)
		}
		if filter.TeacherID != "" {
			wb.add("teacher_id = $%d", filter.TeacherID)
		}
	}

	allowed := map[string]bool{"title": true, "created_at": true}
	q := "SELECT " + courseColumns + " FROM courses" + wb.clause() + orderBy(ordering, allowed, "created_at ASC")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.unrow())
	}
	return courses, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "getting course by ID")
	}
	return row.unrow(), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET title = $2, description = $3, max_students = $4, updated_at = $5
	      WHERE id = $1
	      RETURNING ` + courseColumns
	var row courseRow
	err := repo.db.GetContext(ctx, &row, q, crs.ID, crs.Title, crs.Description, crs.MaxStudents, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "updating course")
	}
	return row.unrow(), nil
}

func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = ANY($1)", pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

// EnrollStudent runs the capacity check and the insert in one transaction,
// locking the course row so two concurrent enrollments cannot both pass
// `count < max_students`. The UNIQUE (course_id, student_id) constraint backs
// the duplicate check.
func (repo courseRepository) EnrollStudent(ctx context.Context, courseID, studentID string, at time.Time) (course.Enrollment, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "beginning enrollment transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var maxStudents int
	q := "SELECT max_students FROM courses WHERE id = $1 FOR UPDATE"
	if err = tx.GetContext(ctx, &maxStudents, q, courseID); err != nil {
		if err == sql.ErrNoRows {
			return course.Enrollment{}, course.ErrNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "locking course")
	}

	var count int
	if err = tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM enrollments WHERE course_id = $1", courseID); err != nil {
		return course.Enrollment{}, errors.Wrap(err, "counting enrollments")
	}
	if count >= maxStudents {
		return course.Enrollment{}, course.ErrCourseFull
	}

	enr := enrollmentRow{ID: uuid.New().String(), CourseID: courseID, StudentID: studentID, CreatedAt: at}
	q = "INSERT INTO enrollments (id, course_id, student_id, created_at) VALUES ($1, $2, $3, $4)"
	if _, err = tx.ExecContext(ctx, q, enr.ID, enr.CourseID, enr.StudentID, enr.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	if err = tx.Commit(); err != nil {
		return course.Enrollment{}, errors.Wrap(err, "committing enrollment")
	}
	return enr.unrow(), nil
}

func (repo courseRepository) QueryCourseEnrollments(ctx context.Context, courseID string, ordering ...core.DBOrdering) ([]course.Enrollment, error) {
	allowed := map[string]bool{"created_at": true}
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE course_id = $1" +
		orderBy(ordering, allowed, "created_at ASC")

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.unrow())
	}
	return enrollments, nil
}
