package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, _ ...core.DBOrdering) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := repo.query()
	if filter == nil {
		return courses, nil
	}

	if filter.Search != "" {
		var filtered []course.Course
		search := strings.ToLower(filter.Search)
		for _, c := range courses {
			if strings.Contains(strings.ToLower(c.Title), search) ||
				strings.Contains(strings.ToLower(c.Description), search) {
				filtered = append(filtered, c)
			}
		}
		courses = filtered
	}
	if courses != nil && filter.TeacherID != "" {
		var filtered []course.Course
		for _, c := range courses {
			if c.TeacherID == filter.TeacherID {
				filtered = append(filtered, c)
			}
		}
		courses = filtered
	}

	return courses, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origCrs, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	origCrs.Title = crs.Title
	origCrs.Description = crs.Description
	origCrs.MaxStudents = crs.MaxStudents
	origCrs.UpdatedAt = crs.UpdatedAt

	repo.db.courses[crs.ID] = origCrs
	return *origCrs, nil
}

// DeleteCoursesByID also drops the courses' enrollments, mirroring the
// schema's ON DELETE CASCADE.
func (repo *courseRepository) DeleteCoursesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.courses, id)
		for enrID, enr := range repo.db.enrollments {
			if enr.CourseID == id {
				delete(repo.db.enrollments, enrID)
			}
		}
	}
	return nil
}

// EnrollStudent runs the capacity and duplicate checks under the same lock as
// the insert, matching the transactional semantics of the SQL implementation.
func (repo *courseRepository) EnrollStudent(_ context.Context, courseID, studentID string, at time.Time) (course.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.Enrollment{}, course.ErrNotFound
	}

	var count int
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			if enr.StudentID == studentID {
				return course.Enrollment{}, course.ErrAlreadyEnrolled
			}
			count++
		}
	}
	if count >= crs.MaxStudents {
		return course.Enrollment{}, course.ErrCourseFull
	}

	enr := course.Enrollment{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		StudentID: studentID,
		CreatedAt: at,
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) QueryCourseEnrollments(_ context.Context, courseID string, _ ...core.DBOrdering) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrollments []course.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			enrollments = append(enrollments, *enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].CreatedAt.Before(enrollments[j].CreatedAt) })
	return enrollments, nil
}
