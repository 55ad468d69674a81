package course

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrCourseFull      = errors.New("course is full")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Course.Title or Course.Description.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids ...string) error

		// EnrollStudent inserts the enrollment inside a single transaction,
		// locking the course row while the capacity check runs so two
		// concurrent requests cannot both pass `count < max_students`.
		// Returns ErrCourseFull or ErrAlreadyEnrolled on the business checks.
		EnrollStudent(ctx context.Context, courseID, studentID string, at time.Time) (Enrollment, error)
		QueryCourseEnrollments(ctx context.Context, courseID string, ordering ...core.DBOrdering) ([]Enrollment, error)
	}

	Service struct {
		repo     Repository
		notifSvc *notification.Service
		usrSvc   *user.Service
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

func NewService(repo Repository, notifSvc *notification.Service, usrSvc *user.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, notifSvc: notifSvc, usrSvc: usrSvc, mailSvc: mailSvc, logger: logger}
}

func (svc *Service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	teacherID := nc.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if !access.CanManageOwned(actor, teacherID) {
		return Course{}, access.ErrPermissionDenied
	}

	now := time.Now().UTC()
	crs := Course{
		Title:       nc.Title,
		Description: nc.Description,
		TeacherID:   teacherID,
		MaxStudents: nc.MaxStudents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !access.CanManageOwned(actor, orig.TeacherID) {
		return Course{}, access.ErrPermissionDenied
	}
	if err := uc.Validate(orig); err != nil {
		return Course{}, err
	}

	crs := orig
	crs.Title = uc.Title
	crs.MaxStudents = uc.MaxStudents
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	orig, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanManageOwned(actor, orig.TeacherID) {
		return access.ErrPermissionDenied
	}
	return svc.repo.DeleteCoursesByID(ctx, id)
}

// Enroll enrolls the acting student into the course (capacity-checked inside
// the repository's transaction) and notifies the teacher with a notification
// row and an email. Both notifications are best-effort: the enrollment is
// already committed, so a failure is logged rather than surfaced.
func (svc *Service) Enroll(ctx context.Context, actor user.User, courseID string) (Enrollment, error) {
	if !access.CanActAsStudent(actor, actor.ID) {
		return Enrollment{}, access.ErrPermissionDenied
	}

	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}

	enr, err := svc.repo.EnrollStudent(ctx, crs.ID, actor.ID, time.Now().UTC())
	if err != nil {
		return Enrollment{}, err
	}

	msg := fmt.Sprintf("%s enrolled in your course %q", actor.Name, crs.Title)
	if _, err := svc.notifSvc.Create(ctx, crs.TeacherID, msg); err != nil {
		svc.logger.Warn(fmt.Sprintf("creating enrollment notification: %v", err), err)
	}
	if teacher, err := svc.usrSvc.GetByID(ctx, crs.TeacherID); err == nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:          []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
			Subject:     "New enrollment",
			TextContent: msg + ".",
		})
	}
	return enr, nil
}

// QueryEnrollments lists a course's enrollments for its owner (or an admin).
func (svc *Service) QueryEnrollments(ctx context.Context, actor user.User, courseID string, ordering ...core.DBOrdering) ([]Enrollment, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageOwned(actor, crs.TeacherID) {
		return nil, access.ErrPermissionDenied
	}
	return svc.repo.QueryCourseEnrollments(ctx, crs.ID, ordering...)
}
