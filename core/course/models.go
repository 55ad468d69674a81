package course

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// Course groups sessions under a teacher with a hard enrollment capacity.
type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TeacherID   string    `json:"teacher_id"`
	MaxStudents int       `json:"max_students"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Enrollment links a student to a course. At most one row per
// (CourseID, StudentID) pair, enforced by a UNIQUE constraint.
type Enrollment struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	StudentID string    `json:"student_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	MaxStudents int    `json:"max_students" validate:"required,min=1"`
	TeacherID   string `json:"teacher_id"` // admin only; defaults to the acting teacher
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.TeacherID = core.CleanString(nc.TeacherID)
	return core.Validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	MaxStudents int     `json:"max_students" validate:"omitempty,min=1"`
}

func (uc *UpdateCourse) Validate(orig Course) error {
	title := core.CleanString(uc.Title)
	if title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if uc.MaxStudents == 0 {
		uc.MaxStudents = orig.MaxStudents
	}
	return core.Validate.Struct(uc)
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TeacherID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}
