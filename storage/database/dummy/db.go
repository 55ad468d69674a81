// Package dummydb provides in-memory repositories for tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user         *userTable
		session      *sessionTable
		attendance   *attendanceTable
		course       *courseTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Attendance
	}

	courseTable struct {
		sync.RWMutex
		courses     map[string]*course.Course
		enrollments map[string]*course.Enrollment
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		session:      &sessionTable{table: make(map[string]*session.Session)},
		attendance:   &attendanceTable{table: make(map[string]*attendance.Attendance)},
		course:       &courseTable{courses: make(map[string]*course.Course), enrollments: make(map[string]*course.Enrollment)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
