package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

var (
	usrRepo   user.Repository
	sessRepo  session.Repository
	attRepo   attendance.Repository
	crsRepo   course.Repository
	notifRepo notification.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errPermDenied   = httpErr{Error: "permission denied"}
	errNotFoundBody = httpErr{Error: "not found"}
)

func setup(t *testing.T) Server {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	sessRepo = dummydb.NewSessionRepository(db)
	attRepo = dummydb.NewAttendanceRepository(db)
	crsRepo = dummydb.NewCourseRepository(db)
	notifRepo = dummydb.NewNotificationRepository(db)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.Conf)
	logger.Enable(false)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewService(usrRepo, mailSvc)
	sessSvc := session.NewService(sessRepo)
	attSvc := attendance.NewService(attRepo, sessSvc)
	notifSvc := notification.NewService(notifRepo)
	crsSvc := course.NewService(crsRepo, notifSvc, usrSvc, mailSvc, logger)

	// set up server
	return NewServer(
		&Options{
			DisableReqLogs:  true,
			Logger:          logger,
			UserSvc:         usrSvc,
			SessionSvc:      sessSvc,
			AttendanceSvc:   attSvc,
			CourseSvc:       crsSvc,
			NotificationSvc: notifSvc,
		},
	)
}

func createUser(t *testing.T, name, email, pwd string, role user.Role, isActive bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{Name: name, Email: email, Role: role, IsActive: isActive, CreatedAt: now, UpdatedAt: now}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed, %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func createSession(t *testing.T, teacherID string, dateTime time.Time) session.Session {
	t.Helper()

	now := time.Now().UTC()
	sess, err := sessRepo.CreateSession(context.Background(), session.Session{
		Title:       "Algebra II",
		DateTime:    dateTime,
		MeetingLink: "https://meet.test/algebra",
		TeacherID:   teacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateSession() failed, %v", err)
	}
	return sess
}

func createCourse(t *testing.T, title, teacherID string, maxStudents int) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := crsRepo.CreateCourse(context.Background(), course.Course{
		Title:       title,
		TeacherID:   teacherID,
		MaxStudents: maxStudents,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed, %v", err)
	}
	return crs
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
