package echoapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/user"
)

func Test_attendanceApi_checkInFlow(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher@test.cd", "LordMaster", user.RoleTeacher, true)
	student := createUser(t, "Hero", "hero@test.cd", "LordMaster", user.RoleStudent, true)
	sess := createSession(t, teacher.ID, time.Now().UTC())

	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	doCheckIn := func(code string) *httptest.ResponseRecorder {
		body := marchallObj(t, attendance.CheckIn{SessionID: sess.ID, AttendanceCode: code})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/checkin", studentToken, body)
		app.ServeHTTP(rec, req)
		return rec
	}

	var firstID string

	t.Run("student required", func(t *testing.T) {
		body := marchallObj(t, attendance.CheckIn{SessionID: sess.ID, AttendanceCode: "MATH42"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/checkin", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("scheduled session rejects check-in", func(t *testing.T) {
		rec := doCheckIn("MATH42")
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "session is not currently accepting attendance"}),
		}, rec)
	})

	// teacher goes live
	startBody := marchallObj(t, StartLiveRequest{AttendanceCode: "MATH42"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/start-live", teacherToken, startBody)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start-live failed! code = %v; body = %s", rec.Code, rec.Body.String())
	}

	t.Run("wrong code", func(t *testing.T) {
		rec := doCheckIn("WRONG")
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid attendance code"}),
		}, rec)
	})

	t.Run("valid code marks present", func(t *testing.T) {
		rec := doCheckIn("MATH42")
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var res attendance.CheckInResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("failed to unmarshal CheckInResult, %v", err)
		}
		att := res.Attendance
		if att.Status != attendance.StatusPresent || att.StudentID != student.ID || att.SessionID != sess.ID {
			t.Errorf("unexpected attendance: %+v", att)
		}
		if res.Session.ID != sess.ID || res.Session.Title != sess.Title || !res.Session.IsLive {
			t.Errorf("unexpected session preview: %+v", res.Session)
		}
		firstID = att.ID
	})

	t.Run("repeat check-in is idempotent", func(t *testing.T) {
		rec := doCheckIn("MATH42")
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var res attendance.CheckInResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("failed to unmarshal CheckInResult, %v", err)
		}
		if res.Attendance.ID != firstID {
			t.Errorf("expected the original record %q, got %q", firstID, res.Attendance.ID)
		}

		// still a single record for the session
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID+"/attendance", teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var records []attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("failed to unmarshal Attendance list, %v", err)
		}
		if len(records) != 1 {
			t.Errorf("expected a single record, got %d", len(records))
		}
	})

	t.Run("stale code rejected after the session ends", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/end-live", teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("end-live failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		rec = doCheckIn("MATH42")
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "session is not currently accepting attendance"}),
		}, rec)
	})

	t.Run("own records", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/mine", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var records []attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("failed to unmarshal Attendance list, %v", err)
		}
		if len(records) != 1 || records[0].StudentID != student.ID {
			t.Errorf("unexpected records: %+v", records)
		}
	})
}

func Test_attendanceApi_mark(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher@test.cd", "LordMaster", user.RoleTeacher, true)
	otherTeacher := createUser(t, "Other", "other@test.cd", "LordMaster", user.RoleTeacher, true)
	student := createUser(t, "Hero", "hero@test.cd", "LordMaster", user.RoleStudent, true)
	sess := createSession(t, teacher.ID, time.Now().UTC())

	teacherToken := getToken(t, teacher)
	mark := attendance.Mark{SessionID: sess.ID, StudentID: student.ID, Status: attendance.StatusLate}

	var (
		attID  string
		marked time.Time
	)

	t.Run("teacher required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/mark", getToken(t, student), marchallObj(t, mark))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("non-owner denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/mark", getToken(t, otherTeacher), marchallObj(t, mark))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("invalid status", func(t *testing.T) {
		body := marchallObj(t, attendance.Mark{SessionID: sess.ID, StudentID: student.ID, Status: "around"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/mark", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "invalid attendance status"}),
		}, rec)
	})

	t.Run("owner marks late", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/mark", teacherToken, marchallObj(t, mark))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var att attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
			t.Fatalf("failed to unmarshal Attendance, %v", err)
		}
		if att.Status != attendance.StatusLate {
			t.Errorf("unexpected attendance: %+v", att)
		}
		attID = att.ID
		marked = att.Timestamp
	})

	t.Run("owner corrects the status", func(t *testing.T) {
		body := marchallObj(t, attendance.UpdateStatus{Status: attendance.StatusPresent})
		req, rec := newAuthRequest(http.MethodPut, "/v1/attendance/"+attID+"/status", teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var att attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
			t.Fatalf("failed to unmarshal Attendance, %v", err)
		}
		if att.ID != attID || att.Status != attendance.StatusPresent {
			t.Errorf("unexpected attendance: %+v", att)
		}
		if !att.Timestamp.Equal(marked) {
			t.Errorf("expected the original timestamp %v to be kept, got %v", marked, att.Timestamp)
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		body := marchallObj(t, attendance.UpdateStatus{Status: attendance.StatusAbsent})
		req, rec := newAuthRequest(http.MethodPut, "/v1/attendance/404/status", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "attendance record not found"}),
		}, rec)
	})
}
