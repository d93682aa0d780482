package attendance_test

import (
	"errors"
	"testing"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func TestPermissions(t *testing.T) {
	student := models.Principal{ID: 12, Role: models.RoleStudent}
	admin := models.Principal{ID: 1, Role: models.RoleAdmin}
	staff := models.Principal{ID: 2, Role: models.RoleStaff}

	cases := []struct {
		name    string
		err     error
		allowed bool
	}{
		{"student views self", attendance.CanViewStudent(student, 12), true},
		{"student views other", attendance.CanViewStudent(student, 13), false},
		{"admin views any student", attendance.CanViewStudent(admin, 13), true},
		{"student class report", attendance.CanViewClass(student), false},
		{"staff class report", attendance.CanViewClass(staff), false},
		{"teacher class report", attendance.CanViewClass(teacher), true},
		{"student checks in self", attendance.CanCheckIn(student, 12), true},
		{"student checks in other", attendance.CanCheckIn(student, 99), false},
		{"student is not staff", attendance.RequireStaff(student), false},
		{"office staff is staff", attendance.RequireStaff(staff), true},
	}
	for _, tc := range cases {
		if tc.allowed && tc.err != nil {
			t.Fatalf("%s: unexpected %v", tc.name, tc.err)
		}
		if !tc.allowed && !errors.Is(tc.err, apperr.ErrForbidden) {
			t.Fatalf("%s: want forbidden, got %v", tc.name, tc.err)
		}
	}
}
