package attendance

import (
	"fmt"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

// Permission checks applied by the HTTP boundary. The service itself does
// not authorize.

// RequireStaff allows any non-student principal.
func RequireStaff(p models.Principal) error {
	if !p.IsStaff() {
		return fmt.Errorf("%w: staff only", apperr.ErrForbidden)
	}
	return nil
}

// CanViewStudent lets students see only themselves.
func CanViewStudent(p models.Principal, studentID int64) error {
	if p.Kind() == models.KindStudent && p.ID != studentID {
		return fmt.Errorf("%w: students may only view their own attendance", apperr.ErrForbidden)
	}
	return nil
}

// CanViewClass requires a TEACHER or ADMIN.
func CanViewClass(p models.Principal) error {
	if !p.CanReviewClasses() {
		return fmt.Errorf("%w: class reports need a teacher or admin", apperr.ErrForbidden)
	}
	return nil
}

// CanCheckIn lets students check in only themselves. Staff may check in
// anyone.
func CanCheckIn(p models.Principal, studentID int64) error {
	if p.Kind() == models.KindStudent && p.ID != studentID {
		return fmt.Errorf("%w: students may only check themselves in", apperr.ErrForbidden)
	}
	return nil
}
