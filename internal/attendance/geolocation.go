package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/geo"
	"github.com/Spok95/campus-attendance/internal/metrics"
	"github.com/Spok95/campus-attendance/internal/models"
)

const reasonGeoCheckIn = "Geolocation check-in"

// Campus is the configured check-in area, passed explicitly to every
// geolocation call.
type Campus struct {
	Center       geo.Point
	RadiusMeters float64
}

func (c Campus) Validate() error {
	if err := c.Center.Validate(); err != nil {
		return fmt.Errorf("campus: %w", err)
	}
	if c.RadiusMeters < 0 || math.IsNaN(c.RadiusMeters) {
		return fmt.Errorf("campus: radius %v must be >= 0", c.RadiusMeters)
	}
	return nil
}

// GeoSubmission fields are pointers so a missing coordinate is told apart
// from zero.
type GeoSubmission struct {
	Latitude   *float64        `json:"latitude"`
	Longitude  *float64        `json:"longitude"`
	Accuracy   *float64        `json:"accuracy"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

func (g GeoSubmission) Validate() error {
	var fields []apperr.FieldError
	check := func(name string, v *float64, ok func(float64) bool, msg string) {
		switch {
		case v == nil:
			fields = append(fields, apperr.FieldError{Field: name, Error: "is required"})
		case math.IsNaN(*v) || !ok(*v):
			fields = append(fields, apperr.FieldError{Field: name, Error: msg})
		}
	}
	check("latitude", g.Latitude, func(v float64) bool { return v >= -90 && v <= 90 }, "must be within [-90, 90]")
	check("longitude", g.Longitude, func(v float64) bool { return v >= -180 && v <= 180 }, "must be within [-180, 180]")
	check("accuracy", g.Accuracy, func(v float64) bool { return v >= 0 }, "must be >= 0")
	if len(fields) > 0 {
		return apperr.NewValidationError(nil, fields...)
	}
	return nil
}

// GeoPolicy decides whether stored evidence may back an attendance record.
// A nil policy accepts everything.
type GeoPolicy func(models.GeolocationEvidence) error

// RequireWithinBounds rejects evidence outside the campus radius.
func RequireWithinBounds(ev models.GeolocationEvidence) error {
	if !ev.IsWithinBounds {
		return fmt.Errorf("%w: %.0f m from campus", apperr.ErrForbidden, ev.DistanceMeters)
	}
	return nil
}

// SubmitGeolocation stores the evidence with the within-bounds flag computed
// once from campus. Out-of-bounds is recorded, not rejected.
func (s *Service) SubmitGeolocation(ctx context.Context, sub GeoSubmission, campus Campus) (models.GeolocationEvidence, error) {
	if err := sub.Validate(); err != nil {
		return models.GeolocationEvidence{}, err
	}
	return s.storeGeolocation(ctx, sub, campus)
}

func (s *Service) storeGeolocation(ctx context.Context, sub GeoSubmission, campus Campus) (models.GeolocationEvidence, error) {
	at := geo.Point{Lat: *sub.Latitude, Lon: *sub.Longitude}
	within, dist := geo.Within(at, campus.Center, campus.RadiusMeters)
	g := models.GeolocationEvidence{
		Latitude:       at.Lat,
		Longitude:      at.Lon,
		Accuracy:       *sub.Accuracy,
		DeviceInfo:     sub.DeviceInfo,
		DistanceMeters: dist,
		IsWithinBounds: within,
		CreatedAt:      s.now().UTC(),
	}
	created, err := s.store.CreateGeolocation(ctx, g)
	if err != nil {
		return models.GeolocationEvidence{}, apperr.Persistence("create geolocation", err)
	}
	metrics.ObserveGeoCheckin(within)
	return created, nil
}

// CheckInWithGeolocation stores the evidence, applies policy and then records
// attendance linked to it. Rejected evidence is still returned.
func (s *Service) CheckInWithGeolocation(ctx context.Context, p models.Principal, caller models.Caller,
	sub GeoSubmission, campus Campus, ev models.AttendanceEvent, policy GeoPolicy) (models.AttendanceRecord, models.GeolocationEvidence, error) {

	if err := sub.Validate(); err != nil {
		return models.AttendanceRecord{}, models.GeolocationEvidence{}, err
	}
	if err := s.validateEvent(ev); err != nil {
		return models.AttendanceRecord{}, models.GeolocationEvidence{}, err
	}
	g, err := s.storeGeolocation(ctx, sub, campus)
	if err != nil {
		return models.AttendanceRecord{}, models.GeolocationEvidence{}, err
	}
	if policy != nil {
		if err := policy(g); err != nil {
			return models.AttendanceRecord{}, g, err
		}
	}
	rec, err := s.createRecord(ctx, p, caller, ev, models.MethodGeolocation, nil, reasonGeoCheckIn)
	if err != nil {
		return models.AttendanceRecord{}, g, err
	}
	if err := s.store.LinkGeolocation(ctx, g.ID, rec.ID); err != nil {
		return rec, g, apperr.Persistence("link geolocation", err)
	}
	g.AttendanceID = &rec.ID
	return rec, g, nil
}
