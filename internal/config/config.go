package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/geo"
	"github.com/Spok95/campus-attendance/internal/models"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	DatabaseURL string
	Storage     string // postgres|memory
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Location    *time.Location

	JWTSecret string
	JWTIssuer string

	Campus                 attendance.Campus
	CampusSet              bool // CAMPUS_LAT and CAMPUS_LON both given
	GeoRequireWithinBounds bool
	QRCodeTTL              time.Duration

	NotifyOn       []models.AttendanceStatus
	NotifyChannel  models.NotificationChannel
	NotifyInterval time.Duration
	NotifyBatch    int

	TelegramToken  string
	TelegramChatID int64

	DBTimeout time.Duration
}

// Load reads the environment. Every malformed value is reported, not only
// the first.
func Load() (*Config, error) {
	var errs []error
	fail := func(key string, err error) { errs = append(errs, fmt.Errorf("%s: %w", key, err)) }

	tz := getenv("TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fail("TZ", err)
		loc = time.UTC
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Storage:     strings.ToLower(getenv("STORAGE", StoragePostgres)),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Location:    loc,
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   getenv("JWT_ISSUER", "campus-attendance"),
	}
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			fail("DATABASE_URL", errors.New("required when STORAGE=postgres"))
		}
	case StorageMemory:
	default:
		fail("STORAGE", fmt.Errorf("unknown backend %q", cfg.Storage))
	}
	if cfg.JWTSecret == "" {
		fail("JWT_SECRET", errors.New("required"))
	}

	lat, err := getFloat("CAMPUS_LAT", 0)
	if err != nil {
		fail("CAMPUS_LAT", err)
	}
	lon, err := getFloat("CAMPUS_LON", 0)
	if err != nil {
		fail("CAMPUS_LON", err)
	}
	radius, err := getFloat("CAMPUS_RADIUS_M", 100)
	if err != nil {
		fail("CAMPUS_RADIUS_M", err)
	}
	cfg.Campus = attendance.Campus{Center: geo.Point{Lat: lat, Lon: lon}, RadiusMeters: radius}
	cfg.CampusSet = strings.TrimSpace(os.Getenv("CAMPUS_LAT")) != "" && strings.TrimSpace(os.Getenv("CAMPUS_LON")) != ""
	if err := cfg.Campus.Validate(); err != nil {
		fail("CAMPUS_*", err)
	}
	if cfg.GeoRequireWithinBounds, err = getBool("GEO_REQUIRE_WITHIN_BOUNDS", false); err != nil {
		fail("GEO_REQUIRE_WITHIN_BOUNDS", err)
	}

	if cfg.QRCodeTTL, err = getDuration("QR_CODE_TTL", 0); err != nil {
		fail("QR_CODE_TTL", err)
	}
	if cfg.NotifyOn, err = parseStatuses(getenv("NOTIFY_ON", "ABSENT,LATE")); err != nil {
		fail("NOTIFY_ON", err)
	}
	ch, ok := models.ParseChannel(getenv("NOTIFY_CHANNEL", "EMAIL"))
	if !ok {
		fail("NOTIFY_CHANNEL", fmt.Errorf("want SMS, EMAIL or PUSH"))
	}
	cfg.NotifyChannel = ch
	if cfg.NotifyInterval, err = getDuration("NOTIFY_INTERVAL", 30*time.Second); err != nil {
		fail("NOTIFY_INTERVAL", err)
	}
	if cfg.NotifyBatch, err = getInt("NOTIFY_BATCH", 50); err != nil {
		fail("NOTIFY_BATCH", err)
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			fail("TELEGRAM_CHAT_ID", err)
		}
	}
	if cfg.DBTimeout, err = getDuration("DB_TIMEOUT", 5*time.Second); err != nil {
		fail("DB_TIMEOUT", err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// TelegramEnabled reports whether PUSH notifications go to a Telegram chat.
func (c *Config) TelegramEnabled() bool { return c.TelegramToken != "" && c.TelegramChatID != 0 }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getFloat(k string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err == nil && n <= 0 {
		err = fmt.Errorf("must be positive, got %d", n)
	}
	return n, err
}

func getBool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err == nil && d < 0 {
		err = fmt.Errorf("must not be negative, got %s", d)
	}
	return d, err
}

func parseStatuses(s string) ([]models.AttendanceStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]models.AttendanceStatus, 0, len(parts))
	for _, p := range parts {
		st, ok := models.ParseStatus(p)
		if !ok {
			return nil, fmt.Errorf("bad status %q", p)
		}
		out = append(out, st)
	}
	return out, nil
}
