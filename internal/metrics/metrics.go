package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Spok95/campus-attendance/internal/models"
)

const namespace = "attendance"

var (
	RecordsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "records_created_total", Help: "Attendance records created, by marking method",
	}, []string{"method"})
	StatusUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "status_updates_total", Help: "Audited attendance status updates",
	})
	QRVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "qr_verifications_total", Help: "QR code verification attempts, by result",
	}, []string{"result"})
	GeoCheckins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "geo_checkins_total", Help: "Geolocation evidence submissions",
	}, []string{"within_bounds"})
	SyncBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sync_batches_total", Help: "Offline sync batches by terminal status",
	}, []string{"status"})
	NotificationsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_enqueued_total", Help: "Notifications queued for delivery",
	}, []string{"channel"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total", Help: "HTTP requests served",
	}, []string{"method", "route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		RecordsCreated, StatusUpdates, QRVerifications, GeoCheckins, SyncBatches, NotificationsEnqueued,
		HTTPRequests, HTTPDuration, DBPing,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveRecordCreated(m models.MarkingMethod) { RecordsCreated.WithLabelValues(string(m)).Inc() }

func ObserveGeoCheckin(within bool) { GeoCheckins.WithLabelValues(strconv.FormatBool(within)).Inc() }

func ObserveSyncBatch(s models.SyncStatus) { SyncBatches.WithLabelValues(string(s)).Inc() }

func ObserveHTTP(method, route string, code int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
