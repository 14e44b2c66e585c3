package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"timeclock/internal/timeclock/models"
)

// Metrics provides observability for the kiosk record store and recorder.
// All methods are safe on a nil receiver so tests can omit metrics.
type Metrics struct {
	EventsRecorded     *prometheus.CounterVec
	ImagesPurged       prometheus.Counter
	StoreWriteDuration prometheus.Histogram
	StoreConflicts     prometheus.Counter
	Employees          *prometheus.GaugeVec
	StoredEvents       prometheus.Gauge
	UnsyncedEvents     prometheus.Gauge
}

// New registers the kiosk metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_events_recorded_total",
			Help: "Attendance events recorded, by type",
		}, []string{"type"}),
		ImagesPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "timeclock_images_purged_total",
			Help: "Evidence images cleared by the retention purge",
		}),
		StoreWriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "timeclock_store_write_duration_seconds",
			Help:    "Duration of whole-document writes to the backend",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StoreConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "timeclock_store_conflicts_total",
			Help: "Writes rejected because the persisted document version moved",
		}),
		Employees: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timeclock_employees",
			Help: "Employees in the document, by status",
		}, []string{"status"}),
		StoredEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timeclock_events_stored",
			Help: "Events held in the document",
		}),
		UnsyncedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timeclock_events_unsynced",
			Help: "Events not yet marked synced",
		}),
	}
}

func (m *Metrics) IncrementEventRecorded(t models.EventType) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) AddImagesPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImagesPurged.Add(float64(n))
}

// ObserveStoreWrite records a backend write. Call with time.Now() at the start of the write.
func (m *Metrics) ObserveStoreWrite(start time.Time) {
	if m == nil {
		return
	}
	m.StoreWriteDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementStoreConflict() {
	if m == nil {
		return
	}
	m.StoreConflicts.Inc()
}

// ObserveDocument refreshes the gauges from a saved snapshot. It is meant to
// be registered as a store subscriber.
func (m *Metrics) ObserveDocument(doc models.Document) {
	if m == nil {
		return
	}
	counts := map[models.EmployeeStatus]int{
		models.EmployeeStatusPending:  0,
		models.EmployeeStatusActive:   0,
		models.EmployeeStatusDisabled: 0,
	}
	for _, e := range doc.Employees {
		counts[e.Status]++
	}
	for status, n := range counts {
		m.Employees.WithLabelValues(string(status)).Set(float64(n))
	}
	unsynced := 0
	for _, ev := range doc.Events {
		if !ev.Synced {
			unsynced++
		}
	}
	m.StoredEvents.Set(float64(len(doc.Events)))
	m.UnsyncedEvents.Set(float64(unsynced))
}
