// Package metrics exposes Prometheus metrics for the tracker.
// Counters are fed by domain events, so the orchestrator never touches them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

const namespace = "tracker"

// Metrics holds every collector of one process.
type Metrics struct {
	registry *prometheus.Registry

	completions    *prometheus.CounterVec
	xpGranted      *prometheus.CounterVec
	xpCapped       prometheus.Counter
	levelUps       prometheus.Counter
	badgesUnlocked *prometheus.CounterVec
	streakLength   prometheus.Histogram
	streakBreaks   prometheus.Counter
	lessonUpserts  *prometheus.CounterVec

	handlerDuration *prometheus.HistogramVec
	jobDuration     *prometheus.HistogramVec
	httpDuration    *prometheus.HistogramVec
}

// New creates a Metrics bound to a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// ─── Progress ───────────────────────────────────────────────────────

		completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "First-time completions by item kind.",
		}, []string{"kind"}),
		xpGranted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_granted_total",
			Help:      "XP granted after the daily cap, by item kind.",
		}, []string{"kind"}),
		xpCapped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_capped_awards_total",
			Help:      "Awards reduced by the daily XP cap.",
		}),
		levelUps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Level boundaries crossed.",
		}),
		badgesUnlocked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_unlocked_total",
			Help:      "Badges unlocked by type and rarity.",
		}, []string{"type", "rarity"}),
		streakLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "streak_length_days",
			Help:      "Current streak after each award.",
			Buckets:   []float64{1, 2, 3, 5, 7, 14, 30, 60, 100, 365},
		}),
		streakBreaks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streak_breaks_total",
			Help:      "Awards that restarted a broken streak.",
		}),

		// ─── Catalog ────────────────────────────────────────────────────────

		lessonUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_upserts_total",
			Help:      "Lesson definitions written, by outcome.",
		}, []string{"outcome"}),

		// ─── Runtime ────────────────────────────────────────────────────────

		handlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler run time.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"event_type", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job", "outcome"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Subscribe feeds m from every event published on bus.
func (m *Metrics) Subscribe(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(m.HandleEvent)
}

// HandleEvent records one domain event. Unknown events are ignored.
func (m *Metrics) HandleEvent(event shared.Event) error {
	switch e := event.(type) {
	case shared.ItemCompletedEvent:
		m.completions.WithLabelValues(e.ItemKind).Inc()
	case shared.XPAwardedEvent:
		m.xpGranted.WithLabelValues(e.ItemKind).Add(float64(e.Granted))
		if e.Capped {
			m.xpCapped.Inc()
		}
	case shared.LevelUpEvent:
		m.levelUps.Add(float64(e.NewLevel - e.OldLevel))
	case shared.StreakUpdatedEvent:
		m.streakLength.Observe(float64(e.CurrentStreak))
		if e.Broken {
			m.streakBreaks.Inc()
		}
	case shared.BadgeUnlockedEvent:
		m.badgesUnlocked.WithLabelValues(e.BadgeType, e.Rarity).Inc()
	case shared.LessonUpsertedEvent:
		outcome := "updated"
		if e.Created {
			outcome = "created"
		}
		m.lessonUpserts.WithLabelValues(outcome).Inc()
	}
	return nil
}

// ObserveHandler implements messaging.HandlerObserver.
func (m *Metrics) ObserveHandler(eventType shared.EventType, d time.Duration, err error) {
	m.handlerDuration.WithLabelValues(string(eventType), outcome(err)).Observe(d.Seconds())
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	m.jobDuration.WithLabelValues(job, outcome(err)).Observe(d.Seconds())
}

// ObserveRequest records one HTTP request. route is the matched pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
