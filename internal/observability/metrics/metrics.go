package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/service/output"
)

const metricPrefix = "tempmon_"

//nolint:gochecknoglobals // Collectors are registered once per process.
var (
	registerOnce sync.Once

	transitionsTotal  *prometheus.CounterVec
	eventsTotal       *prometheus.CounterVec
	alarmsCurrent     *prometheus.GaugeVec
	outputState       *prometheus.GaugeVec
	tickLatency       prometheus.Histogram
	sensorErrorsTotal *prometheus.CounterVec
)

// Init creates the collectors and registers them with the default registry.
func Init() {
	registerOnce.Do(func() {
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_transitions_total",
				Help: "Total alarm stage transitions by source and target stage",
			},
			[]string{"from", "to"},
		)
		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm events by kind",
			},
			[]string{"kind"},
		)
		alarmsCurrent = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alarms",
				Help: "Enabled alarms by priority and stage",
			},
			[]string{"priority", "stage"},
		)
		outputState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "output_state",
				Help: "Output state: 0 off, 1 on, 2 blinking",
			},
			[]string{"output"},
		)
		tickLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_duration_seconds",
				Help:    "Monitor tick latency in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		)
		sensorErrorsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sensor_errors_total",
				Help: "Total failed sensor reads by point address",
			},
			[]string{"point"},
		)

		prometheus.MustRegister(
			transitionsTotal,
			eventsTotal,
			alarmsCurrent,
			outputState,
			tickLatency,
			sensorErrorsTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEvent counts an alarm event, and the transition it carries if any.
func ObserveEvent(e alarm.Event) {
	if eventsTotal != nil {
		eventsTotal.WithLabelValues(e.Kind.String()).Inc()
	}

	if e.Kind != alarm.EventTransition || transitionsTotal == nil {
		return
	}

	transitionsTotal.WithLabelValues(e.From.String(), e.To.String()).Inc()
}

// SetAlarmCounts publishes the summary as the alarm gauge.
func SetAlarmCounts(s alarm.Summary) {
	if alarmsCurrent == nil {
		return
	}

	for _, p := range alarm.Priorities() {
		alarmsCurrent.WithLabelValues(p.String(), alarm.StageActive.String()).Set(float64(s.Active[p]))
		alarmsCurrent.WithLabelValues(p.String(), alarm.StageAcknowledged.String()).Set(float64(s.Acknowledged[p]))
	}
}

// SetOutputs publishes the last known output signals.
func SetOutputs(state map[output.Name]output.Signal) {
	if outputState == nil {
		return
	}

	for name, signal := range state {
		outputState.WithLabelValues(string(name)).Set(signalValue(signal))
	}
}

// ObserveTick records how long one monitor tick took.
func ObserveTick(duration time.Duration) {
	if tickLatency != nil {
		tickLatency.Observe(duration.Seconds())
	}
}

// IncSensorError counts a failed read on the point at address.
func IncSensorError(address string) {
	if address == "" {
		address = "unknown"
	}

	if sensorErrorsTotal != nil {
		sensorErrorsTotal.WithLabelValues(address).Inc()
	}
}

// Sink counts every alarm event it receives.
type Sink struct{}

// NewSink returns an alarm sink backed by the event counters.
func NewSink() *Sink {
	return new(Sink)
}

// Record counts the event. It never fails.
func (*Sink) Record(_ context.Context, e alarm.Event) error {
	ObserveEvent(e)

	return nil
}

func signalValue(s output.Signal) float64 {
	switch {
	case s.Blinking():
		return 2
	case s.On:
		return 1
	default:
		return 0
	}
}
