package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	Frequency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basic_audio_unit_frequency_hz",
		Help: "Oscillator frequency of the sounding note",
	})
	Gain = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basic_audio_unit_gain",
		Help: "Current value of the gain parameter",
	})
)

// Counters
var (
	PacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basic_audio_unit_packets_total",
		Help: "Control packets received by type",
	}, []string{"type"})
	PacketsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basic_audio_unit_packets_dropped_total",
		Help: "Control packets dropped by reason",
	}, []string{"reason"})
	ParameterUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basic_audio_unit_parameter_updates_total",
		Help: "Parameter changes by parameter and outcome",
	}, []string{"parameter", "outcome"})
	NotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basic_audio_unit_notes_total",
		Help: "Note events applied by kind",
	}, []string{"kind"})
)

// Dropped records a packet that could not be used.
func Dropped(reason string) {
	PacketsDroppedTotal.WithLabelValues(reason).Inc()
}
