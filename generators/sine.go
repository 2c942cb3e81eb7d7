package generators

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/faiface/beep"
)

// DefaultSampleRate is the rate used when the host does not supply one.
const DefaultSampleRate = 44100.0

// ErrInvalidConfiguration is returned for sample rates or frequencies that would
// make the phase increment non-finite.
var ErrInvalidConfiguration = errors.New("invalid oscillator configuration")

// SinOscillator is a phase-accumulating sine oscillator.
//
// SetFrequency may be called from any goroutine while another goroutine renders;
// the phase increment is stored atomically. Process, Phase and Reset own the phase
// and must only be called from the render goroutine.
type SinOscillator struct {
	sampleRate float64
	dt         atomic.Uint64 // math.Float64bits of the phase increment
	t          float64
}

func New(sampleRate float64) (*SinOscillator, error) {
	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %v: %w", sampleRate, ErrInvalidConfiguration)
	}

	return &SinOscillator{sampleRate: sampleRate}, nil
}

// SetFrequency sets the phase increment to hz/sampleRate. Negative frequencies run
// the phase backwards; frequencies at or above the sample rate alias.
func (o *SinOscillator) SetFrequency(hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("frequency %v: %w", hz, ErrInvalidConfiguration)
	}

	inc := hz / o.sampleRate
	if math.IsInf(inc, 0) {
		return fmt.Errorf("frequency %v at sample rate %v: %w", hz, o.sampleRate, ErrInvalidConfiguration)
	}

	o.dt.Store(math.Float64bits(inc))
	return nil
}

// Process returns sin(2π·phase) and then advances the phase by one sample.
func (o *SinOscillator) Process() float64 {
	v := math.Sin(o.t * 2.0 * math.Pi)
	o.t = wrap(o.t + o.PhaseIncrement())
	return v
}

func (o *SinOscillator) SampleRate() float64 {
	return o.sampleRate
}

func (o *SinOscillator) PhaseIncrement() float64 {
	return math.Float64frombits(o.dt.Load())
}

// Phase is the position within the current cycle, in [0, 1).
func (o *SinOscillator) Phase() float64 {
	return o.t
}

// Reset moves the phase back to the start of a cycle. The frequency is kept.
func (o *SinOscillator) Reset() {
	o.t = 0
}

// wrap folds t into [0, 1). Unlike a single subtraction this also holds for
// increments larger than one cycle and for negative increments.
func wrap(t float64) float64 {
	if t >= 0 && t < 1 {
		return t
	}
	t -= math.Floor(t)
	// -tiny - floor(-tiny) rounds to exactly 1
	if t >= 1 {
		t = 0
	}
	return t
}

type sineGenerator struct {
	osc *SinOscillator
}

// Streamer renders osc as an endless stereo beep.Streamer with the same sample on
// both channels.
func Streamer(osc *SinOscillator) beep.Streamer {
	return &sineGenerator{osc}
}

// SineTone creates an endless sine streamer at freq. The sample rate must be at
// least twice the frequency.
func SineTone(sr beep.SampleRate, freq float64) (beep.Streamer, error) {
	osc, err := New(float64(sr))
	if err != nil {
		return nil, err
	}

	if math.Abs(freq/float64(sr)) >= 1.0/2.0 {
		return nil, fmt.Errorf("sine tone %v Hz at %d Hz: samplerate must be at least 2 times greater than frequency: %w", freq, sr, ErrInvalidConfiguration)
	}

	if err := osc.SetFrequency(freq); err != nil {
		return nil, err
	}

	return Streamer(osc), nil
}

func (g *sineGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		v := g.osc.Process()
		samples[i][0] = v
		samples[i][1] = v
	}

	return len(samples), true
}

func (*sineGenerator) Err() error {
	return nil
}
