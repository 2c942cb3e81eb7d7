// Package synth wires a sine oscillator, a note gate and the gain parameter into
// a single monophonic instrument.
package synth

import (
	"fmt"
	"math"
	"sync"

	"github.com/faiface/beep"
	"github.com/sirupsen/logrus"

	"github.com/Alextopher/basic-audio-unit/generators"
	"github.com/Alextopher/basic-audio-unit/params"
)

const noKey = -1

// Unit is a monophonic sine instrument.
//
// Control methods may be called from any goroutine. The streamer returned by
// Streamer must be rendered by one goroutine only. Rendering the streamer never
// takes the control lock, but a sequencer that calls NoteOn and NoteOff from its
// Stream method does, so other callers should keep their critical sections short.
type Unit struct {
	mu  sync.Mutex
	key int

	osc  *generators.SinOscillator
	gate *generators.Amplitude
	gain *generators.Amplitude
	out  beep.Streamer

	sr  beep.SampleRate
	log *logrus.Entry
}

type Option func(*Unit)

func WithLogger(l *logrus.Entry) Option {
	return func(u *Unit) { u.log = l }
}

func New(sr beep.SampleRate, opts ...Option) (*Unit, error) {
	osc, err := generators.New(float64(sr))
	if err != nil {
		return nil, err
	}

	spec, err := params.Lookup(params.Gain)
	if err != nil {
		return nil, err
	}

	u := &Unit{
		key: noKey,
		osc: osc,
		sr:  sr,
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	u.gate = generators.NewAmplitude(generators.Streamer(osc), 0)
	u.gain = generators.NewAmplitude(u.gate, spec.Default)
	u.out = u.gain

	for _, opt := range opts {
		opt(u)
	}

	u.log.WithFields(logrus.Fields{
		"function":    "synth.New",
		"sample_rate": int(sr),
		"gain":        spec.Default,
	}).Debug("Unit created")

	return u, nil
}

func (u *Unit) SampleRate() beep.SampleRate {
	return u.sr
}

// Streamer is the unit's stereo output.
func (u *Unit) Streamer() beep.Streamer {
	return u.out
}

// SetParameter applies a host parameter change.
func (u *Unit) SetParameter(addr params.Address, value float64) error {
	spec, err := params.Lookup(addr)
	if err != nil {
		return err
	}
	if err := spec.Validate(value); err != nil {
		return err
	}

	switch addr {
	case params.Gain:
		u.gain.SetGain(value)
	}

	u.log.WithFields(logrus.Fields{
		"function":  "Unit.SetParameter",
		"parameter": addr.String(),
		"value":     value,
	}).Debug("Parameter updated")

	return nil
}

func (u *Unit) Parameter(addr params.Address) (float64, error) {
	if _, err := params.Lookup(addr); err != nil {
		return 0, err
	}

	switch addr {
	case params.Gain:
		return u.gain.Gain(), nil
	}
	return 0, fmt.Errorf("%w: %d", params.ErrUnknownAddress, uint64(addr))
}

// NoteOn retunes the oscillator to key and opens the gate at velocity/127. A
// velocity of zero is treated as a note off.
func (u *Unit) NoteOn(key, velocity uint8) {
	if velocity == 0 {
		u.NoteOff(key)
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.osc.SetFrequency(KeyToFreq(key)); err != nil {
		u.log.WithFields(logrus.Fields{
			"function": "Unit.NoteOn",
			"key":      key,
			"error":    err,
		}).Warn("Note not tuned")
		return
	}
	u.gate.SetGain(float64(velocity) / 127)
	u.key = int(key)

	u.log.WithFields(logrus.Fields{
		"function": "Unit.NoteOn",
		"key":      key,
		"velocity": velocity,
	}).Debug("Note on")
}

// NoteOff closes the gate if key is the note currently sounding.
func (u *Unit) NoteOff(key uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.key != int(key) {
		return
	}
	u.gate.SetGain(0)
	u.key = noKey

	u.log.WithFields(logrus.Fields{
		"function": "Unit.NoteOff",
		"key":      key,
	}).Debug("Note off")
}

// AllNotesOff closes the gate regardless of the sounding key.
func (u *Unit) AllNotesOff() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.gate.SetGain(0)
	u.key = noKey
}

// SetFrequency tunes the oscillator directly, outside of note handling.
func (u *Unit) SetFrequency(hz float64) error {
	return u.osc.SetFrequency(hz)
}

// Hold opens the gate at level without a note, for drones and test tones.
func (u *Unit) Hold(level float64) error {
	if math.IsNaN(level) || math.IsInf(level, 0) || level < 0 || level > 1 {
		return fmt.Errorf("hold level %v: %w", level, params.ErrOutOfRange)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	u.gate.SetGain(level)
	u.key = noKey
	return nil
}

// Sounding reports the key currently held, if any.
func (u *Unit) Sounding() (key uint8, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.key == noKey {
		return 0, false
	}
	return uint8(u.key), true
}

// Frequency is the oscillator's current frequency in Hz.
func (u *Unit) Frequency() float64 {
	return u.osc.PhaseIncrement() * u.osc.SampleRate()
}

// KeyToFreq converts a MIDI key to its equal-tempered frequency, A4 (69) = 440 Hz.
func KeyToFreq(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}
