package synth

import (
	"math"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alextopher/basic-audio-unit/params"
)

func render(u *Unit, n int) [][2]float64 {
	samples := make([][2]float64, n)
	u.Streamer().Stream(samples)
	return samples
}

func peak(samples [][2]float64) float64 {
	max := 0.0
	for _, s := range samples {
		max = math.Max(max, math.Abs(s[0]))
	}
	return max
}

func TestNewRejectsZeroSampleRate(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestNewIsSilentWithDefaultGain(t *testing.T) {
	u, err := New(8000)
	require.NoError(t, err)

	gain, err := u.Parameter(params.Gain)
	require.NoError(t, err)
	assert.Equal(t, 0.25, gain)

	assert.Equal(t, 0.0, peak(render(u, 256)))
	_, ok := u.Sounding()
	assert.False(t, ok)
}

func TestSetParameter(t *testing.T) {
	u, err := New(8000)
	require.NoError(t, err)

	require.NoError(t, u.SetParameter(params.Gain, 0.5))
	gain, err := u.Parameter(params.Gain)
	require.NoError(t, err)
	assert.Equal(t, 0.5, gain)

	assert.ErrorIs(t, u.SetParameter(params.Gain, 2), params.ErrOutOfRange)
	assert.ErrorIs(t, u.SetParameter(params.Address(9), 0.5), params.ErrUnknownAddress)

	_, err = u.Parameter(params.Address(9))
	assert.ErrorIs(t, err, params.ErrUnknownAddress)

	gain, err = u.Parameter(params.Gain)
	require.NoError(t, err)
	assert.Equal(t, 0.5, gain, "rejected values must not change the gain")
}

func TestNoteOnOff(t *testing.T) {
	u, err := New(44100)
	require.NoError(t, err)
	require.NoError(t, u.SetParameter(params.Gain, 1))

	u.NoteOn(69, 127)
	assert.InDelta(t, 440.0, u.Frequency(), 1e-9)
	key, ok := u.Sounding()
	assert.True(t, ok)
	assert.Equal(t, uint8(69), key)
	assert.InDelta(t, 1.0, peak(render(u, 441)), 1e-3)

	// releasing a different key keeps the note
	u.NoteOff(60)
	_, ok = u.Sounding()
	assert.True(t, ok)

	u.NoteOff(69)
	_, ok = u.Sounding()
	assert.False(t, ok)
	assert.Equal(t, 0.0, peak(render(u, 441)))
}

func TestNoteOnVelocityScalesOutput(t *testing.T) {
	u, err := New(44100)
	require.NoError(t, err)
	require.NoError(t, u.SetParameter(params.Gain, 0.5))

	u.NoteOn(69, 64)
	want := 0.5 * 64.0 / 127.0
	assert.InDelta(t, want, peak(render(u, 441)), 1e-3)
}

func TestNoteOnZeroVelocityReleases(t *testing.T) {
	u, err := New(44100)
	require.NoError(t, err)

	u.NoteOn(60, 100)
	u.NoteOn(60, 0)

	_, ok := u.Sounding()
	assert.False(t, ok)
}

func TestLastNotePriority(t *testing.T) {
	u, err := New(44100)
	require.NoError(t, err)

	u.NoteOn(60, 100)
	u.NoteOn(72, 100)
	assert.InDelta(t, 523.2511, u.Frequency(), 1e-3)

	u.NoteOff(60)
	key, ok := u.Sounding()
	assert.True(t, ok)
	assert.Equal(t, uint8(72), key)

	u.AllNotesOff()
	_, ok = u.Sounding()
	assert.False(t, ok)
}

func TestHold(t *testing.T) {
	u, err := New(8000)
	require.NoError(t, err)
	require.NoError(t, u.SetParameter(params.Gain, 1))
	require.NoError(t, u.SetFrequency(1000))
	require.NoError(t, u.Hold(1))

	samples := render(u, 8)
	assert.InDelta(t, 1.0, samples[2][0], 1e-9)
	assert.InDelta(t, -1.0, samples[6][1], 1e-9)

	assert.ErrorIs(t, u.Hold(1.5), params.ErrOutOfRange)
	assert.ErrorIs(t, u.Hold(math.NaN()), params.ErrOutOfRange)
}

func TestKeyToFreq(t *testing.T) {
	assert.InDelta(t, 440.0, KeyToFreq(69), 1e-9)
	assert.InDelta(t, 880.0, KeyToFreq(81), 1e-9)
	assert.InDelta(t, 261.6256, KeyToFreq(60), 1e-4)
	assert.InDelta(t, 8.1758, KeyToFreq(0), 1e-4)
}

func TestNoteOnTunesEveryKey(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	// the lowest rate gives the largest phase increments
	u, err := New(1, WithLogger(logrus.NewEntry(logger)))
	require.NoError(t, err)

	for key := 0; key < 128; key++ {
		u.NoteOn(uint8(key), 100)
		assert.InDelta(t, KeyToFreq(uint8(key)), u.Frequency(), 1e-6, "key %d", key)
		sounding, ok := u.Sounding()
		assert.True(t, ok, "key %d", key)
		assert.Equal(t, uint8(key), sounding)
	}

	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
	}
}

func TestControlWhileRendering(t *testing.T) {
	u, err := New(48000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			u.NoteOn(uint8(40+i%40), 100)
			u.NoteOff(uint8(40 + i%40))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = u.SetParameter(params.Gain, float64(i%100)/100)
		}
	}()

	for i := 0; i < 50; i++ {
		for _, s := range render(u, 64) {
			if math.Abs(s[0]) > 1 {
				t.Fatalf("sample out of range: %v", s)
			}
		}
	}
	wg.Wait()
}
