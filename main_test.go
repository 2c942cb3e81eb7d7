package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alextopher/basic-audio-unit/params"
	"github.com/Alextopher/basic-audio-unit/synth"
)

func TestSourceTone(t *testing.T) {
	sr := beep.SampleRate(8000)
	u, err := synth.New(sr)
	require.NoError(t, err)

	s, err := source(u, sr, options{freq: 1000, gain: 0.5, seconds: 0.5})
	require.NoError(t, err)

	samples := make([][2]float64, 8)
	n, ok := s.Stream(samples)
	require.True(t, ok)
	require.Equal(t, 8, n)
	assert.InDelta(t, 0.5, samples[2][0], 1e-9)
	assert.InDelta(t, -0.5, samples[6][1], 1e-9)

	gain, err := u.Parameter(params.Gain)
	require.NoError(t, err)
	assert.Equal(t, 0.5, gain)
}

func TestSourceRejects(t *testing.T) {
	sr := beep.SampleRate(8000)
	u, err := synth.New(sr)
	require.NoError(t, err)

	_, err = source(u, sr, options{freq: 440, gain: 2})
	assert.ErrorIs(t, err, params.ErrOutOfRange)

	_, err = source(u, sr, options{freq: 440, gain: 0.5, out: "x.wav"})
	assert.Error(t, err, "an endless tone cannot be rendered")

	_, err = source(u, sr, options{gain: 0.5, midi: filepath.Join(t.TempDir(), "missing.mid")})
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	sr := beep.SampleRate(8000)
	u, err := synth.New(sr)
	require.NoError(t, err)

	s, err := source(u, sr, options{freq: 440, gain: 0.25, seconds: 0.1, tail: time.Second})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, writeFile(path, s, sr))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d, format, err := wav.Decode(f)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, sr, format.SampleRate)
	assert.Equal(t, 800, d.Len())
}
