// Package render plays note streams through a synth unit offline and writes the
// result as WAV.
package render

import (
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"github.com/Alextopher/basic-audio-unit/score"
	"github.com/Alextopher/basic-audio-unit/synth"
)

type event struct {
	frame    int
	on       bool
	key      uint8
	velocity uint8
}

type sequencer struct {
	unit   *synth.Unit
	events []event
	pos    int
	total  int
}

// Sequence returns a finite streamer that renders u while applying the notes of s
// at their exact sample frames. It ends tail after the last note is released.
func Sequence(u *synth.Unit, s score.Stream, sr beep.SampleRate, tail time.Duration) beep.Streamer {
	events := make([]event, 0, 2*len(s.Notes))
	for _, e := range s.Events() {
		events = append(events, event{frame: sr.N(e.At), on: e.On, key: e.Key, velocity: e.Velocity})
	}

	return &sequencer{
		unit:   u,
		events: events,
		total:  sr.N(s.Length() + tail),
	}
}

func (q *sequencer) Stream(samples [][2]float64) (n int, ok bool) {
	if q.pos >= q.total {
		return 0, false
	}

	for n < len(samples) && q.pos < q.total {
		for len(q.events) > 0 && q.events[0].frame <= q.pos {
			e := q.events[0]
			if e.on {
				q.unit.NoteOn(e.key, e.velocity)
			} else {
				q.unit.NoteOff(e.key)
			}
			q.events = q.events[1:]
		}

		end := q.total
		if len(q.events) > 0 && q.events[0].frame < end {
			end = q.events[0].frame
		}
		chunk := end - q.pos
		if room := len(samples) - n; chunk > room {
			chunk = room
		}

		m, _ := q.unit.Streamer().Stream(samples[n : n+chunk])
		n += m
		q.pos += m
	}

	return n, true
}

func (q *sequencer) Err() error {
	return q.unit.Streamer().Err()
}

// Format is the WAV format used by WriteWAV: stereo, 16 bit.
func Format(sr beep.SampleRate) beep.Format {
	return beep.Format{
		SampleRate:  sr,
		NumChannels: 2,
		Precision:   2,
	}
}

// WriteWAV encodes s until it is drained. s must be finite.
func WriteWAV(w io.WriteSeeker, s beep.Streamer, sr beep.SampleRate) error {
	return wav.Encode(w, s, Format(sr))
}
