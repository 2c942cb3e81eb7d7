// Package score turns standard MIDI files into timed note streams for monophonic
// units.
package score

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/reader"
)

var ErrNoStreams = errors.New("score: need at least one stream")

// Voice holds every on/off event of one key on one channel of one track.
type Voice struct {
	Track   int16
	Channel uint8
	Key     uint8
	Events  []VoiceEvent

	// OnTime is the total time the key was held
	OnTime time.Duration

	lastOn time.Duration
}

type VoiceEvent struct {
	// Midi ticks when the event happened
	Ticks uint64
	// Real time when the event happened (accounts for tempo)
	At       time.Duration
	On       bool
	Velocity uint8
}

// Note is a single played note in a Stream.
type Note struct {
	Key      uint8
	Velocity uint8
	At       time.Duration
	Duration time.Duration
}

// End is when the note is released.
func (n Note) End() time.Duration {
	return n.At + n.Duration
}

// Stream is a time ordered list of notes meant for one monophonic unit.
type Stream struct {
	Notes  []Note
	OnTime time.Duration
}

// Length is the time at which the last note of the stream ends.
func (s Stream) Length() time.Duration {
	var end time.Duration
	for _, n := range s.Notes {
		if n.End() > end {
			end = n.End()
		}
	}
	return end
}

// Event is a note strike or release at an offset from the start of a Stream.
type Event struct {
	At       time.Duration
	On       bool
	Key      uint8
	Velocity uint8
}

// Events flattens the stream into strikes and releases in time order. Releases
// sort before strikes at the same instant so a key struck again still sounds.
func (s Stream) Events() []Event {
	events := make([]Event, 0, 2*len(s.Notes))
	for _, n := range s.Notes {
		events = append(events,
			Event{At: n.At, On: true, Key: n.Key, Velocity: n.Velocity},
			Event{At: n.End(), Key: n.Key},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].At != events[j].At {
			return events[i].At < events[j].At
		}
		return !events[i].On && events[j].On
	})
	return events
}

type voiceKey struct {
	track   int16
	channel uint8
	key     uint8
}

// Read parses the SMF file at path into voices, longest total on time first.
func Read(path string) ([]*Voice, error) {
	voices := make(map[voiceKey]*Voice)
	var rd *reader.Reader
	var timeErr error

	voiceAt := func(p *reader.Position, channel, key uint8) (*Voice, time.Duration, bool) {
		k := voiceKey{p.Track, channel, key}
		if voices[k] == nil {
			voices[k] = &Voice{Track: p.Track, Channel: channel, Key: key}
		}

		rt := reader.TimeAt(rd, p.AbsoluteTicks)
		if rt == nil {
			if timeErr == nil {
				timeErr = fmt.Errorf("score: no timing information at tick %d", p.AbsoluteTicks)
			}
			return nil, 0, false
		}
		return voices[k], *rt, true
	}

	noteOff := func(p *reader.Position, channel, key, vel uint8) {
		v, rt, ok := voiceAt(p, channel, key)
		if !ok {
			return
		}
		v.Events = append(v.Events, VoiceEvent{
			Ticks:    p.AbsoluteTicks,
			At:       rt,
			On:       false,
			Velocity: vel,
		})
		v.OnTime += rt - v.lastOn
	}

	noteOn := func(p *reader.Position, channel, key, vel uint8) {
		if vel == 0 {
			noteOff(p, channel, key, vel)
			return
		}

		v, rt, ok := voiceAt(p, channel, key)
		if !ok {
			return
		}
		v.Events = append(v.Events, VoiceEvent{
			Ticks:    p.AbsoluteTicks,
			At:       rt,
			On:       true,
			Velocity: vel,
		})
		v.lastOn = rt
	}

	rd = reader.New(reader.NoLogger(),
		reader.NoteOn(noteOn),
		reader.NoteOff(noteOff),
	)

	if err := reader.ReadSMFFile(rd, path); err != nil {
		return nil, fmt.Errorf("score: read %s: %w", path, err)
	}
	if timeErr != nil {
		return nil, timeErr
	}

	out := make([]*Voice, 0, len(voices))
	for _, v := range voices {
		out = append(out, v)
	}

	// longest first so Merge can balance greedily
	sort.Slice(out, func(i, j int) bool {
		if out[i].OnTime != out[j].OnTime {
			return out[i].OnTime > out[j].OnTime
		}
		return out[i].Key < out[j].Key
	})

	logrus.WithFields(logrus.Fields{
		"function": "score.Read",
		"path":     path,
		"voices":   len(out),
	}).Debug("Read MIDI file")

	return out, nil
}

// notes pairs every note on with the event that follows it.
func (v *Voice) notes() []Note {
	notes := make([]Note, 0, len(v.Events)/2)
	for i := 0; i < len(v.Events)-1; i++ {
		event := v.Events[i]
		next := v.Events[i+1]

		if event.On {
			notes = append(notes, Note{
				Key:      v.Key,
				Velocity: event.Velocity,
				At:       event.At,
				Duration: next.At - event.At,
			})
		}
	}

	if n := len(v.Events); n > 0 && v.Events[n-1].On {
		logrus.WithFields(logrus.Fields{
			"function": "Voice.notes",
			"track":    v.Track,
			"channel":  v.Channel,
			"key":      v.Key,
		}).Warn("Dropping note that is never released")
	}

	return notes
}

// Merge fairly distributes the voices over n streams, giving each voice to the
// stream with the least total on time so far.
func Merge(voices []*Voice, n int) ([]Stream, error) {
	if n <= 0 {
		return nil, ErrNoStreams
	}

	groups := make([]Stream, n)
	for i := range groups {
		groups[i].Notes = make([]Note, 0)
	}

	for _, voice := range voices {
		min := 0
		for i := 1; i < n; i++ {
			if groups[i].OnTime < groups[min].OnTime {
				min = i
			}
		}

		groups[min].Notes = append(groups[min].Notes, voice.notes()...)
		groups[min].OnTime += voice.OnTime
	}

	for i := range groups {
		notes := groups[i].Notes
		sort.SliceStable(notes, func(j, k int) bool {
			return notes[j].At < notes[k].At
		})
	}

	return groups, nil
}
