package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"

	"github.com/Alextopher/basic-audio-unit/config"
	"github.com/Alextopher/basic-audio-unit/params"
	"github.com/Alextopher/basic-audio-unit/render"
	"github.com/Alextopher/basic-audio-unit/score"
	"github.com/Alextopher/basic-audio-unit/synth"
)

type options struct {
	freq    float64
	gain    float64
	seconds float64
	midi    string
	out     string
	tail    time.Duration
}

func main() {
	cfg := config.Load()

	var o options
	sr := flag.Int("sr", int(cfg.SampleRate), "sample rate in Hz")
	flag.Float64Var(&o.freq, "freq", 440, "tone frequency in Hz")
	flag.Float64Var(&o.gain, "gain", 0.25, "output gain, 0 to 1")
	flag.Float64Var(&o.seconds, "seconds", 0, "tone length; 0 plays until interrupted (requires -out when rendering a tone)")
	flag.StringVar(&o.midi, "midi", "", "render or play this MIDI file instead of a tone")
	flag.StringVar(&o.out, "out", "", "write a WAV file instead of playing")
	flag.DurationVar(&o.tail, "tail", 250*time.Millisecond, "silence after the last MIDI note")
	flag.Parse()

	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "basic-audio-unit")

	rate := beep.SampleRate(*sr)
	unit, err := synth.New(rate, synth.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("invalid sample rate")
	}

	s, err := source(unit, rate, o)
	if err != nil {
		log.WithError(err).Fatal("failed to build the signal")
	}

	if o.out != "" {
		if err := writeFile(o.out, s, rate); err != nil {
			log.WithError(err).Fatal("failed to render")
		}
		log.WithField("path", o.out).Info("Rendered")
		return
	}

	if err := speaker.Init(rate, rate.N(cfg.Buffer)); err != nil {
		log.WithError(err).Fatal("failed to open the speaker")
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))
	<-done
}

// source builds the streamer described by o on top of unit.
func source(unit *synth.Unit, sr beep.SampleRate, o options) (beep.Streamer, error) {
	if err := unit.SetParameter(params.Gain, o.gain); err != nil {
		return nil, err
	}

	if o.midi != "" {
		voices, err := score.Read(o.midi)
		if err != nil {
			return nil, err
		}
		streams, err := score.Merge(voices, 1)
		if err != nil {
			return nil, err
		}
		return render.Sequence(unit, streams[0], sr, o.tail), nil
	}

	if err := unit.SetFrequency(o.freq); err != nil {
		return nil, err
	}
	if err := unit.Hold(1); err != nil {
		return nil, err
	}

	if o.seconds > 0 {
		return beep.Take(sr.N(time.Duration(o.seconds*float64(time.Second))), unit.Streamer()), nil
	}
	if o.out != "" {
		return nil, fmt.Errorf("rendering a tone needs -seconds")
	}
	return unit.Streamer(), nil
}

func writeFile(path string, s beep.Streamer, sr beep.SampleRate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := render.WriteWAV(f, s, sr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
