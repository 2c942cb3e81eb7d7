package generators

import (
	"math"
	"sync/atomic"

	"github.com/faiface/beep"
)

// Amplitude scales a Streamer by a linear gain. The gain can be changed from any
// goroutine while the streamer is being rendered.
type Amplitude struct {
	streamer beep.Streamer
	gain     atomic.Uint64
}

func NewAmplitude(s beep.Streamer, gain float64) *Amplitude {
	a := &Amplitude{streamer: s}
	a.SetGain(gain)
	return a
}

func (g *Amplitude) SetGain(gain float64) {
	g.gain.Store(math.Float64bits(gain))
}

func (g *Amplitude) Gain() float64 {
	return math.Float64frombits(g.gain.Load())
}

// Stream streams the wrapped Streamer multiplied by the current gain.
func (g *Amplitude) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = g.streamer.Stream(samples)
	gain := g.Gain()
	for i := range samples[:n] {
		samples[i][0] *= gain
		samples[i][1] *= gain
	}
	return n, ok
}

func (g *Amplitude) Err() error {
	return g.streamer.Err()
}
