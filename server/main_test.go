package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alextopher/basic-audio-unit/params"
	"github.com/Alextopher/basic-audio-unit/score"
	"github.com/Alextopher/basic-audio-unit/shared"
)

func TestTimeline(t *testing.T) {
	s := score.Stream{Notes: []score.Note{
		{Key: 60, Velocity: 90, At: 0, Duration: time.Second},
		{Key: 62, Velocity: 80, At: time.Second, Duration: time.Second},
		{Key: 64, Velocity: 70, At: 1500 * time.Millisecond, Duration: time.Second},
	}}

	cues := timeline(s)
	require.Len(t, cues, 6)

	want := []struct {
		at  time.Duration
		key uint8
		on  bool
	}{
		{0, 60, true},
		{time.Second, 60, false},
		{time.Second, 62, true},
		{1500 * time.Millisecond, 64, true},
		{2 * time.Second, 62, false},
		{2500 * time.Millisecond, 64, false},
	}
	for i, w := range want {
		assert.Equal(t, w.at, cues[i].at, "cue %d", i)
		assert.Equal(t, w.key, cues[i].pkt.Key, "cue %d", i)
		assert.Equal(t, w.on, cues[i].pkt.On, "cue %d", i)
	}
}

func TestCollect(t *testing.T) {
	a := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1000}
	b := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 1000}

	send := make(chan shared.Message, 10)
	recv := make(chan shared.Message, 10)
	recv <- shared.Message{Pkt: &shared.CAPS_Packet{Name: "sine"}, Addr: a}
	recv <- shared.Message{Pkt: &shared.KA_Packet{}, Addr: b}
	recv <- shared.Message{Pkt: &shared.CAPS_Packet{Name: "sine"}, Addr: b}
	recv <- shared.Message{Pkt: &shared.CAPS_Packet{Name: "sine"}, Addr: a}
	close(recv)

	clients := collect(context.Background(), time.Minute, send, recv)
	require.Len(t, clients, 2)
	assert.Equal(t, a, clients[0])
	assert.Equal(t, b, clients[1])

	// every announcement is answered, even repeats
	assert.Len(t, send, 3)
	for i := 0; i < 3; i++ {
		msg := <-send
		assert.Equal(t, shared.PING, msg.Pkt.Type())
	}
}

func TestPlaySendsCuesInOrder(t *testing.T) {
	client := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1000}
	cues := timeline(score.Stream{Notes: []score.Note{
		{Key: 60, Velocity: 90, At: 0, Duration: 10 * time.Millisecond},
	}})

	send := make(chan shared.Message, 2)
	play(context.Background(), time.Now(), cues, client, send)

	require.Len(t, send, 2)
	on := (<-send).Pkt.(*shared.NOTE_Packet)
	off := (<-send).Pkt.(*shared.NOTE_Packet)
	assert.True(t, on.On)
	assert.False(t, off.On)
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cues := timeline(score.Stream{Notes: []score.Note{
		{Key: 60, Velocity: 90, At: time.Hour, Duration: time.Second},
	}})

	send := make(chan shared.Message, 2)
	play(ctx, time.Now(), cues, &net.UDPAddr{}, send)
	assert.Empty(t, send)
}

func TestValidateGain(t *testing.T) {
	assert.NoError(t, validateGain(0))
	assert.NoError(t, validateGain(1))
	assert.ErrorIs(t, validateGain(1.5), params.ErrOutOfRange)
}
