package shared

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alextopher/basic-audio-unit/params"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return conn
}

func TestSendRecv(t *testing.T) {
	a, b := listen(t), listen(t)
	defer a.Close()

	send := make(chan Message, 2)
	recv := make(chan Message, 2)
	reasons := make(chan string, 1)

	go Send(a, send)
	go Recv(b, recv, func(reason string) { reasons <- reason })

	to := b.LocalAddr().(*net.UDPAddr)

	// a datagram of the wrong size is dropped
	_, err := a.WriteToUDP([]byte{1, 2, 3}, to)
	require.NoError(t, err)

	send <- Message{Pkt: &PARAM_Packet{Address: params.Gain, Value: 0.5}, Addr: to}
	close(send)

	select {
	case msg := <-recv:
		p, ok := msg.Pkt.(*PARAM_Packet)
		require.True(t, ok, "unexpected packet %v", msg.Pkt)
		assert.Equal(t, params.Gain, p.Address)
		assert.Equal(t, float32(0.5), p.Value)
		assert.Equal(t, a.LocalAddr().String(), msg.Addr.String())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}

	select {
	case reason := <-reasons:
		assert.Equal(t, "malformed", reason)
	case <-time.After(2 * time.Second):
		t.Fatal("malformed datagram was not reported")
	}

	// closing the socket ends the receive loop
	b.Close()
	select {
	case _, open := <-recv:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("receive channel was not closed")
	}
}
