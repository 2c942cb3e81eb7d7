package shared

import (
	"net"

	"github.com/sirupsen/logrus"
)

// ControlPort is the UDP port a controller listens on for CAPS broadcasts.
const ControlPort = 12074

type Message struct {
	Pkt  Packet
	Addr *net.UDPAddr
}

// Send writes every message from ch to conn until ch is closed.
func Send(conn *net.UDPConn, ch <-chan Message) {
	for msg := range ch {
		_, err := conn.WriteToUDP(Encode(msg.Pkt), msg.Addr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "shared.Send",
				"packet":   msg.Pkt.String(),
				"addr":     msg.Addr.String(),
				"error":    err.Error(),
			}).Warn("Failed to send packet")
			continue
		}
	}
}

// Recv decodes datagrams from conn into ch. Malformed datagrams are dropped and
// reported to dropped when it is non-nil. ch is closed once conn fails.
func Recv(conn *net.UDPConn, ch chan<- Message, dropped func(reason string)) {
	var buf [DatagramSize + 1]byte
	for {
		n, addr, err := conn.ReadFromUDP(buf[0:])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "shared.Recv",
				"error":    err.Error(),
			}).Debug("Receive loop stopped")
			close(ch)
			return
		}

		p, err := Decode(buf[:n])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "shared.Recv",
				"addr":     addr.String(),
				"length":   n,
				"error":    err.Error(),
			}).Warn("Dropping malformed packet")
			if dropped != nil {
				dropped("malformed")
			}
			continue
		}

		ch <- Message{Pkt: p, Addr: addr}
	}
}
