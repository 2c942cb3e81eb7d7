package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alextopher/basic-audio-unit/config"
	"github.com/Alextopher/basic-audio-unit/params"
	"github.com/Alextopher/basic-audio-unit/score"
	"github.com/Alextopher/basic-audio-unit/shared"
)

func main() {
	cfg := config.Load()
	wait := flag.Duration("wait", 3*time.Second, "how long to collect units before playing")
	gain := flag.Float64("gain", -1, "gain sent to every unit before playing (negative keeps the unit's own)")
	flag.Usage = func() {
		os.Stderr.WriteString("Usage: server [flags] <midifile>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "server")

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *gain >= 0 {
		if err := validateGain(*gain); err != nil {
			log.WithError(err).Fatal("invalid -gain")
		}
	}

	// read the score before anyone is waiting on us
	voices, err := score.Read(flag.Arg(0))
	if err != nil {
		log.WithError(err).Fatal("failed to read MIDI file")
	}

	// Listen for CAPS packets
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: cfg.ControlPort})
	if err != nil {
		log.WithError(err).Fatal("failed to listen")
	}

	send := make(chan shared.Message, 10)
	recv := make(chan shared.Message, 10)

	go shared.Recv(conn, recv, nil)
	go shared.Send(conn, send)

	log.WithField("addr", conn.LocalAddr().String()).Info("Listening for units")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients := collect(ctx, *wait, send, recv)
	log.WithField("units", len(clients)).Info("Discovery finished")
	if len(clients) == 0 {
		log.Fatal("no units answered")
	}

	streams, err := score.Merge(voices, len(clients))
	if err != nil {
		log.WithError(err).Fatal("failed to merge voices")
	}

	if *gain >= 0 {
		for _, client := range clients {
			send <- shared.Message{
				Pkt:  &shared.PARAM_Packet{Address: params.Gain, Value: float32(*gain)},
				Addr: client,
			}
		}
	}

	// begin streaming the voices
	start := time.Now()

	wg := &sync.WaitGroup{}
	for i, client := range clients {
		wg.Add(1)
		go func(client *net.UDPAddr, cues []cue) {
			defer wg.Done()
			play(ctx, start, cues, client, send)
		}(client, timeline(streams[i]))
	}
	wg.Wait()

	for _, client := range clients {
		send <- shared.Message{Pkt: &shared.QUIT_Packet{}, Addr: client}
	}

	// Wait for 1 second to make sure all packets are sent
	time.Sleep(time.Second)

	log.WithField("elapsed", time.Since(start).String()).Info("Done")
}

func validateGain(v float64) error {
	spec, err := params.Lookup(params.Gain)
	if err != nil {
		return err
	}
	return spec.Validate(v)
}

// collect answers every CAPS announcement with a PING until wait elapses.
func collect(ctx context.Context, wait time.Duration, send chan<- shared.Message, recv <-chan shared.Message) []*net.UDPAddr {
	ping := shared.RandomPing()
	seen := make(map[string]bool)
	clients := make([]*net.UDPAddr, 0)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-recv:
			if !ok {
				return clients
			}
			caps, isCaps := msg.Pkt.(*shared.CAPS_Packet)
			if !isCaps {
				continue
			}

			send <- shared.Message{Pkt: &ping, Addr: msg.Addr}

			if !seen[msg.Addr.String()] {
				seen[msg.Addr.String()] = true
				clients = append(clients, msg.Addr)
				logrus.WithFields(logrus.Fields{
					"function": "collect",
					"unit":     caps.String(),
					"addr":     msg.Addr.String(),
				}).Info("Unit joined")
			}
		case <-timer.C:
			return clients
		case <-ctx.Done():
			return clients
		}
	}
}

// cue is a note event at an offset from the start of playback.
type cue struct {
	at  time.Duration
	pkt *shared.NOTE_Packet
}

// timeline turns the events of a stream into NOTE packets.
func timeline(s score.Stream) []cue {
	events := s.Events()
	cues := make([]cue, 0, len(events))
	for _, e := range events {
		cues = append(cues, cue{e.At, &shared.NOTE_Packet{Key: e.Key, Velocity: e.Velocity, On: e.On}})
	}
	return cues
}

func play(ctx context.Context, start time.Time, cues []cue, client *net.UDPAddr, send chan<- shared.Message) {
	for _, c := range cues {
		// Sleep until the event is due
		select {
		case <-time.After(time.Until(start.Add(c.at))):
		case <-ctx.Done():
			return
		}

		send <- shared.Message{Pkt: c.pkt, Addr: client}
	}
}
