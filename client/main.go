package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faiface/beep/speaker"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Alextopher/basic-audio-unit/config"
	"github.com/Alextopher/basic-audio-unit/metrics"
	"github.com/Alextopher/basic-audio-unit/shared"
	"github.com/Alextopher/basic-audio-unit/synth"
)

func main() {
	cfg := config.Load()
	name := flag.String("name", "sine", "name announced to the controller (4 bytes)")
	broadcast := flag.String("broadcast", "255.255.255.255", "address the CAPS announcement is broadcast to")
	httpAddr := flag.String("http", cfg.HTTPAddr, "HTTP control and metrics address")
	flag.Parse()

	logrus.SetLevel(cfg.LogLevel)
	log := logrus.WithField("component", "client")

	if err := run(cfg, *name, *broadcast, *httpAddr, log); err != nil {
		log.WithError(err).Fatal("client stopped")
	}
}

func run(cfg *config.Config, name, broadcast, httpAddr string, log *logrus.Entry) error {
	unit, err := synth.New(cfg.SampleRate, synth.WithLogger(log))
	if err != nil {
		return err
	}

	if err := speaker.Init(cfg.SampleRate, cfg.SampleRate.N(cfg.Buffer)); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}
	speaker.Play(unit.Streamer())

	// Listen on random local port
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return err
	}

	// the controller will be listening somewhere in the local network
	broadcastAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", broadcast, cfg.ControlPort))
	if err != nil {
		return err
	}

	send := make(chan shared.Message)
	recv := make(chan shared.Message)

	go shared.Recv(conn, recv, metrics.Dropped)
	go shared.Send(conn, send)

	log.WithFields(logrus.Fields{
		"udp":         conn.LocalAddr().String(),
		"http":        httpAddr,
		"sample_rate": int(cfg.SampleRate),
	}).Info("Unit listening")

	var id [24]byte
	u := uuid.New()
	copy(id[:], u[:])

	h := newHost(unit, log)
	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      h.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		unit.AllNotesOff()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		caps := &shared.CAPS_Packet{Name: name, NumVoices: 1, Identity: id}
		err := control(ctx, h, caps, broadcastAddr, send, recv)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	return g.Wait()
}

var errRecvClosed = errors.New("control socket closed")

// control announces the unit until a controller pings back, then applies its
// packets. A QUIT sends it back to announcing.
func control(ctx context.Context, h *host, caps *shared.CAPS_Packet, broadcastAddr *net.UDPAddr, send chan<- shared.Message, recv <-chan shared.Message) error {
	for {
		controller, err := discover(ctx, caps, broadcastAddr, send, recv)
		if err != nil {
			return err
		}
		h.log.WithField("controller", controller.String()).Info("Received ping")

		if err := serve(ctx, h, controller, recv); err != nil {
			return err
		}
		h.log.WithField("controller", controller.String()).Info("Received QUIT")
	}
}

func discover(ctx context.Context, caps *shared.CAPS_Packet, broadcastAddr *net.UDPAddr, send chan<- shared.Message, recv <-chan shared.Message) (*net.UDPAddr, error) {
	// Broadcast a CAPS packet until we get a response from the controller
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			select {
			case send <- shared.Message{Pkt: caps, Addr: broadcastAddr}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case msg, ok := <-recv:
			if !ok {
				return nil, errRecvClosed
			}
			if msg.Pkt.Type() == shared.PING {
				return msg.Addr, nil
			}
		}
	}
}

func serve(ctx context.Context, h *host, controller *net.UDPAddr, recv <-chan shared.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-recv:
			if !ok {
				return errRecvClosed
			}
			if !msg.Addr.IP.Equal(controller.IP) || msg.Addr.Port != controller.Port {
				metrics.Dropped("foreign")
				continue
			}
			if h.apply(msg.Pkt) {
				return nil
			}
		}
	}
}
