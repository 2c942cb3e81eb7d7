package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Alextopher/basic-audio-unit/metrics"
	"github.com/Alextopher/basic-audio-unit/params"
	"github.com/Alextopher/basic-audio-unit/shared"
	"github.com/Alextopher/basic-audio-unit/synth"
)

// host applies control traffic to a unit.
type host struct {
	unit *synth.Unit
	log  *logrus.Entry
}

func newHost(u *synth.Unit, log *logrus.Entry) *host {
	h := &host{unit: u, log: log}
	if g, err := u.Parameter(params.Gain); err == nil {
		metrics.Gain.Set(g)
	}
	return h
}

// apply handles one control packet. It reports whether the controller asked us
// to quit.
func (h *host) apply(pkt shared.Packet) (quit bool) {
	metrics.PacketsTotal.WithLabelValues(typeName(pkt.Type())).Inc()

	switch p := pkt.(type) {
	case *shared.PARAM_Packet:
		h.setParameter(p.Address, float64(p.Value))
	case *shared.NOTE_Packet:
		if p.On && p.Velocity > 0 {
			h.unit.NoteOn(p.Key, p.Velocity)
			metrics.NotesTotal.WithLabelValues("on").Inc()
			metrics.Frequency.Set(h.unit.Frequency())
		} else {
			h.unit.NoteOff(p.Key)
			metrics.NotesTotal.WithLabelValues("off").Inc()
		}
	case *shared.QUIT_Packet:
		h.unit.AllNotesOff()
		return true
	case *shared.KA_Packet, *shared.PING_Packet:
	default:
		metrics.Dropped("unexpected")
		h.log.WithFields(logrus.Fields{
			"function": "host.apply",
			"packet":   pkt.String(),
		}).Warn("Ignoring unexpected packet")
	}
	return false
}

func (h *host) setParameter(addr params.Address, value float64) error {
	if err := h.unit.SetParameter(addr, value); err != nil {
		metrics.ParameterUpdatesTotal.WithLabelValues(addr.String(), "rejected").Inc()
		h.log.WithFields(logrus.Fields{
			"function":  "host.setParameter",
			"parameter": addr.String(),
			"value":     value,
			"error":     err.Error(),
		}).Warn("Rejected parameter change")
		return err
	}

	metrics.ParameterUpdatesTotal.WithLabelValues(addr.String(), "applied").Inc()
	if addr == params.Gain {
		metrics.Gain.Set(value)
	}
	return nil
}

func typeName(t shared.PacketType) string {
	switch t {
	case shared.KA:
		return "ka"
	case shared.PING:
		return "ping"
	case shared.QUIT:
		return "quit"
	case shared.PARAM:
		return "param"
	case shared.NOTE:
		return "note"
	case shared.CAPS:
		return "caps"
	}
	return "unknown"
}

type paramValue struct {
	Address    uint64  `json:"address"`
	Identifier string  `json:"identifier"`
	Value      float64 `json:"value"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Default    float64 `json:"default"`
}

func (h *host) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/params", func(r chi.Router) {
		r.Get("/", h.listParams)
		r.Get("/{address}", h.getParam)
		r.Put("/{address}", h.putParam)
	})

	return r
}

func (h *host) value(spec params.Spec) paramValue {
	v, _ := h.unit.Parameter(spec.Address)
	return paramValue{
		Address:    uint64(spec.Address),
		Identifier: spec.Identifier,
		Value:      v,
		Min:        spec.Min,
		Max:        spec.Max,
		Default:    spec.Default,
	}
}

func (h *host) listParams(w http.ResponseWriter, r *http.Request) {
	all := params.All()
	out := make([]paramValue, len(all))
	for i, spec := range all {
		out[i] = h.value(spec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *host) lookup(w http.ResponseWriter, r *http.Request) (params.Spec, bool) {
	addr, err := params.Parse(chi.URLParam(r, "address"))
	if err == nil {
		var spec params.Spec
		if spec, err = params.Lookup(addr); err == nil {
			return spec, true
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	return params.Spec{}, false
}

func (h *host) getParam(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.value(spec))
}

func (h *host) putParam(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var body struct {
		Value *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"value\": number}"})
		return
	}

	if err := h.setParameter(spec.Address, *body.Value); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, params.ErrOutOfRange) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, h.value(spec))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "writeJSON",
			"status":   status,
			"error":    err,
		}).Warn("Failed to write response")
	}
}
