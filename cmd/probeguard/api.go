package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"
	"strings"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/mastercactapus/probeguard/firmware"
	"github.com/mastercactapus/probeguard/ioport"
	"github.com/mastercactapus/probeguard/machine"
	"github.com/mastercactapus/probeguard/protect"
	"github.com/mastercactapus/probeguard/report"
)

type api struct {
	http.Handler
	c     *firmware.Controller
	s     *protect.Supervisor
	m     machine.Adapter
	hub   *report.Hub
	ports firmware.Ports
	sse   *sse.Server
}

type status struct {
	Controller string               `json:"controller"`
	Plugin     protect.Status       `json:"plugin"`
	Machine    machine.State        `json:"machine"`
	Dropped    uint64               `json:"dropped"`
	Inputs     []ioport.Description `json:"inputs,omitempty"`
}

type setting struct {
	ID          firmware.Setting `json:"id"`
	Group       string           `json:"group"`
	Name        string           `json:"name"`
	Format      string           `json:"format"`
	Labels      []string         `json:"labels,omitempty"`
	Max         uint             `json:"max"`
	Description string           `json:"description"`
	Value       uint             `json:"value"`
}

type describer interface {
	Describe() []ioport.Description
}

func newAPI(ctx context.Context, c *firmware.Controller, s *protect.Supervisor, m machine.Adapter, hub *report.Hub, ports firmware.Ports) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		c:       c,
		s:       s,
		m:       m,
		hub:     hub,
		ports:   ports,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/run", a.run).Methods("POST")
	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/api/settings", a.settings).Methods("GET")
	r.HandleFunc("/api/settings/{id:[0-9]+}", a.putSetting).Methods("PUT")
	r.HandleFunc("/api/connect", a.line("M401")).Methods("POST")
	r.HandleFunc("/api/disconnect", a.line("M402")).Methods("POST")
	r.HandleFunc("/api/realtime/{cmd}", a.realtime).Methods("POST")
	r.HandleFunc("/api/report", a.report).Methods("GET")
	r.HandleFunc("/api/inputs/{port:[0-9]+}", a.putInput).Methods("PUT")
	r.PathPrefix("/events/").Handler(a.sse)

	if m != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case state := <-m.State():
					a.send("/events/state", state)
				}
			}
		}()
	}
	go func() {
		_, events, cancel := hub.Subscribe()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				a.send("/events/messages", e)
			}
		}
	}()

	return a
}

func (a *api) send(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal json: %+v", err)
		return
	}
	a.sse.SendMessage(channel, sse.SimpleMessage(string(data)))
}

func (a *api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Println("ERROR: encode:", err)
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, firmware.ErrBusy),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, firmware.ErrLocked):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func (a *api) exec(w http.ResponseWriter, req *http.Request, line string) bool {
	err := a.c.Exec(req.Context(), line)
	if err != nil {
		log.Printf("ERROR: exec '%s': %+v", line, err)
		http.Error(w, err.Error(), errorStatus(err))
		return false
	}
	return true
}

func (a *api) run(w http.ResponseWriter, req *http.Request) {
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !a.exec(w, req, line) {
			return
		}
	}
}

func (a *api) line(line string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		a.exec(w, req, line)
	}
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	var st status
	err := a.c.Submit(req.Context(), func() error {
		st.Plugin = a.s.Status()
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	st.Controller = a.c.State().String()
	st.Dropped = a.hub.Dropped()
	if a.m != nil {
		st.Machine = a.m.CurrentState()
	}
	if d, ok := a.ports.(describer); ok {
		st.Inputs = d.Describe()
	}
	a.writeJSON(w, st)
}

func formatName(f firmware.Format) string {
	if f == firmware.FormatBitfield {
		return "bitfield"
	}
	return "int8"
}

func (a *api) settings(w http.ResponseWriter, req *http.Request) {
	var res []setting
	err := a.c.Submit(req.Context(), func() error {
		for _, g := range a.c.SettingGroups() {
			for _, d := range g.Details {
				s := setting{
					ID:          d.ID,
					Group:       g.Name,
					Name:        d.Name,
					Format:      formatName(d.Format),
					Max:         d.Max,
					Description: d.Description,
					Value:       d.Get(),
				}
				if d.Labels != "" {
					s.Labels = strings.Split(d.Labels, ",")
				}
				res = append(res, s)
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	a.writeJSON(w, res)
}

func (a *api) putSetting(w http.ResponseWriter, req *http.Request) {
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	val := strings.TrimSpace(string(data))
	if _, err := strconv.ParseUint(val, 10, 16); err != nil {
		http.Error(w, "invalid setting value", http.StatusBadRequest)
		return
	}
	a.exec(w, req, "$"+mux.Vars(req)["id"]+"="+val)
}

func (a *api) realtime(w http.ResponseWriter, req *http.Request) {
	var b byte
	switch mux.Vars(req)["cmd"] {
	case "reset":
		b = firmware.CmdReset
	case "toggle":
		b = firmware.CmdProbeConnectedToggle
	default:
		http.NotFound(w, req)
		return
	}
	a.c.Realtime(b)
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) report(w http.ResponseWriter, req *http.Request) {
	lines := []string{}
	for _, e := range a.hub.Backlog() {
		lines = append(lines, e.Line())
	}
	a.writeJSON(w, lines)
}

// putInput drives a simulated input, e.g. the external connected signal.
func (a *api) putInput(w http.ResponseWriter, req *http.Request) {
	sim, ok := a.ports.(*ioport.Sim)
	if !ok {
		http.Error(w, "inputs are not simulated", http.StatusNotImplemented)
		return
	}
	port, err := strconv.ParseUint(mux.Vars(req)["port"], 10, 8)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var high bool
	switch strings.TrimSpace(string(data)) {
	case "1", "true":
		high = true
	case "0", "false":
	default:
		http.Error(w, "level must be 0 or 1", http.StatusBadRequest)
		return
	}
	err = sim.Set(uint8(port), high)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
}
