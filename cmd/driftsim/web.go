package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	model "marathon-sim/driftsim/pkg/datamodel"
	"marathon-sim/driftsim/pkg/sim"

	"github.com/gorilla/websocket"
)

// one frame of the live feed, sent to every connected viewer after a tick
type frame struct {
	Time      float64            `json:"time"`
	Stats     model.RoutingStats `json:"stats"`
	Agents    []model.Vec3       `json:"agents"`
	Delivered []bool             `json:"delivered"`
	Messages  int                `json:"messages"`
}

// hub fans frames out to websocket viewers.  Slow viewers are dropped
// rather than allowed to stall the tick loop.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) add(conn *websocket.Conn) chan []byte {
	send := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	return send
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	var drop []*websocket.Conn
	for conn, send := range h.clients {
		select {
		case send <- payload:
		default:
			drop = append(drop, conn)
		}
	}
	for _, conn := range drop {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the viewer is expected to run on another port during development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// run the simulation at its configured cadence and expose its state over
// HTTP: a JSON status endpoint, a websocket position feed, and the metrics
// handler.  Rendering is entirely the viewer's problem; this process only
// serves snapshots.
func webService(config *model.Config) {

	simulation := sim.New(config, log)
	if err := simulation.Init(config.Simulation.AgentCount, config.Simulation.RoutingMode); err != nil {
		log.Fatalf("cannot initialize simulation: %v", err)
	}

	collector, err := NewCollector(nil)
	if err != nil {
		log.Warnf("cannot register metrics: %v", err)
	}

	h := newHub()
	var simMu sync.Mutex

	// tick loop; the mutex serializes ticks against snapshot reads
	go func() {
		dt := config.Simulation.TimeStep
		ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
		for range ticker.C {
			simMu.Lock()
			if err := simulation.Step(dt); err != nil {
				simMu.Unlock()
				log.Errorf("step failed: %v", err)
				return
			}
			f := frame{
				Time:      simulation.Clock(),
				Stats:     simulation.Stats(),
				Agents:    simulation.AgentPositions(),
				Delivered: simulation.DeliveredFlags(),
				Messages:  len(simulation.Messages()),
			}
			if collector != nil {
				collector.Observe(f.Stats, simulation.AgentCount(), f.Messages)
			}
			simMu.Unlock()

			payload, err := json.Marshal(f)
			if err != nil {
				log.Warnf("cannot marshal frame: %v", err)
				continue
			}
			h.broadcast(payload)
		}
	}()

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		simMu.Lock()
		status := struct {
			RoutingMode string             `json:"routing_mode"`
			AgentCount  int                `json:"agent_count"`
			Time        float64            `json:"time"`
			Stats       model.RoutingStats `json:"stats"`
			Nodes       []model.Vec3       `json:"nodes"`
		}{
			RoutingMode: simulation.RoutingMode(),
			AgentCount:  simulation.AgentCount(),
			Time:        simulation.Clock(),
			Stats:       simulation.Stats(),
			Nodes:       simulation.NodePositions(),
		}
		simMu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Warnf("cannot write status: %v", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("websocket upgrade failed: %v", err)
			return
		}
		send := h.add(conn)
		log.Infof("viewer connected from %v", conn.RemoteAddr())

		// writer; exits when the hub closes the channel
		go func() {
			for payload := range send {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					h.remove(conn)
					return
				}
			}
		}()

		// reader; we expect no input, but the read loop notices disconnects
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.remove(conn)
					return
				}
			}
		}()
	})

	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	addr := fmt.Sprintf("%v:%v", config.WebServer.Host, config.WebServer.Port)
	log.Infof("serving simulation on http://%v (websocket feed on /ws)", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("web server stopped: %v", err)
	}
}
