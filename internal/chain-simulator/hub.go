package simulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/shared/logger"
)

// Hub repassa cada transferência processada para os clientes WebSocket conectados
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[string]*websocket.Conn

	connections prometheus.Gauge
	sent        prometheus.Counter
}

func NewHub(log *zap.Logger, reg prometheus.Registerer) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     logger.OrNop(log),
		clients: make(map[string]*websocket.Conn),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chain_sim_ws_connections",
			Help: "Connected websocket clients.",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chain_sim_ws_messages_sent_total",
			Help: "Websocket messages sent.",
		}),
	}
	if reg != nil {
		reg.MustRegister(h.connections, h.sent)
	}
	return h
}

// HandleWS registra o cliente e descarta o que ele enviar até desconectar
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	h.add(id, conn)

	go func() {
		defer func() {
			h.remove(id)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) add(id string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = c
	h.connections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", id))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.connections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Clients devolve quantos clientes estão conectados.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast envia v para todos; escrita com falha derruba o cliente.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("ws marshal failed", zap.Error(err))
		return
	}

	// escritas concorrentes na mesma conexão não são permitidas
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.Close()
			continue
		}
		h.sent.Inc()
	}
}
