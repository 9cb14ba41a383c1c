// Package websocket рассылает оповещения об аномалиях и триггерах
// подключенным клиентам.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hydroguard/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message формат оповещения
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub хранит активных клиентов и рассылает им сообщения
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub создает хаб
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.logger.Debug("websocket client registered", zap.String("remote", client.remote()))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Debug("websocket client unregistered", zap.String("remote", client.remote()))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("websocket client is too slow, removing", zap.String("remote", client.remote()))
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Broadcast отправляет сообщение всем клиентам. Если хаб не успевает,
// сообщение отбрасывается, чтобы не блокировать рекордер.
func (h *Hub) Broadcast(kind string, payload interface{}) {
	data, err := json.Marshal(Message{Type: kind, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal websocket message", zap.String("type", kind), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.logger.Warn("websocket broadcast queue is full, message dropped", zap.String("type", kind))
	}
}

// ServeWS переводит соединение на websocket и регистрирует клиента
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
