package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// ErrHubClosed is returned when a client connects after the hub stopped.
var ErrHubClosed = errors.New("live hub is closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Message is what display clients receive.
type Message struct {
	Type    string `json:"type"`
	State   any    `json:"state,omitempty"`
	Records any    `json:"records,omitempty"`
}

// Hub fans draw updates out to the display screens of each tenant.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	counts     chan countQuery
	done       chan struct{}
}

// Client is one connected display.
type Client struct {
	hub    *Hub
	tenant string
	conn   *websocket.Conn

	outgoing chan []byte
}

type outbound struct {
	tenant  string
	payload []byte
}

type countQuery struct {
	tenant string
	reply  chan int
}

// NewHub creates a hub. Run must be called before it is used.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		counts:     make(chan countQuery),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.outgoing)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		case c := <-h.register:
			if h.clients[c.tenant] == nil {
				h.clients[c.tenant] = make(map[*Client]bool)
			}
			h.clients[c.tenant][c] = true
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			for c := range h.clients[msg.tenant] {
				select {
				case c.outgoing <- msg.payload:
				default:
					logger.Warningf("Dropping slow display client for tenant %s", c.tenant)
					h.remove(c)
				}
			}
		case q := <-h.counts:
			q.reply <- len(h.clients[q.tenant])
		}
	}
}

func (h *Hub) remove(c *Client) {
	set := h.clients[c.tenant]
	if !set[c] {
		return
	}
	delete(set, c)
	close(c.outgoing)
	if len(set) == 0 {
		delete(h.clients, c.tenant)
	}
}

// Publish sends msg to every display of tenant.
func (h *Hub) Publish(tenant string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Encoding live message %q: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- outbound{tenant: tenant, payload: payload}:
	case <-h.done:
	}
}

// ClientCount returns how many displays tenant has connected.
func (h *Hub) ClientCount(tenant string) int {
	reply := make(chan int, 1)
	select {
	case h.counts <- countQuery{tenant: tenant, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and attaches the connection to tenant.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenant string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{hub: h, tenant: tenant, conn: conn, outgoing: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return ErrHubClosed
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump only watches for the display going away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
