package comms

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conductor fans applied actions out to websocket subscribers.
type Conductor struct {
	lock    sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *zap.Logger
}

func NewConductor() *Conductor {
	return &Conductor{
		clients: make(map[*websocket.Conn]bool),
		logger:  zap.L(),
	}
}

func (c *Conductor) Subscribe(conn *websocket.Conn) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.clients[conn] = true
}

func (c *Conductor) Unsubscribe(conn *websocket.Conn) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.clients, conn)
}

func (c *Conductor) ClientCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.clients)
}

// Broadcast sends the payload to every subscriber. Subscribers that fail to
// receive are dropped.
func (c *Conductor) Broadcast(payload StatePayload) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for conn := range c.clients {
		if err := conn.WriteJSON(payload); err != nil {
			c.logger.Debug("dropping slow subscriber", zap.Error(err))
			conn.Close()
			delete(c.clients, conn)
		}
	}
}
