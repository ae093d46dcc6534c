package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"flyer/protocol"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 32
	writeWait         = 2 * time.Second
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

// client is one websocket viewer
type client struct {
	socket *websocket.Conn
	send   chan []byte
	room   *Room
}

// read drains control frames until the viewer goes away
func (c *client) read() {
	defer c.socket.Close()
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Room broadcasts records as JSON to every connected websocket viewer.
// A viewer that falls behind misses records rather than stalling the monitor.
type Room struct {
	// forward holds encoded records waiting to be broadcast
	forward chan []byte
	// join is a channel for clients wishing to join the room
	join chan *client
	// leave is a channel for clients wishing to leave the room
	leave chan *client
	// clients holds all current clients in this room
	clients map[*client]bool
	// done is closed when Run returns
	done chan struct{}

	log zerolog.Logger
}

// NewRoom makes a new room; call Run to start broadcasting
func NewRoom(log zerolog.Logger) *Room {
	return &Room{
		forward: make(chan []byte, messageBufferSize),
		join:    make(chan *client),
		leave:   make(chan *client),
		clients: make(map[*client]bool),
		done:    make(chan struct{}),
		log:     log,
	}
}

// Run services joins, leaves and broadcasts until ctx is cancelled
func (r *Room) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(r.done)
			for c := range r.clients {
				delete(r.clients, c)
				close(c.send)
			}
			return
		case c := <-r.join:
			r.clients[c] = true
			r.log.Info().Int("viewers", len(r.clients)).Msg("Viewer joined")
		case c := <-r.leave:
			if r.clients[c] {
				delete(r.clients, c)
				close(c.send)
			}
			r.log.Info().Int("viewers", len(r.clients)).Msg("Viewer left")
		case msg := <-r.forward:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					r.log.Debug().Msg("Viewer behind, record dropped")
				}
			}
		}
	}
}

// Write queues a record for broadcast, dropping it if the room is backed up
func (r *Room) Write(rec protocol.Telemetry) error {
	msg, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	select {
	case r.forward <- msg:
	default:
	}
	return nil
}

func (r *Room) Close() error {
	return nil
}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	c := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
		room:   r,
	}
	select {
	case r.join <- c:
	case <-r.done:
		socket.Close()
		return
	}
	defer func() {
		select {
		case r.leave <- c:
		case <-r.done:
		}
	}()
	go c.write()
	c.read()
}
