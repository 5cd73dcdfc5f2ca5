package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

var _ port.Client = (*Client)(nil)

// Client is one browser websocket. Writes go through a buffered queue and a
// single writer goroutine, so SendSignal never blocks the caller.
type Client struct {
	id   domain.ClientID
	conn *websocket.Conn
	send chan Message
	done chan struct{}
	once sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   domain.NewClientID(),
		conn: conn,
		send: make(chan Message, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id.String()
}

func (c *Client) SendSignal(signal domain.Signal) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- NewMessage(signal):
		return nil
	default:
		return ErrSendBufferFull
	}
}

// WritePump writes queued messages until the client is closed or a write
// fails.
func (c *Client) WritePump() {
	l := log.With().Str("client_id", c.ID()).Logger()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				l.Error().Err(err).Msg("Error writing message")
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Close stops the writer. The reader owns the connection and closes it.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
