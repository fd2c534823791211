package telephony

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is one accepted media-stream connection. Implementations must allow
// concurrent writers; reads are single-consumer.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// WrapConn adapts an upgraded websocket for use by the bridge.
func WrapConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	var retErr error
	c.closeOnce.Do(func() {
		retErr = c.conn.Close()
	})
	return retErr
}
