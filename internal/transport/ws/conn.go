package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	conn         *websocket.Conn
	roomID       string
	writeTimeout time.Duration
	sendMu       chan struct{}
	closed       chan struct{}
}

func newWsConn(c *websocket.Conn, roomID string, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         c,
		roomID:       roomID,
		writeTimeout: writeTimeout,
		sendMu:       make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Ping() error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	select {
	case <-c.closed:
		return nil
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) RoomID() string { return c.roomID }
