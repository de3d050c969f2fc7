package remote

import (
	"context"
	"net"
	"time"

	"github.com/danmuck/paramctl/internal/protocol"
	"github.com/danmuck/paramctl/internal/protocol/frame"
)

// Client sends commands over one connection.
type Client struct {
	conn    net.Conn
	limits  frame.Limits
	timeout time.Duration
}

func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, limits: frame.DefaultLimits(), timeout: 30 * time.Second}
}

// Send issues one command and waits for its answer. A failure answer is not
// an error; check Success on the result.
func (c *Client) Send(command string, args ...string) (protocol.AnswerMessage, error) {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	req := protocol.RequestMessage{Command: command, Args: args}
	if err := protocol.WriteRequest(c.conn, req, c.limits); err != nil {
		return protocol.AnswerMessage{}, err
	}
	return protocol.ReadAnswer(c.conn, c.limits)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
