package remote

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var ErrTransportDisabled = errors.New("remote: transport disabled")

// Transport opens the listener the server accepts on.
type Transport interface {
	Listen() (net.Listener, error)
	String() string
}

// TCPTransport listens on a TCP address.
type TCPTransport struct {
	Addr string
}

func (t TCPTransport) Listen() (net.Listener, error) {
	return net.Listen("tcp", strings.TrimSpace(t.Addr))
}

func (t TCPTransport) String() string {
	return "tcp://" + t.Addr
}

// DisabledTransport never listens. The server idles until stopped.
type DisabledTransport struct{}

func (DisabledTransport) Listen() (net.Listener, error) {
	return nil, ErrTransportDisabled
}

func (DisabledTransport) String() string {
	return "disabled"
}

// NewTransport maps a configured port to a transport; port 0 disables the
// remote channel.
func NewTransport(host string, port int) Transport {
	if port == 0 {
		return DisabledTransport{}
	}
	return TCPTransport{Addr: net.JoinHostPort(host, fmt.Sprint(port))}
}
