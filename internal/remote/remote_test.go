package remote

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/engine"
	"github.com/danmuck/paramctl/internal/protocol"
	"github.com/danmuck/paramctl/internal/protocol/frame"
	"github.com/danmuck/paramctl/internal/syncer"
	"github.com/danmuck/paramctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structure = `
tag: SystemClass
attrs: {Name: Audio}
children:
  - tag: Subsystem
    attrs: {Name: Core, Type: Memory}
    children:
      - tag: InstanceDefinition
        children:
          - {tag: IntegerParameter, attrs: {Name: gain, Size: 8, Default: "20"}}
          - {tag: BooleanParameter, attrs: {Name: mute}}
`

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	root, err := description.ParseYAML([]byte(structure))
	require.NoError(t, err)
	reg := syncer.NewRegistry()
	require.NoError(t, reg.Register(syncer.MemoryType, syncer.NewMemoryBackend))
	logger := testlog.Logger(t)
	opts := engine.DefaultOptions()
	opts.Logger = &logger
	e, err := engine.Load(engine.Sources{Structure: root}, reg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// startServer serves on a loopback port and returns its address.
func startServer(t *testing.T, h Handler) string {
	t.Helper()
	return startServerWith(t, h, DefaultServerConfig())
}

func startServerWith(t *testing.T, h Handler, cfg ServerConfig) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	logger := testlog.Logger(t)
	cfg.Logger = &logger
	srv := NewServer(TCPTransport{Addr: ln.Addr().String()}, h, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr)
	require.NoError(t, err)
	return c
}

func TestGetParameterRoundTrip(t *testing.T) {
	testlog.Start(t)
	addr := startServer(t, NewCommands(newEngine(t)))
	c := dial(t, addr)
	defer c.Close()

	ans, err := c.Send("getParameter", "/Audio/Core/gain")
	require.NoError(t, err)
	assert.True(t, ans.Success())
	assert.Equal(t, "20", ans.Text)

	ans, err = c.Send("getParameter", "/Audio/Core/missing")
	require.NoError(t, err)
	assert.False(t, ans.Success())
	assert.Contains(t, ans.Text, "not found")
}

func TestTuningSessionOverTheWire(t *testing.T) {
	testlog.Start(t)
	addr := startServer(t, NewCommands(newEngine(t)))
	c := dial(t, addr)
	defer c.Close()

	ans, err := c.Send("setParameter", "/Audio/Core/mute", "on")
	require.NoError(t, err)
	assert.False(t, ans.Success())
	assert.Contains(t, ans.Text, "tuning mode required")

	for _, step := range [][]string{
		{"setTuningMode", "on"},
		{"setParameter", "/Audio/Core/mute", "on"},
	} {
		ans, err := c.Send(step[0], step[1:]...)
		require.NoError(t, err)
		require.True(t, ans.Success(), ans.Text)
		assert.Equal(t, "Done", ans.Text)
	}

	ans, err = c.Send("getParameter", "/Audio/Core/mute")
	require.NoError(t, err)
	assert.Equal(t, "1", ans.Text)

	ans, err = c.Send("getTuningMode")
	require.NoError(t, err)
	assert.Equal(t, "on", ans.Text)

	ans, err = c.Send("getElementBytes", "/Audio/Core")
	require.NoError(t, err)
	assert.Equal(t, "14 01", ans.Text)
}

func TestProtocolErrorEndsOnlyThatConnection(t *testing.T) {
	testlog.Start(t)
	addr := startServer(t, NewCommands(newEngine(t)))

	raw, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer raw.Close()
	require.NoError(t, frame.WriteFrame(raw, frame.Frame{Header: frame.Header{MessageID: 7}, Body: []byte{0, 0, 0, 0}}, frame.DefaultLimits()))
	_ = raw.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = raw.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	c := dial(t, addr)
	defer c.Close()
	ans, err := c.Send("getAutoSync")
	require.NoError(t, err)
	assert.Equal(t, "on", ans.Text)
}

func TestDispatchValidatesCommandsAndArguments(t *testing.T) {
	testlog.Start(t)
	cmds := NewCommands(newEngine(t))

	ans := cmds.Handle(protocol.RequestMessage{Command: "frobnicate"})
	assert.False(t, ans.Success())
	assert.Contains(t, ans.Text, "unknown command")

	ans = cmds.Handle(protocol.RequestMessage{Command: "getParameter"})
	assert.False(t, ans.Success())
	assert.Equal(t, "usage: getParameter <path>", ans.Text)

	ans = cmds.Handle(protocol.RequestMessage{Command: "setTuningMode", Args: []string{"maybe"}})
	assert.False(t, ans.Success())

	ans = cmds.Handle(protocol.RequestMessage{Command: "help"})
	require.True(t, ans.Success())
	assert.Contains(t, ans.Text, "getParameter <path>")
	assert.Equal(t, len(cmds.Names()), strings.Count(ans.Text, "\n")+1)

	ans = cmds.Handle(protocol.RequestMessage{Command: "status"})
	require.True(t, ans.Success())
	assert.Contains(t, ans.Text, "System: Audio (2 bytes)")

	ans = cmds.Handle(protocol.RequestMessage{Command: "importSettings", Args: []string{"novalue"}})
	assert.False(t, ans.Success())
}

func TestDomainCommands(t *testing.T) {
	testlog.Start(t)
	cmds := NewCommands(newEngine(t))
	send := func(cmd string, args ...string) protocol.AnswerMessage {
		return cmds.Handle(protocol.RequestMessage{Command: cmd, Args: args})
	}

	require.True(t, send("createDomain", "Gain").Success())
	require.True(t, send("addElement", "Gain", "/Audio/Core/gain").Success())
	require.True(t, send("createConfiguration", "Gain", "Default").Success())
	require.True(t, send("saveConfiguration", "Gain", "Default").Success())

	ans := send("exportSettings", "Gain", "Default")
	require.True(t, ans.Success(), ans.Text)
	assert.Equal(t, "/Audio/Core/gain = 20", ans.Text)

	ans = send("setConfigurationRule", "Gain", "Default", "All{}")
	require.True(t, ans.Success(), ans.Text)
	assert.Equal(t, "All{}", send("getConfigurationRule", "Gain", "Default").Text)

	ans = send("listDomains")
	assert.Equal(t, "Gain: Inactive", ans.Text)

	ans = send("exportDomains")
	require.True(t, ans.Success())
	assert.Contains(t, ans.Text, "ConfigurableDomain")
}

func TestDisabledTransportIdlesUntilStopped(t *testing.T) {
	testlog.Start(t)
	srv := NewServer(NewTransport("", 0), NewCommands(newEngine(t)), DefaultServerConfig())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("disabled server did not stop")
	}

	assert.Equal(t, TCPTransport{Addr: "127.0.0.1:5000"}, NewTransport("127.0.0.1", 5000))
}

type handlerFunc func(protocol.RequestMessage) protocol.AnswerMessage

func (f handlerFunc) Handle(req protocol.RequestMessage) protocol.AnswerMessage { return f(req) }

func TestOversizedAnswerBecomesFailure(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServerConfig()
	cfg.Limits = frame.Limits{MaxBodyBytes: 64}
	addr := startServerWith(t, handlerFunc(func(req protocol.RequestMessage) protocol.AnswerMessage {
		if req.Command == "dump" {
			return protocol.NewSuccess(strings.Repeat("00 ", 100))
		}
		return protocol.NewSuccess("fine")
	}), cfg)
	c := dial(t, addr)
	defer c.Close()

	ans, err := c.Send("dump")
	require.NoError(t, err)
	assert.False(t, ans.Success())
	assert.Equal(t, "answer too large: 304 bytes", ans.Text)

	ans, err = c.Send("ping")
	require.NoError(t, err)
	assert.True(t, ans.Success())
	assert.Equal(t, "fine", ans.Text)
}

func TestCommandLabelsAreBounded(t *testing.T) {
	testlog.Start(t)
	srv := NewServer(NewTransport("", 0), NewCommands(newEngine(t)), DefaultServerConfig())
	assert.Equal(t, "getParameter", srv.commandLabel("getParameter"))
	assert.Equal(t, "unknown", srv.commandLabel("x1f9q"))

	bare := NewServer(NewTransport("", 0), handlerFunc(func(protocol.RequestMessage) protocol.AnswerMessage {
		return protocol.NewSuccess("")
	}), DefaultServerConfig())
	assert.Equal(t, "unknown", bare.commandLabel("getParameter"))
}
