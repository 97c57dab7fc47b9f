package bus

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitsch/aggregator/internal/model"
	"github.com/fitsch/aggregator/internal/query"
)

// fakeResolver answers every term with one fixed product.
type fakeResolver struct {
	requests chan query.Request
}

func (f *fakeResolver) Resolve(req query.Request, reply query.ReplyFunc) {
	f.requests <- req
	reply([]model.Product{{ID: "SV100", Name: "Peas", Store: model.StoreSuperValu}})
}

func (f *fakeResolver) GetProductAtURL(_ model.StoreID, url string, reply func(model.Product, bool)) {
	reply(model.Product{ID: "SV200", URL: url, FullInfo: true}, true)
}

func startTestBus(t *testing.T) (net.Listener, *Client) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	client := NewClient(Config{
		Type:           ConnInet,
		PathOrHostname: "127.0.0.1",
		Port:           addr.Port,
		Name:           "webscraper-test",
		Format:         FormatJSON,
	})
	t.Cleanup(client.Close)
	return ln, client
}

func readFrameWithTimeout(t *testing.T, conn net.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg, err := readFrame(conn)
	require.NoError(t, err)
	return msg
}

func TestClientHandshake(t *testing.T) {
	ln, client := startTestBus(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	require.NoError(t, client.Connect())
	conn := <-accepted
	defer conn.Close()

	handshake := readFrameWithTimeout(t, conn)
	assert.Equal(t, "handshake", handshake.Type)
	assert.Equal(t, "webscraper-test", handshake.Src)

	name, _ := stringField(handshake.Content, "name")
	assert.Equal(t, "webscraper-test", name)
}

func TestFrontendQueryRoundTrip(t *testing.T) {
	ln, client := startTestBus(t)
	resolver := &fakeResolver{requests: make(chan query.Request, 4)}
	NewFrontend(client, resolver).Attach()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	require.NoError(t, client.Connect())
	conn := <-accepted
	defer conn.Close()
	readFrameWithTimeout(t, conn) // handshake

	require.NoError(t, writeFrame(conn, FormatJSON, Message{
		Type: "query",
		Src:  "webserver",
		Content: map[string]any{
			"terms":      []any{"peas"},
			"request-id": float64(42),
			"stores":     float64(model.Selection(model.StoreSuperValu, model.StoreTesco)),
			"depth":      float64(10),
		},
	}))

	select {
	case req := <-resolver.requests:
		assert.Equal(t, "peas", req.QueryString)
		assert.Equal(t, model.Selection(model.StoreSuperValu, model.StoreTesco), req.Stores)
		assert.Equal(t, 10, req.Depth)
		assert.False(t, req.ForceRefresh)
	case <-time.After(5 * time.Second):
		t.Fatal("resolver never invoked")
	}

	result := readFrameWithTimeout(t, conn)
	assert.Equal(t, "query-result", result.Type)
	assert.Equal(t, "webserver", result.Dest)

	term, _ := stringField(result.Content, "term")
	assert.Equal(t, "peas", term)
	id, _ := numberField(result.Content, "request-id")
	assert.Equal(t, float64(42), id)

	items, ok := result.Content["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestFrontendRejectsInvalidQuery(t *testing.T) {
	ln, client := startTestBus(t)
	resolver := &fakeResolver{requests: make(chan query.Request, 1)}
	NewFrontend(client, resolver).Attach()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	require.NoError(t, client.Connect())
	conn := <-accepted
	defer conn.Close()
	readFrameWithTimeout(t, conn)

	require.NoError(t, writeFrame(conn, FormatJSON, Message{
		Type:    "query",
		Src:     "webserver",
		Content: map[string]any{"terms": []any{"peas"}},
	}))

	select {
	case <-resolver.requests:
		t.Fatal("invalid query must not reach the resolver")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWriteWithoutConnection(t *testing.T) {
	client := NewClient(Config{Type: ConnInet, PathOrHostname: "127.0.0.1", Port: 1})
	err := client.Write(Message{Type: "query-result"})
	assert.Error(t, err)
}

func TestReconnectBackoffBounds(t *testing.T) {
	assert.Equal(t, 5*time.Second, reconnectInitial)
	assert.Equal(t, 5*time.Second, reconnectStep)
	assert.Equal(t, 40*time.Second, reconnectMax)
}
