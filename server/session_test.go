package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrivet/gomcp/protocol"
	"github.com/localrivet/gomcp/server"
)

// harness is a minimal in-process client: it drives a Session's transport
// directly and lets tests send/receive raw JSON-RPC frames without
// standing up a real network transport.
type harness struct {
	toServer   chan []byte
	fromServer chan []byte
	mu         sync.Mutex
	closed     bool
}

func newHarness() *harness {
	return &harness{toServer: make(chan []byte, 16), fromServer: make(chan []byte, 16)}
}

// serverSide implements protocol.Transport from the server's point of view.
type serverSide struct{ h *harness }

func (s serverSide) Send(ctx context.Context, data []byte) error {
	select {
	case s.h.fromServer <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s serverSide) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-s.h.toServer:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s serverSide) Close() error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if !s.h.closed {
		s.h.closed = true
		close(s.h.fromServer)
	}
	return nil
}

func (h *harness) send(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	h.toServer <- data
}

func (h *harness) recv(t *testing.T) protocol.Response {
	t.Helper()
	select {
	case data := <-h.fromServer:
		var resp protocol.Response
		require.NoError(t, json.Unmarshal(data, &resp))
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server response")
		return protocol.Response{}
	}
}

func newTestServer() *server.Server {
	return server.New("test-server", server.WithVersion("1.0.0"))
}

func initializeSession(t *testing.T, h *harness) {
	t.Helper()
	h.send(t, protocol.NewRequest("1", protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersionLatest,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "1.0"},
	}))
	resp := h.recv(t)
	require.Nil(t, resp.Error)
	h.send(t, protocol.NewNotification(protocol.NotificationInitialized, nil))
}

func TestInitializeHappyPath(t *testing.T) {
	srv := newTestServer()
	h := newHarness()
	srv.NewSession(serverSide{h})

	h.send(t, protocol.NewRequest("1", protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersionLatest,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "1.0"},
	}))
	resp := h.recv(t)
	require.Nil(t, resp.Error)

	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(b, &result))
	require.Equal(t, protocol.ProtocolVersionLatest, result.ProtocolVersion)
	require.Equal(t, "test-server", result.ServerInfo.Name)
	require.NotNil(t, result.Capabilities.Tools)
}

func TestCallToolUnknownTool(t *testing.T) {
	srv := newTestServer()
	h := newHarness()
	srv.NewSession(serverSide{h})
	initializeSession(t, h)

	h.send(t, protocol.NewRequest("2", protocol.MethodCallTool, protocol.CallToolParams{Name: "does-not-exist"}))
	resp := h.recv(t)
	require.Nil(t, resp.Error)

	b, _ := json.Marshal(resp.Result)
	var result protocol.CallToolResult
	require.NoError(t, result.UnmarshalJSON(b))
	require.True(t, result.IsError)
}

func TestCallToolHandlerErrorBecomesIsError(t *testing.T) {
	srv := newTestServer()
	srv.RegisterTool(protocol.Tool{Name: "boom"}, func(ctx *server.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		return nil, fmt.Errorf("boom: exploded")
	})
	h := newHarness()
	srv.NewSession(serverSide{h})
	initializeSession(t, h)

	h.send(t, protocol.NewRequest("2", protocol.MethodCallTool, protocol.CallToolParams{Name: "boom"}))
	resp := h.recv(t)
	require.Nil(t, resp.Error)

	b, _ := json.Marshal(resp.Result)
	var result protocol.CallToolResult
	require.NoError(t, result.UnmarshalJSON(b))
	require.True(t, result.IsError)
}

func TestCallToolHandlerPanicBecomesIsError(t *testing.T) {
	srv := newTestServer()
	srv.RegisterTool(protocol.Tool{Name: "panics"}, func(ctx *server.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		panic("nope")
	})
	h := newHarness()
	srv.NewSession(serverSide{h})
	initializeSession(t, h)

	h.send(t, protocol.NewRequest("2", protocol.MethodCallTool, protocol.CallToolParams{Name: "panics"}))
	resp := h.recv(t)
	require.Nil(t, resp.Error)

	b, _ := json.Marshal(resp.Result)
	var result protocol.CallToolResult
	require.NoError(t, result.UnmarshalJSON(b))
	require.True(t, result.IsError)
}

func TestCapabilityEnforcementRejectsDisabledMethod(t *testing.T) {
	srv := server.New("test-server", server.WithCapabilities(protocol.ServerCapabilities{
		Tools: &protocol.ListChangedCapability{ListChanged: true},
	}))
	h := newHarness()
	srv.NewSession(serverSide{h})
	initializeSession(t, h)

	h.send(t, protocol.NewRequest("2", protocol.MethodListPrompts, nil))
	resp := h.recv(t)
	require.NotNil(t, resp.Error)
}

func TestResourceSubscribeThenUpdateDelivered(t *testing.T) {
	srv := newTestServer()
	srv.RegisterResource(protocol.Resource{URI: "file:///a.txt", Name: "a"}, func(ctx *server.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error) {
		return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{{URI: uri, Text: "hello"}}}, nil
	})
	h := newHarness()
	srv.NewSession(serverSide{h})
	initializeSession(t, h)

	h.send(t, protocol.NewRequest("2", protocol.MethodSubscribeResource, protocol.SubscribeParams{URI: "file:///a.txt"}))
	ackResp := h.recv(t)
	require.Nil(t, ackResp.Error)

	srv.NotifyResourceUpdated("file:///a.txt")

	select {
	case data := <-h.fromServer:
		var notif protocol.Notification
		require.NoError(t, json.Unmarshal(data, &notif))
		require.Equal(t, protocol.NotificationResourceUpdated, notif.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("expected resources/updated notification")
	}
}

func TestResourceUpdateNotDeliveredWithoutSubscription(t *testing.T) {
	srv := newTestServer()
	h := newHarness()
	srv.NewSession(serverSide{h})
	initializeSession(t, h)

	srv.NotifyResourceUpdated("file:///never-subscribed.txt")

	select {
	case <-h.fromServer:
		t.Fatal("should not receive update for unsubscribed resource")
	case <-time.After(100 * time.Millisecond):
	}
}
