package protocol_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrivet/gomcp/protocol"
)

// pipeTransport connects two Engines in-process for tests: writes to one
// side arrive as reads on the other.
type pipeTransport struct {
	mu     sync.Mutex
	inbox  chan []byte
	out    chan []byte
	closed bool
}

func newPipePair() (a, b *pipeTransport) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a = &pipeTransport{inbox: ba, out: ab}
	b = &pipeTransport{inbox: ab, out: ba}
	return a, b
}

func (t *pipeTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	closed := t.closed
	out := t.out
	t.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	select {
	case out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *pipeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-t.inbox:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *pipeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.out)
	return nil
}

var _ protocol.Transport = (*pipeTransport)(nil)

func TestRequestResponseRoundTrip(t *testing.T) {
	clientT, serverT := newPipePair()
	client := protocol.NewEngine(nil, nil)
	server := protocol.NewEngine(nil, nil)
	client.Connect(clientT)
	server.Connect(serverT)
	defer client.Close()
	defer server.Close()

	err := server.SetRequestHandler("ping", func(ctx context.Context, params interface{}) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})
	require.NoError(t, err)

	result, err := client.Request(context.Background(), "ping", nil, protocol.RequestOptions{Timeout: time.Second})
	require.NoError(t, err)

	b, _ := json.Marshal(result)
	require.JSONEq(t, `{"pong":"ok"}`, string(b))
}

func TestRequestMethodNotFound(t *testing.T) {
	clientT, serverT := newPipePair()
	client := protocol.NewEngine(nil, nil)
	server := protocol.NewEngine(nil, nil)
	client.Connect(clientT)
	server.Connect(serverT)
	defer client.Close()
	defer server.Close()

	_, err := client.Request(context.Background(), "nope", nil, protocol.RequestOptions{Timeout: time.Second})
	require.Error(t, err)
	perr, ok := err.(*protocol.ErrorObject)
	require.True(t, ok)
	require.Equal(t, protocol.MethodNotFound, perr.Code)
}

func TestRequestTimeoutSendsCancelled(t *testing.T) {
	clientT, serverT := newPipePair()
	client := protocol.NewEngine(nil, nil)
	server := protocol.NewEngine(nil, nil)
	client.Connect(clientT)
	server.Connect(serverT)
	defer client.Close()
	defer server.Close()

	cancelled := make(chan protocol.CancelledParams, 1)
	hang := make(chan struct{})
	err := server.SetRequestHandler("slow", func(ctx context.Context, params interface{}) (interface{}, error) {
		<-hang
		return nil, nil
	})
	require.NoError(t, err)
	err = server.SetNotificationHandler(protocol.NotificationCancelled, func(ctx context.Context, params interface{}) error {
		var p protocol.CancelledParams
		_ = protocol.UnmarshalPayload(params, &p)
		cancelled <- p
		return nil
	})
	require.NoError(t, err)
	defer close(hang)

	_, err = client.Request(context.Background(), "slow", nil, protocol.RequestOptions{Timeout: 20 * time.Millisecond})
	require.Error(t, err)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected notifications/cancelled to be sent on timeout")
	}
}

func TestCapabilityGateRejectsUngatedMethod(t *testing.T) {
	clientT, _ := newPipePair()
	gate := func(method string) bool { return method == "allowed" }
	client := protocol.NewEngine(nil, gate)
	client.Connect(clientT)
	defer client.Close()

	_, err := client.Request(context.Background(), "blocked", nil, protocol.RequestOptions{Timeout: time.Second})
	require.Error(t, err)
}
