package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/localrivet/gomcp/internal/logx"
)

// TestSendReceive exercises a send/receive round trip in both directions
// using io.Pipe to stand in for stdin/stdout on each side.
func TestSendReceive(t *testing.T) {
	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)

	var serverErr, clientErr error

	logger := logx.NewDefault()
	serverTransport := NewWithReadWriter(serverReader, serverWriter, logger)
	clientTransport := NewWithReadWriter(clientReader, clientWriter, logger)

	go func() {
		defer wg.Done()
		defer serverWriter.Close()
		defer serverReader.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		received, err := serverTransport.Recv(ctx)
		if err != nil {
			serverErr = err
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("server recv failed: %v", err)
			}
			return
		}

		want, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": "client-to-server", "method": "test"})
		if !bytes.Equal(received, want) {
			t.Errorf("server received wrong message.\nwant: %s\ngot:  %s", want, received)
			return
		}

		reply, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": "server-to-client", "method": "test"})
		if err := serverTransport.Send(ctx, reply); err != nil {
			serverErr = err
			t.Errorf("server send failed: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		defer clientWriter.Close()
		defer clientReader.Close()

		ctxSend, cancelSend := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelSend()
		msg, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": "client-to-server", "method": "test"})
		if err := clientTransport.Send(ctxSend, msg); err != nil {
			clientErr = err
			t.Errorf("client send failed: %v", err)
			return
		}

		ctxRecv, cancelRecv := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelRecv()
		received, err := clientTransport.Recv(ctxRecv)
		if err != nil {
			clientErr = err
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("client recv failed: %v", err)
			}
			return
		}

		want, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": "server-to-client", "method": "test"})
		if !bytes.Equal(received, want) {
			t.Errorf("client received wrong message.\nwant: %s\ngot:  %s", want, received)
		}
	}()

	wg.Wait()

	if serverErr != nil && !errors.Is(serverErr, io.EOF) && !errors.Is(serverErr, context.DeadlineExceeded) && !strings.Contains(serverErr.Error(), "pipe closed") {
		t.Fatalf("server goroutine: unexpected error: %v", serverErr)
	}
	if clientErr != nil && !errors.Is(clientErr, io.EOF) && !errors.Is(clientErr, context.DeadlineExceeded) && !strings.Contains(clientErr.Error(), "pipe closed") {
		t.Fatalf("client goroutine: unexpected error: %v", clientErr)
	}
}

// TestInvalidJSONLineSkipped confirms a malformed line doesn't kill the
// read loop; the next valid line still arrives.
func TestInvalidJSONLineSkipped(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("not json\n{\"jsonrpc\":\"2.0\",\"id\":\"1\",\"method\":\"ping\"}\n")
	tr := NewWithReadWriter(in, &out, logx.NewDefault())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	data, err := tr.Recv(ctx)
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if !bytes.Contains(data, []byte(`"method":"ping"`)) {
		t.Fatalf("expected the valid line to be returned, got: %s", data)
	}
}
