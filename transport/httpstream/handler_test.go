package httpstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrivet/gomcp/protocol"
	"github.com/localrivet/gomcp/server"
)

func newTestHandler() (*Handler, *server.Server) {
	srv := server.New("test-server", server.WithVersion("1.0.0"))
	return NewHandler(srv, nil), srv
}

// readOneSSEEvent reads a single "id:"/"data:" pair from body.
func readOneSSEEvent(t *testing.T, r *bufio.Reader) (string, []byte) {
	t.Helper()
	var id string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			return id, []byte(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestInitializeOverPOSTStreamsResponse(t *testing.T) {
	h, _ := newTestHandler()
	ts := httptest.NewServer(h)
	defer ts.Close()

	reqBody, _ := json.Marshal(protocol.NewRequest("1", protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersionLatest,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "1.0"},
	}))

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := resp.Header.Get(SessionIDHeader)
	require.NotEmpty(t, sessionID)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, data := readOneSSEEvent(t, bufio.NewReader(resp.Body))
	var rpcResp protocol.Response
	require.NoError(t, json.Unmarshal(data, &rpcResp))
	require.Nil(t, rpcResp.Error)
}

func TestNotificationPOSTIsAccepted(t *testing.T) {
	h, srv := newTestHandler()
	ts := httptest.NewServer(h)
	defer ts.Close()

	sessionID := initializeOverHTTP(t, ts.URL)
	_ = srv

	body, _ := json.Marshal(protocol.NewNotification(protocol.NotificationInitialized, nil))
	req, _ := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionIDHeader, sessionID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDeleteTerminatesSession(t *testing.T) {
	h, _ := newTestHandler()
	ts := httptest.NewServer(h)
	defer ts.Close()

	sessionID := initializeOverHTTP(t, ts.URL)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL, nil)
	req.Header.Set(SessionIDHeader, sessionID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req2, _ := http.NewRequest(http.MethodDelete, ts.URL, nil)
	req2.Header.Set(SessionIDHeader, sessionID)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestResourceUpdateDeliveredOverGETStream(t *testing.T) {
	h, srv := newTestHandler()
	srv.RegisterResource(protocol.Resource{URI: "file:///a.txt", Name: "a"}, func(ctx *server.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error) {
		return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{{URI: uri, Text: "hi"}}}, nil
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sessionID := initializeOverHTTP(t, ts.URL)
	subscribeOverHTTP(t, ts.URL, sessionID, "file:///a.txt")

	getReq, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	getReq.Header.Set(SessionIDHeader, sessionID)
	getResp, err := http.DefaultClient.Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.NotifyResourceUpdated("file:///a.txt")
	}()

	_, data := readOneSSEEvent(t, bufio.NewReader(getResp.Body))
	var notif protocol.Notification
	require.NoError(t, json.Unmarshal(data, &notif))
	require.Equal(t, protocol.NotificationResourceUpdated, notif.Method)
}

func initializeOverHTTP(t *testing.T, url string) string {
	t.Helper()
	reqBody, _ := json.Marshal(protocol.NewRequest("1", protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersionLatest,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "1.0"},
	}))
	resp, err := http.Post(url, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	sessionID := resp.Header.Get(SessionIDHeader)
	require.NotEmpty(t, sessionID)
	readOneSSEEvent(t, bufio.NewReader(resp.Body))

	notifBody, _ := json.Marshal(protocol.NewNotification(protocol.NotificationInitialized, nil))
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(notifBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionIDHeader, sessionID)
	ackResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	ackResp.Body.Close()

	return sessionID
}

func subscribeOverHTTP(t *testing.T, url, sessionID, uri string) {
	t.Helper()
	reqBody, _ := json.Marshal(protocol.NewRequest("2", protocol.MethodSubscribeResource, protocol.SubscribeParams{URI: uri}))
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionIDHeader, sessionID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	readOneSSEEvent(t, bufio.NewReader(resp.Body))
}
