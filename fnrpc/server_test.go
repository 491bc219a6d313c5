package fnrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Message string `json:"message"`
}

type echoResult struct {
	Message string `json:"message"`
}

var errBoom = errors.New("boom")

func newTestServer(t *testing.T, cfg ServerConfig) (*Server,
	*httptest.Server) {

	t.Helper()

	s := NewServer(cfg)
	require.NoError(t, s.RegisterMethod("echo", NewHandler(
		func(_ context.Context, p *echoParams) (*echoResult, error) {
			return &echoResult{Message: p.Message}, nil
		},
	)))
	require.NoError(t, s.RegisterMethod("fail", NewHandler(
		func(_ context.Context, p *echoParams) (*echoResult, error) {
			if p.Message == "internal" {
				return nil, errBoom
			}

			return nil, NewError(-32013, "duplicate", p)
		},
	)))

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return s, ts
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()

	resp, err := http.Post(
		url, "application/json", strings.NewReader(body),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb bytes.Buffer
	_, err = sb.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, sb.String()
}

// TestRegisterMethodDuplicate checks that a method name can only be
// registered once.
func TestRegisterMethodDuplicate(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, ServerConfig{})
	err := s.RegisterMethod("echo", nil)
	require.ErrorIs(t, err, ErrMethodRegistered)
	require.ElementsMatch(t, []string{"echo", "fail"}, s.Methods())
}

// TestServerHTTP checks request dispatch and error objects over HTTP POST.
//
//nolint:lll
func TestServerHTTP(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{})

	tests := []struct {
		name    string
		body    string
		expCode int
		expBody string
	}{
		{
			name:    "object params",
			body:    `{"jsonrpc":"2.0","id":1,"method":"echo","params":{"message":"hi"}}`, //nolint:lll
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":1,"result":{"message":"hi"}}`, //nolint:lll
		},
		{
			name:    "array params",
			body:    `{"jsonrpc":"2.0","id":"a","method":"echo","params":[{"message":"hi"}]}`, //nolint:lll
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":"a","result":{"message":"hi"}}`, //nolint:lll
		},
		{
			name:    "too many params",
			body:    `{"jsonrpc":"2.0","id":2,"method":"echo","params":[{},{}]}`, //nolint:lll
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"params array must hold a single object","data":[{},{}]}}`, //nolint:lll
		},
		{
			name:    "method not found",
			body:    `{"jsonrpc":"2.0","id":3,"method":"nope"}`,
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"method not found","data":"nope"}}`, //nolint:lll
		},
		{
			name:    "bad version",
			body:    `{"jsonrpc":"1.0","id":4,"method":"echo"}`,
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":4,"error":{"code":-32600,"message":"invalid request"}}`, //nolint:lll
		},
		{
			name:    "parse error",
			body:    `{"jsonrpc":`,
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, //nolint:lll
		},
		{
			name:    "handler error object",
			body:    `{"jsonrpc":"2.0","id":5,"method":"fail","params":{"message":"x"}}`, //nolint:lll
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":5,"error":{"code":-32013,"message":"duplicate","data":{"message":"x"}}}`, //nolint:lll
		},
		{
			name:    "handler plain error",
			body:    `{"jsonrpc":"2.0","id":6,"method":"fail","params":{"message":"internal"}}`, //nolint:lll
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":6,"error":{"code":-32603,"message":"boom"}}`, //nolint:lll
		},
		{
			name:    "notification",
			body:    `{"jsonrpc":"2.0","method":"echo","params":{"message":"hi"}}`, //nolint:lll
			expCode: http.StatusNoContent,
		},
		{
			name:    "batch",
			body:    `[{"jsonrpc":"2.0","id":1,"method":"echo","params":{"message":"a"}},{"jsonrpc":"2.0","method":"echo"},1]`, //nolint:lll
			expCode: http.StatusOK,
			expBody: `[{"jsonrpc":"2.0","id":1,"result":{"message":"a"}},{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request"}}]`, //nolint:lll
		},
		{
			name:    "empty batch",
			body:    `[]`,
			expCode: http.StatusOK,
			expBody: `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"empty batch"}}`, //nolint:lll
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			code, body := post(t, ts.URL, test.body)
			require.Equal(t, test.expCode, code)
			if test.expBody == "" {
				require.Empty(t, body)
				return
			}
			require.JSONEq(t, test.expBody, body)
		})
	}
}

// TestServerRoutes checks that only the JSON-RPC routes are served.
func TestServerRoutes(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{MaxRequestSize: 64})

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := `{"jsonrpc":"2.0","id":1,"method":"echo","params":` +
		`{"message":"` + strings.Repeat("x", 100) + `"}}`
	code, _ := post(t, ts.URL, body)
	require.Equal(t, http.StatusRequestEntityTooLarge, code)
}

// TestClientCall checks the HTTP client against the server.
func TestClientCall(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{})
	client := NewClient(ts.URL, ts.Client())

	ctx := context.Background()

	var result echoResult
	err := client.Call(ctx, "echo", &echoParams{Message: "hi"}, &result)
	require.NoError(t, err)
	require.Equal(t, "hi", result.Message)

	err = client.Call(ctx, "fail", &echoParams{Message: "x"}, &result)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32013, rpcErr.Code)
	require.Equal(t, "duplicate", rpcErr.Message)

	err = client.Call(ctx, "nope", nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func dialWebSocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + WebSocketPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// TestServerWebSocket checks that requests sent over a websocket are
// answered in order and that notifications get no answer.
//
//nolint:lll
func TestServerWebSocket(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{})
	conn := dialWebSocket(t, ts)

	requests := []string{
		`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"message":"a"}}`, //nolint:lll
		`{"jsonrpc":"2.0","method":"echo","params":{"message":"skip"}}`,
		`{"jsonrpc":"2.0","id":2,"method":"fail","params":{"message":"b"}}`, //nolint:lll
	}
	for _, req := range requests {
		err := conn.WriteMessage(websocket.TextMessage, []byte(req))
		require.NoError(t, err)
	}

	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	require.JSONEq(t, `1`, string(resp.ID))
	require.Nil(t, resp.Error)

	var result echoResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "a", result.Message)

	resp = Response{}
	require.NoError(t, conn.ReadJSON(&resp))
	require.JSONEq(t, `2`, string(resp.ID))
	require.NotNil(t, resp.Error)
	require.Equal(t, -32013, resp.Error.Code)
}

// TestServerWebSocketPing checks that the server pings an idle connection.
func TestServerWebSocketPing(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{
		PingInterval: 20 * time.Millisecond,
		PongWait:     time.Second,
	})
	conn := dialWebSocket(t, ts)

	pings := make(chan string, 1)
	conn.SetPingHandler(func(data string) error {
		select {
		case pings <- data:
		default:
		}

		return conn.WriteControl(
			websocket.PongMessage, []byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case data := <-pings:
		require.Equal(t, PingContent, data)
	case <-time.After(5 * time.Second):
		t.Fatal("no ping received")
	}
}

// TestIsClosedConnError checks the closed connection classification.
func TestIsClosedConnError(t *testing.T) {
	t.Parallel()

	require.False(t, IsClosedConnError(nil))
	require.False(t, IsClosedConnError(errBoom))
	require.True(t, IsClosedConnError(http.ErrServerClosed))
	require.True(t, IsClosedConnError(
		errors.New("write: broken pipe"),
	))
	require.True(t, IsClosedConnError(&websocket.CloseError{
		Code: websocket.CloseNormalClosure,
	}))
}
