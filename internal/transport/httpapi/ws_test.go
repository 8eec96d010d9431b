package httpapi

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func wsURL(httpURL, query string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws?" + query
}

func TestServer_WS(t *testing.T) {
	_, ts, sessions := newTestServer(t, 100, 100)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "token="+testToken+"&sid=c1"), nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo: ping", string(data))
	require.Equal(t, 1, sessions.Len())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("second")))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo: second", string(data))

	// closing the socket releases the session
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return sessions.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestServer_WSIsolatedSessions(t *testing.T) {
	_, ts, sessions := newTestServer(t, 100, 100)

	a, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "token="+testToken+"&sid=a"), nil)
	require.NoError(t, err)
	defer a.Close()

	b, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "token="+testToken+"&sid=b"), nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("from-a")))
	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("from-b")))

	_, data, err := a.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo: from-a", string(data))

	_, data, err = b.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "echo: from-b", string(data))

	require.Equal(t, 2, sessions.Len())
}

func TestServer_WSRejectsBadCredentials(t *testing.T) {
	_, ts, sessions := newTestServer(t, 100, 100)

	tests := []struct {
		name  string
		query string
	}{
		{name: "wrong token", query: "token=wrong&sid=c1"},
		{name: "missing sid", query: "token=" + testToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, tt.query), nil)
			require.NoError(t, err)
			defer conn.Close()

			_, _, err = conn.ReadMessage()
			require.Error(t, err)
			require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
			require.Equal(t, 0, sessions.Len())
		})
	}
}
