package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer upgrades every request, forwards text messages to msgs and
// closes the connection when a value arrives on kick.
func wsServer(t *testing.T) (url string, msgs <-chan string, kick chan<- struct{}) {
	t.Helper()
	out := make(chan string, 16)
	k := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			<-k
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			out <- string(data)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), out, k
}

func TestWSConnWriteJSON(t *testing.T) {
	url, msgs, _ := wsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := DialWS(ctx, url, WSOptions{PingEvery: 20 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(outStrokeEnd{T: "stroke_end", ID: "u_1", TS: 7}))

	select {
	case got := <-msgs:
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(got), &decoded))
		assert.Equal(t, "stroke_end", decoded["t"])
		assert.Equal(t, "u_1", decoded["id"])
	case <-ctx.Done():
		t.Fatal("message not received")
	}

	// Pings keep flowing without surfacing an error.
	select {
	case err := <-conn.Err():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWSConnReportsServerClose(t *testing.T) {
	url, _, kick := wsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := DialWS(ctx, url, WSOptions{})
	require.NoError(t, err)
	defer conn.Close()

	close(kick)
	select {
	case err := <-conn.Err():
		assert.Error(t, err)
	case <-ctx.Done():
		t.Fatal("server close not reported")
	}
}

func TestWSConnCloseIsIdempotent(t *testing.T) {
	url, _, _ := wsServer(t)
	conn, err := DialWS(context.Background(), url, WSOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestDialWSFails(t *testing.T) {
	_, err := DialWS(context.Background(), "ws://127.0.0.1:1/ws", WSOptions{})
	assert.Error(t, err)
}
