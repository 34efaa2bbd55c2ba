package kick

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjudin/chatvoice/internal/chat"
)

func TestChatroomID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/channels/somestreamer", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"chatroom":{"id":4242}}`))
	}))
	defer srv.Close()

	a := New(Config{Channel: "somestreamer", APIBase: srv.URL}, chat.Callbacks{})
	id, err := a.chatroomID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4242), id)
}

func TestChatroomIDMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := New(Config{Channel: "gone", APIBase: srv.URL}, chat.Callbacks{})
	_, err := a.chatroomID(context.Background())
	assert.Error(t, err)
}

func TestSessionDeliversMessages(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chatroom":{"id":7}}`))
	}))
	defer api.Close()

	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Expect the subscribe frame for the resolved chatroom.
		var frame pusherFrame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "pusher:subscribe", frame.Event)
		assert.Contains(t, string(frame.Data), "chatrooms.7.v2")

		payload := `{"id":"m1","content":"hello","sender":{"username":"viewer","identity":{"badges":[{"type":"moderator"}]}}}`
		data, _ := json.Marshal(payload)
		conn.WriteJSON(pusherFrame{Event: chatMessageEvent, Data: data})

		// Server-initiated ping must get a pong back.
		conn.WriteJSON(pusherFrame{Event: "pusher:ping", Data: json.RawMessage(`{}`)})
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "pusher:pong", frame.Event)

		// Hold the socket open until the client goes away.
		conn.ReadMessage()
	}))
	defer ws.Close()

	var mu sync.Mutex
	var got []string
	var priv bool
	cb := chat.Callbacks{
		OnMessage: func(id, author, text string, privileged bool) {
			mu.Lock()
			got = append(got, author+": "+text)
			priv = privileged
			mu.Unlock()
		},
		OnConnect:    func() {},
		OnDisconnect: func() {},
		OnError:      func(error) {},
	}

	a := New(Config{
		Channel: "any",
		APIBase: api.URL,
		WSURL:   "ws" + strings.TrimPrefix(ws.URL, "http"),
	}, cb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"viewer: hello"}, got)
	assert.True(t, priv)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not stop")
	}
}
