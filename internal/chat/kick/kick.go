// Package kick connects to Kick chat through the public Pusher websocket.
package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/fjudin/chatvoice/internal/chat"
)

const (
	// Kick's public Pusher application key, shared by every client.
	pusherURL = "wss://ws-us2.pusher.com/app/32cbd69e4b950bf97679?protocol=7&client=js&version=8.4.0-rc2&flash=false"

	chatMessageEvent = "App\\Events\\ChatMessageEvent"

	readTimeout  = 90 * time.Second
	pingInterval = 30 * time.Second
)

// Config identifies the channel to join by its public slug.
type Config struct {
	Channel string
	// APIBase and WSURL override the production endpoints in tests.
	APIBase string
	WSURL   string
}

// Adapter resolves the channel's chatroom id over HTTP, then subscribes to
// its Pusher channel and forwards chat events.
type Adapter struct {
	cfg  Config
	cb   chat.Callbacks
	conn *chat.Conn
	log  *log.Logger
	http *http.Client

	mu      sync.Mutex
	wmu     sync.Mutex // gorilla allows one concurrent writer
	ws      *websocket.Conn
	stopped bool
}

func (a *Adapter) writeFrame(f pusherFrame) error {
	a.mu.Lock()
	ws := a.ws
	a.mu.Unlock()
	if ws == nil {
		return nil
	}
	a.wmu.Lock()
	defer a.wmu.Unlock()
	return ws.WriteJSON(f)
}

func New(cfg Config, cb chat.Callbacks) *Adapter {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://kick.com"
	}
	if cfg.WSURL == "" {
		cfg.WSURL = pusherURL
	}
	return &Adapter{
		cfg:  cfg,
		cb:   cb,
		conn: chat.NewConn(cb),
		log:  log.With("component", "kick", "channel", cfg.Channel),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run connects and blocks until ctx is cancelled or Stop is called,
// reconnecting with exponential backoff after each dropped session.
func (a *Adapter) Run(ctx context.Context) error {
	backoff := chat.Backoff{Base: time.Second, Max: time.Minute}

	for {
		if a.done() {
			return nil
		}

		err := a.session(ctx)
		a.conn.To(chat.Disconnected)
		if a.done() || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			a.conn.Fail(err)
		}

		if !chat.Sleep(ctx, backoff.Next()) {
			return nil
		}
	}
}

func (a *Adapter) session(ctx context.Context) error {
	a.conn.To(chat.Connecting)

	roomID, err := a.chatroomID(ctx)
	if err != nil {
		return fmt.Errorf("resolve chatroom: %w", err)
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial pusher: %w", err)
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		ws.Close()
		return nil
	}
	a.ws = ws
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.ws = nil
		a.mu.Unlock()
		ws.Close()
	}()

	a.conn.To(chat.Connected)

	sub := pusherFrame{
		Event: "pusher:subscribe",
		Data:  json.RawMessage(fmt.Sprintf(`{"auth":"","channel":"chatrooms.%d.v2"}`, roomID)),
	}
	if err := a.writeFrame(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	a.conn.To(chat.Listening)
	a.log.Info("subscribed", "chatroom", roomID)

	// Close the socket when ctx falls so ReadMessage unblocks.
	watch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-watch:
		}
	}()
	defer close(watch)

	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-pinger.C:
				if err := a.writeFrame(pusherFrame{Event: "pusher:ping", Data: json.RawMessage(`{}`)}); err != nil {
					return
				}
			case <-watch:
				return
			}
		}
	}()

	for {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || a.done() {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		a.handle(raw)
	}
}

type pusherFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// chatMessage is the payload of a ChatMessageEvent; Pusher delivers it as a
// JSON document encoded inside the frame's data string.
type chatMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  struct {
		Username string `json:"username"`
		Identity struct {
			Badges []struct {
				Type string `json:"type"`
			} `json:"badges"`
		} `json:"identity"`
	} `json:"sender"`
}

func (a *Adapter) handle(raw []byte) {
	var frame pusherFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		a.log.Debug("unparseable frame", "err", err)
		return
	}

	switch frame.Event {
	case "pusher:ping":
		a.writeFrame(pusherFrame{Event: "pusher:pong", Data: json.RawMessage(`{}`)})
	case chatMessageEvent:
		var payload string
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			a.log.Debug("bad event envelope", "err", err)
			return
		}
		var msg chatMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			a.log.Debug("bad chat message", "err", err)
			return
		}
		a.cb.OnMessage(msg.ID, msg.Sender.Username, msg.Content, privileged(msg))
	}
}

func privileged(msg chatMessage) bool {
	for _, b := range msg.Sender.Identity.Badges {
		switch b.Type {
		case "broadcaster", "moderator", "vip", "subscriber", "og", "founder":
			return true
		}
	}
	return false
}

type channelResponse struct {
	Chatroom struct {
		ID int64 `json:"id"`
	} `json:"chatroom"`
}

// chatroomID looks up the numeric chatroom id behind the channel slug. Kick
// rejects requests without a browser user agent.
func (a *Adapter) chatroomID(ctx context.Context) (int64, error) {
	url := fmt.Sprintf(a.cfg.APIBase+"/api/v2/channels/%s", a.cfg.Channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("channel lookup returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	var ch channelResponse
	if err := json.Unmarshal(body, &ch); err != nil {
		return 0, fmt.Errorf("decode channel: %w", err)
	}
	if ch.Chatroom.ID == 0 {
		return 0, fmt.Errorf("channel %q has no chatroom", a.cfg.Channel)
	}
	return ch.Chatroom.ID, nil
}

// Stop closes the socket and makes Run return. Safe to call more than once.
func (a *Adapter) Stop() {
	a.mu.Lock()
	a.stopped = true
	ws := a.ws
	a.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}

func (a *Adapter) done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}
