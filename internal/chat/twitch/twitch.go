// Package twitch connects to Twitch chat over IRC.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	irc "github.com/gempir/go-twitch-irc/v4"

	"github.com/fjudin/chatvoice/internal/chat"
)

// TokenSource produces a fresh OAuth access token when the current one is
// rejected. Implementations typically exchange a refresh token.
type TokenSource interface {
	Refresh(ctx context.Context) (string, error)
}

// Config holds the connection parameters for one Twitch channel.
type Config struct {
	Nickname    string
	AccessToken string
	Channel     string
	// Tokens is optional; without it an authentication failure is terminal
	// for the session and retried with backoff like any other error.
	Tokens TokenSource
}

// Adapter joins a single Twitch channel and forwards chat messages. It
// reconnects with exponential backoff and swaps in a refreshed token when
// the server rejects the current one.
type Adapter struct {
	cfg  Config
	cb   chat.Callbacks
	conn *chat.Conn
	log  *log.Logger

	mu      sync.Mutex
	client  *irc.Client
	stopped bool
}

func New(cfg Config, cb chat.Callbacks) *Adapter {
	return &Adapter{
		cfg:  cfg,
		cb:   cb,
		conn: chat.NewConn(cb),
		log:  log.With("component", "twitch", "channel", cfg.Channel),
	}
}

// Run connects and blocks until ctx is cancelled or Stop is called. Each
// failed session is retried after an increasing delay; the delay only resets
// once a session actually reaches the channel.
func (a *Adapter) Run(ctx context.Context) error {
	backoff := chat.Backoff{Base: time.Second, Max: time.Minute}
	token := a.cfg.AccessToken

	for {
		if a.done() {
			return nil
		}

		err := a.session(ctx, token)
		reachedUp := a.conn.Connected()
		a.conn.To(chat.Disconnected)
		if a.done() {
			return nil
		}
		if reachedUp {
			backoff.Reset()
		}

		token = a.afterSession(ctx, err, token)

		if !chat.Sleep(ctx, backoff.Next()) {
			return nil
		}
	}
}

// afterSession records why the session ended and returns the token for the
// next attempt. A rejected login counts toward error escalation even when
// the refresh succeeds: a token the server keeps rejecting (wrong scopes,
// revoked grant) must not turn into an unthrottled connect loop.
func (a *Adapter) afterSession(ctx context.Context, err error, token string) string {
	if err == nil {
		return token
	}

	if errors.Is(err, irc.ErrLoginAuthenticationFailed) && a.cfg.Tokens != nil {
		a.conn.To(chat.Reauthenticating)
		a.conn.Fail(err)

		fresh, rerr := a.cfg.Tokens.Refresh(ctx)
		if rerr != nil {
			a.conn.Fail(fmt.Errorf("refresh token: %w", rerr))
			return token
		}
		a.log.Info("access token refreshed")
		return fresh
	}

	a.conn.Fail(err)
	return token
}

// session runs one connection until it drops, returning the reason.
func (a *Adapter) session(ctx context.Context, token string) error {
	a.conn.To(chat.Connecting)

	client := irc.NewClient(a.cfg.Nickname, "oauth:"+token)
	client.IdlePingInterval = 30 * time.Second
	client.PongTimeout = 10 * time.Second

	client.OnConnect(func() {
		a.log.Info("connected")
		a.conn.To(chat.Listening)
	})
	client.OnPrivateMessage(func(msg irc.PrivateMessage) {
		a.cb.OnMessage(msg.ID, msg.User.DisplayName, msg.Message, privileged(msg))
	})

	client.Join(a.cfg.Channel)

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.client = client
	a.mu.Unlock()

	// Disconnect the blocking client when ctx falls.
	watch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			client.Disconnect()
		case <-watch:
		}
	}()

	err := client.Connect()
	close(watch)

	a.mu.Lock()
	a.client = nil
	a.mu.Unlock()

	if ctx.Err() != nil || errors.Is(err, irc.ErrClientDisconnected) {
		return nil
	}
	return err
}

// Stop disconnects and makes Run return. Safe to call more than once.
func (a *Adapter) Stop() {
	a.mu.Lock()
	a.stopped = true
	client := a.client
	a.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
}

func (a *Adapter) done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// privileged reports whether the sender is the broadcaster, a moderator, a
// VIP or a subscriber.
func privileged(msg irc.PrivateMessage) bool {
	for _, badge := range []string{"broadcaster", "moderator", "vip", "subscriber"} {
		if msg.User.Badges[badge] > 0 {
			return true
		}
	}
	return false
}
