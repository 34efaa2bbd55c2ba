// Package youtube reads live chat through the YouTube Data API v3. The API
// has no push channel for chat, so the adapter polls liveChatMessages at the
// interval the server suggests.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/fjudin/chatvoice/internal/chat"
)

const (
	defaultAPIBase = "https://www.googleapis.com/youtube/v3"

	// minPollInterval floors the server-suggested interval so a broken
	// pollingIntervalMillis cannot turn the loop into a busy spin.
	minPollInterval = time.Second
)

// messageFields trims the poll response to what the pipeline consumes.
const messageFields = "nextPageToken,pollingIntervalMillis," +
	"items(id,snippet(displayMessage,publishedAt)," +
	"authorDetails(displayName,isChatOwner,isChatSponsor,isChatModerator))"

// Config identifies the live stream to follow.
type Config struct {
	APIKey string
	// Video is a watch URL, youtu.be link, or bare video id.
	Video string
	// APIBase overrides the production endpoint in tests.
	APIBase string
}

// Adapter polls a live stream's chat and forwards new messages.
type Adapter struct {
	cfg     Config
	cb      chat.Callbacks
	conn    *chat.Conn
	log     *log.Logger
	http    *http.Client
	limiter *rate.Limiter

	// retryBase scales the in-session retry delay after a failed poll.
	retryBase time.Duration

	mu      sync.Mutex
	stopped bool
}

func New(cfg Config, cb chat.Callbacks) *Adapter {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Adapter{
		cfg:  cfg,
		cb:   cb,
		conn: chat.NewConn(cb),
		log:  log.With("component", "youtube"),
		http: &http.Client{Timeout: 15 * time.Second},
		// The Data API default quota allows roughly one chat poll per
		// second sustained; cap our own request rate below that.
		limiter:   rate.NewLimiter(rate.Limit(1), 2),
		retryBase: 2 * time.Second,
	}
}

// Run resolves the stream's chat id, then polls until ctx is cancelled or
// Stop is called. A dead stream or exhausted quota surfaces through the
// shared error escalation.
func (a *Adapter) Run(ctx context.Context) error {
	backoff := chat.Backoff{Base: 2 * time.Second, Max: time.Minute}

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

	videoID, err := ParseVideoID(a.cfg.Video)
	if err != nil {
		return err
	}

	chatID, err := a.liveChatID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("resolve live chat: %w", err)
	}

	a.conn.To(chat.Listening)
	a.log.Info("following live chat", "video", videoID)

	// The first page returns the backlog; deliver nothing from it so a
	// restart does not replay old chat, then announce from the second page
	// onward.
	pageToken := ""
	first := true

	for {
		if a.done() {
			return nil
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return nil
		}

		page, err := a.poll(ctx, chatID, pageToken)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if a.conn.Fail(fmt.Errorf("poll: %w", err)) {
				return nil
			}
			wait := chat.Linear(a.retryBase, a.conn.Errors())
			if !chat.Sleep(ctx, wait) {
				return nil
			}
			continue
		}
		a.conn.Reset()

		if !first {
			for _, item := range page.Items {
				if item.Snippet.DisplayMessage == "" {
					continue
				}
				a.cb.OnMessage(
					item.ID,
					item.AuthorDetails.DisplayName,
					item.Snippet.DisplayMessage,
					item.AuthorDetails.IsChatOwner ||
						item.AuthorDetails.IsChatSponsor ||
						item.AuthorDetails.IsChatModerator,
				)
			}
		}
		first = false
		pageToken = page.NextPageToken

		wait := time.Duration(page.PollingIntervalMillis) * time.Millisecond
		if wait < minPollInterval {
			wait = minPollInterval
		}
		if !chat.Sleep(ctx, wait) {
			return nil
		}
	}
}

type videosResponse struct {
	Items []struct {
		LiveStreamingDetails struct {
			ActiveLiveChatID string `json:"activeLiveChatId"`
		} `json:"liveStreamingDetails"`
	} `json:"items"`
}

// liveChatID maps a video id to its active live chat id. A finished or
// not-yet-live stream has none.
func (a *Adapter) liveChatID(ctx context.Context, videoID string) (string, error) {
	q := url.Values{
		"part": {"liveStreamingDetails"},
		"id":   {videoID},
		"key":  {a.cfg.APIKey},
	}
	var resp videosResponse
	if err := a.get(ctx, "/videos", q, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("video %q not found", videoID)
	}
	id := resp.Items[0].LiveStreamingDetails.ActiveLiveChatID
	if id == "" {
		return "", fmt.Errorf("video %q has no active live chat", videoID)
	}
	return id, nil
}

type chatPage struct {
	NextPageToken         string `json:"nextPageToken"`
	PollingIntervalMillis int64  `json:"pollingIntervalMillis"`
	Items                 []struct {
		ID      string `json:"id"`
		Snippet struct {
			DisplayMessage string `json:"displayMessage"`
		} `json:"snippet"`
		AuthorDetails struct {
			DisplayName     string `json:"displayName"`
			IsChatOwner     bool   `json:"isChatOwner"`
			IsChatSponsor   bool   `json:"isChatSponsor"`
			IsChatModerator bool   `json:"isChatModerator"`
		} `json:"authorDetails"`
	} `json:"items"`
}

func (a *Adapter) poll(ctx context.Context, chatID, pageToken string) (*chatPage, error) {
	q := url.Values{
		"liveChatId": {chatID},
		"part":       {"snippet,authorDetails"},
		"fields":     {messageFields},
		"key":        {a.cfg.APIKey},
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	var page chatPage
	if err := a.get(ctx, "/liveChat/messages", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *Adapter) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBase+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube api returned %s: %s", resp.Status, truncate(body, 200))
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Stop makes Run return within one poll interval. Safe to call more than
// once.
func (a *Adapter) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
}

func (a *Adapter) done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from a watch URL, a
// youtu.be short link, a live URL, or a bare id.
func ParseVideoID(s string) (string, error) {
	if videoIDRE.MatchString(s) {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid video reference %q", s)
	}

	var id string
	switch {
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	case u.Host == "youtu.be":
		id = trimSlash(u.Path)
	case len(u.Path) > len("/live/") && u.Path[:len("/live/")] == "/live/":
		id = u.Path[len("/live/"):]
	}
	if !videoIDRE.MatchString(id) {
		return "", fmt.Errorf("cannot find video id in %q", s)
	}
	return id, nil
}

func trimSlash(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
