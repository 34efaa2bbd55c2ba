// check-sources verifies that every chat source in the config file is
// reachable before a stream starts: the Kick channel resolves to a chatroom,
// the YouTube video has an active live chat, and Twitch credentials are
// present.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fjudin/chatvoice/internal/chat/youtube"
	"github.com/fjudin/chatvoice/internal/config"
)

func main() {
	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failures := 0

	if cfg.Kick.Channel != "" {
		if id, err := resolveKickChatroom(ctx, cfg.Kick.Channel); err != nil {
			fmt.Printf("kick: FAIL %s: %v\n", cfg.Kick.Channel, err)
			failures++
		} else {
			fmt.Printf("kick: ok, %s -> chatroom %d\n", cfg.Kick.Channel, id)
		}
	}

	if cfg.YouTube.Video != "" {
		if chatID, err := resolveYouTubeChat(ctx, cfg.YouTube.APIKey, cfg.YouTube.Video); err != nil {
			fmt.Printf("youtube: FAIL %s: %v\n", cfg.YouTube.Video, err)
			failures++
		} else {
			fmt.Printf("youtube: ok, live chat %s\n", chatID)
		}
	}

	if cfg.Twitch.Channel != "" {
		if cfg.Twitch.AccessToken == "" {
			fmt.Println("twitch: FAIL no access token, run with -login first")
			failures++
		} else {
			fmt.Printf("twitch: ok, will join #%s as %s\n", cfg.Twitch.Channel, cfg.Twitch.Nickname)
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func resolveKickChatroom(ctx context.Context, channel string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://kick.com/api/v2/channels/"+url.PathEscape(channel), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %s", resp.Status)
	}

	var parsed struct {
		Chatroom struct {
			ID int64 `json:"id"`
		} `json:"chatroom"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	if parsed.Chatroom.ID == 0 {
		return 0, fmt.Errorf("no chatroom in response")
	}
	return parsed.Chatroom.ID, nil
}

func resolveYouTubeChat(ctx context.Context, apiKey, video string) (string, error) {
	videoID, err := youtube.ParseVideoID(video)
	if err != nil {
		return "", err
	}

	q := url.Values{
		"part": {"liveStreamingDetails"},
		"id":   {videoID},
		"key":  {apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/youtube/v3/videos?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %s: %s", resp.Status, body)
	}

	var parsed struct {
		Items []struct {
			LiveStreamingDetails struct {
				ActiveLiveChatID string `json:"activeLiveChatId"`
			} `json:"liveStreamingDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Items) == 0 {
		return "", fmt.Errorf("video not found")
	}
	chatID := parsed.Items[0].LiveStreamingDetails.ActiveLiveChatID
	if chatID == "" {
		return "", fmt.Errorf("video has no active live chat")
	}
	return chatID, nil
}
