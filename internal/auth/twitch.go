// Package auth implements the Twitch device-code OAuth flow. The desktop app
// has no redirect URL, so the user enters a short code on twitch.tv and the
// app polls until the grant completes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/chat"
)

const (
	defaultAuthBase = "https://id.twitch.tv/oauth2"

	// Scopes required to read chat as the authenticated user.
	scopes = "chat:read"
)

// DeviceCode is the pending grant the user has to approve on twitch.tv.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// Token is a completed grant.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// TwitchAuth drives the device flow for one client id. The zero endpoints
// point at production; tests override Base.
type TwitchAuth struct {
	ClientID string
	Base     string

	http *http.Client
	log  *log.Logger
}

func NewTwitchAuth(clientID string) *TwitchAuth {
	return &TwitchAuth{
		ClientID: clientID,
		Base:     defaultAuthBase,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log.With("component", "auth"),
	}
}

// StartDeviceFlow asks Twitch for a device code. The caller shows
// UserCode and VerificationURI to the user, then calls PollToken.
func (a *TwitchAuth) StartDeviceFlow(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {a.ClientID},
		"scopes":    {scopes},
	}
	var dc DeviceCode
	if err := a.post(ctx, "/device", form, &dc); err != nil {
		return nil, fmt.Errorf("start device flow: %w", err)
	}
	return &dc, nil
}

// PollToken polls the token endpoint until the user approves the grant, the
// code expires, or ctx is cancelled. The poll interval follows the server's
// hint and backs off on slow_down.
func (a *TwitchAuth) PollToken(ctx context.Context, dc *DeviceCode) (*Token, error) {
	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	form := url.Values{
		"client_id":   {a.ClientID},
		"device_code": {dc.DeviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}

	for {
		if !chat.Sleep(ctx, interval) {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("device code expired before approval")
		}

		var tok Token
		err := a.post(ctx, "/token", form, &tok)
		if err == nil {
			a.log.Info("twitch authorization complete")
			return &tok, nil
		}

		var oe *oauthError
		if !errors.As(err, &oe) {
			return nil, err
		}
		switch oe.Message {
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
		case "expired_token":
			return nil, fmt.Errorf("device code expired before approval")
		default:
			return nil, fmt.Errorf("device grant rejected: %s", oe.Message)
		}
	}
}

// Refresh exchanges a refresh token for a new token pair.
func (a *TwitchAuth) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{
		"client_id":     {a.ClientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	var tok Token
	if err := a.post(ctx, "/token", form, &tok); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &tok, nil
}

// oauthError carries the "message" field Twitch returns on non-200 token
// responses.
type oauthError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *oauthError) Error() string {
	return fmt.Sprintf("oauth error %d: %s", e.Status, e.Message)
}

func (a *TwitchAuth) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
		oe := &oauthError{Status: resp.StatusCode}
		if json.Unmarshal(body, oe) != nil || oe.Message == "" {
			return fmt.Errorf("auth endpoint returned %s", resp.Status)
		}
		return oe
	}
	return json.Unmarshal(body, out)
}
