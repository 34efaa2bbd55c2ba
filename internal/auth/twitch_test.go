package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(base string) *TwitchAuth {
	a := NewTwitchAuth("client-1")
	a.Base = base
	return a
}

func TestStartDeviceFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/device", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.NotEmpty(t, r.PostForm.Get("scopes"))
		fmt.Fprint(w, `{"device_code":"dev-1","user_code":"ABCD1234",
			"verification_uri":"https://www.twitch.tv/activate","expires_in":1800,"interval":1}`)
	}))
	defer srv.Close()

	dc, err := newTestAuth(srv.URL).StartDeviceFlow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", dc.UserCode)
	assert.Equal(t, "dev-1", dc.DeviceCode)
}

func TestPollTokenWaitsForApproval(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"status":400,"message":"authorization_pending"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"acc-1","refresh_token":"ref-1","expires_in":14000}`)
	}))
	defer srv.Close()

	dc := &DeviceCode{DeviceCode: "dev-1", ExpiresIn: 60, Interval: 1}
	tok, err := newTestAuth(srv.URL).PollToken(context.Background(), dc)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", tok.AccessToken)
	assert.Equal(t, "ref-1", tok.RefreshToken)

	mu.Lock()
	assert.Equal(t, 3, polls)
	mu.Unlock()
}

func TestPollTokenExpiredCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":400,"message":"expired_token"}`)
	}))
	defer srv.Close()

	dc := &DeviceCode{DeviceCode: "dev-1", ExpiresIn: 60, Interval: 1}
	_, err := newTestAuth(srv.URL).PollToken(context.Background(), dc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestPollTokenDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":400,"message":"access_denied"}`)
	}))
	defer srv.Close()

	dc := &DeviceCode{DeviceCode: "dev-1", ExpiresIn: 60, Interval: 1}
	_, err := newTestAuth(srv.URL).PollToken(context.Background(), dc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestPollTokenCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":400,"message":"authorization_pending"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	dc := &DeviceCode{DeviceCode: "dev-1", ExpiresIn: 600, Interval: 10}

	done := make(chan error, 1)
	go func() {
		_, err := newTestAuth(srv.URL).PollToken(ctx, dc)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("PollToken did not stop on cancellation")
	}
}

func TestSourceRotatesRefreshToken(t *testing.T) {
	var mu sync.Mutex
	seen := []string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		seen = append(seen, r.PostForm.Get("refresh_token"))
		n := len(seen)
		mu.Unlock()
		fmt.Fprintf(w, `{"access_token":"acc-%d","refresh_token":"ref-%d","expires_in":14000}`, n, n)
	}))
	defer srv.Close()

	var rotated []string
	src := NewSource(newTestAuth(srv.URL), "ref-0")
	src.OnRotate = func(access, refresh string) {
		rotated = append(rotated, access+"/"+refresh)
	}

	acc, err := src.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc)

	acc, err = src.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acc-2", acc)

	mu.Lock()
	assert.Equal(t, []string{"ref-0", "ref-1"}, seen)
	mu.Unlock()
	assert.Equal(t, []string{"acc-1/ref-1", "acc-2/ref-2"}, rotated)
}
