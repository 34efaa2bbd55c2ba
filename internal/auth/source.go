package auth

import (
	"context"
	"sync"
)

// Source hands fresh access tokens to the chat adapter, rotating the stored
// refresh token as Twitch issues new ones. OnRotate, when set, receives each
// new token pair so the caller can persist it.
type Source struct {
	auth *TwitchAuth

	mu           sync.Mutex
	refreshToken string

	OnRotate func(accessToken, refreshToken string)
}

func NewSource(auth *TwitchAuth, refreshToken string) *Source {
	return &Source{auth: auth, refreshToken: refreshToken}
}

// Refresh exchanges the stored refresh token for a new access token.
func (s *Source) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	current := s.refreshToken
	s.mu.Unlock()

	tok, err := s.auth.Refresh(ctx, current)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	rotated := s.refreshToken
	s.mu.Unlock()

	if s.OnRotate != nil {
		s.OnRotate(tok.AccessToken, rotated)
	}
	return tok.AccessToken, nil
}
