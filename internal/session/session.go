// Package session provides the cookie-identified session document the
// wizard keeps its application data in, and its storage backends.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// SignInInfo is written by the sign-in flow in front of this service.
type SignInInfo struct {
	UserID      string `json:"user_id,omitempty"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

// Session is the document persisted per cookie.
type Session struct {
	ID        string                     `json:"id"`
	SignIn    *SignInInfo                `json:"signin_info,omitempty"`
	ExtraData map[string]json.RawMessage `json:"extra_data,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
}

func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		ExtraData: make(map[string]json.RawMessage),
		CreatedAt: time.Now().UTC(),
	}
}

// GetExtraData decodes the value stored under key into dst. It reports false
// when nothing is stored.
func (s *Session) GetExtraData(key string, dst any) (bool, error) {
	raw, ok := s.ExtraData[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode extra data %q: %w", key, err)
	}
	return true, nil
}

func (s *Session) SetExtraData(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode extra data %q: %w", key, err)
	}
	if s.ExtraData == nil {
		s.ExtraData = make(map[string]json.RawMessage)
	}
	s.ExtraData[key] = raw
	return nil
}

func (s *Session) DeleteExtraData(key string) {
	delete(s.ExtraData, key)
}

// Store persists sessions. Load returns ErrNotFound for unknown or expired ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}

type contextKey struct{}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session the middleware attached to the request.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}
