package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidCookie = errors.New("invalid session cookie")

// SignID produces the cookie value for a session id.
func SignID(secret []byte, id string) string {
	return id + "." + sign(secret, id)
}

// VerifyCookie returns the session id carried by a signed cookie value.
func VerifyCookie(secret []byte, value string) (string, error) {
	id, signature, ok := strings.Cut(value, ".")
	if !ok || id == "" || signature == "" {
		return "", ErrInvalidCookie
	}
	expected := sign(secret, id)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidCookie
	}
	return id, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}
