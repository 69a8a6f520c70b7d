package session

import (
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type CookieConfig struct {
	Name   string
	Domain string
	Secret string
	Secure bool
	TTL    time.Duration
}

// Middleware resolves the session cookie into a Session on the request
// context, starting a new session when the cookie is missing, tampered with
// or points at an expired document. newSession customises fresh sessions.
func Middleware(store Store, cookie CookieConfig, newSession func(*Session)) func(http.Handler) http.Handler {
	secret := []byte(cookie.Secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := loadFromCookie(r, store, cookie.Name, secret)
			if sess == nil {
				sess = New()
				if newSession != nil {
					newSession(sess)
				}
				if err := store.Save(r.Context(), sess); err != nil {
					log.WithError(err).Error("session: create failed")
					http.Error(w, "Sorry, there is a problem with the service", http.StatusInternalServerError)
					return
				}
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cookie.Name,
				Value:    SignID(secret, sess.ID),
				Path:     "/",
				Domain:   cookie.Domain,
				Secure:   cookie.Secure,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(cookie.TTL.Seconds()),
			})

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func loadFromCookie(r *http.Request, store Store, name string, secret []byte) *Session {
	c, err := r.Cookie(name)
	if err != nil {
		return nil
	}
	id, err := VerifyCookie(secret, c.Value)
	if err != nil {
		log.WithField("path", r.URL.Path).Warn("session: rejected cookie with bad signature")
		return nil
	}
	sess, err := store.Load(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithError(err).Error("session: load failed")
		}
		return nil
	}
	return sess
}
