package wizard

import (
	"fmt"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/session"
)

// LoadApplicationData reads the envelope from the session. A nil result with
// a nil error means the session has none yet.
func LoadApplicationData(sess *session.Session) (*appeal.ApplicationData, error) {
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	var data appeal.ApplicationData
	found, err := sess.GetExtraData(appeal.ApplicationDataKey, &data)
	if err != nil {
		return nil, fmt.Errorf("load application data: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &data, nil
}

// StoreApplicationData writes the envelope back onto the session document.
func StoreApplicationData(sess *session.Session, data *appeal.ApplicationData) error {
	if sess == nil {
		return ErrSessionNotFound
	}
	return sess.SetExtraData(appeal.ApplicationDataKey, data)
}

// Guard fails unless the page identified by token has been unlocked.
func Guard(data *appeal.ApplicationData, token string) error {
	if data == nil {
		return fmt.Errorf("guard %s: %w", token, ErrApplicationDataUndefined)
	}
	return appeal.RequirePermission(*data, token)
}
