package appeal

import (
	"errors"
	"fmt"
)

var ErrPermissionNotFound = errors.New("navigation permission not found")

// GrantPermission unlocks a page. Tokens already present are left where they
// are, so submitting the same page twice does not grow the list.
func GrantPermission(data ApplicationData, token string) ApplicationData {
	if token == "" || data.HasPermission(token) {
		return data
	}
	out := data
	out.Navigation.Permissions = append(append([]string(nil), data.Navigation.Permissions...), token)
	return out
}

// RequirePermission fails when the page behind token was never unlocked.
func RequirePermission(data ApplicationData, token string) error {
	if data.HasPermission(token) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPermissionNotFound, token)
}

func (d ApplicationData) HasPermission(token string) bool {
	for _, granted := range d.Navigation.Permissions {
		if granted == token {
			return true
		}
	}
	return false
}

// Submit snapshots the appeal as submitted, clears the in-progress appeal and
// collapses permissions to the terminal page only.
func Submit(data ApplicationData, terminalToken string) ApplicationData {
	out := ApplicationData{Navigation: Navigation{Permissions: []string{terminalToken}}}
	if data.Appeal != nil {
		submitted := data.Appeal.Clone()
		out.SubmittedAppeal = &submitted
	} else {
		out.SubmittedAppeal = data.SubmittedAppeal
	}
	return out
}
