package wizard

import (
	"net/http"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/session"
)

const changeModeParam = "cm"

// Request is the state a page's navigation and processors may read. It is
// built per HTTP request; navigation must not look anywhere else.
type Request struct {
	HTTP     *http.Request
	Session  *session.Session
	Data     *appeal.ApplicationData
	Features config.Features
}

// Appeal returns a copy of the appeal in progress.
func (r *Request) Appeal() appeal.Appeal {
	return r.Data.CurrentAppeal()
}

// ChangeMode reports whether the page was opened from a change link.
func (r *Request) ChangeMode() bool {
	return r.HTTP.URL.Query().Get(changeModeParam) == "1"
}

// AccessToken returns the signed-in user's token for backend calls.
func (r *Request) AccessToken() (string, error) {
	if r.Session == nil {
		return "", ErrSessionNotFound
	}
	if r.Session.SignIn == nil || r.Session.SignIn.AccessToken == "" {
		return "", ErrAccessTokenMissing
	}
	return r.Session.SignIn.AccessToken, nil
}

// Navigation computes the neighbours of a page. Implementations are pure:
// no I/O and no state beyond the Request.
type Navigation interface {
	Previous(*Request) string
	Next(*Request) string
}

// ActionsProvider is implemented by navigations that expose conditional
// links, mapping an action name to the query string it appends.
type ActionsProvider interface {
	Actions(changeMode bool) map[string]string
}

// NavigationFuncs adapts plain functions to Navigation.
type NavigationFuncs struct {
	PreviousFunc func(*Request) string
	NextFunc     func(*Request) string
}

func (n NavigationFuncs) Previous(r *Request) string {
	if n.PreviousFunc == nil {
		return ""
	}
	return n.PreviousFunc(r)
}

func (n NavigationFuncs) Next(r *Request) string {
	if n.NextFunc == nil {
		return ""
	}
	return n.NextFunc(r)
}

// Static is a navigation with fixed neighbours.
func Static(previous, next string) Navigation {
	return NavigationFuncs{
		PreviousFunc: func(*Request) string { return previous },
		NextFunc:     func(*Request) string { return next },
	}
}

// Changeable sends the user back to returnTo when the page was reached from
// one of returnTo's change links.
func Changeable(nav Navigation, returnTo string) Navigation {
	return changeable{nav: nav, returnTo: returnTo}
}

type changeable struct {
	nav      Navigation
	returnTo string
}

func (c changeable) Previous(r *Request) string {
	if r.ChangeMode() {
		return c.returnTo
	}
	return c.nav.Previous(r)
}

func (c changeable) Next(r *Request) string {
	if r.ChangeMode() {
		return c.returnTo
	}
	return c.nav.Next(r)
}

func (c changeable) Actions(changeMode bool) map[string]string {
	if !changeMode {
		return map[string]string{}
	}
	return map[string]string{"submit": "?" + changeModeParam + "=1"}
}

// ChangeLinks is the navigation for a summary page whose rows link back to
// earlier pages in change mode.
func ChangeLinks(nav Navigation) Navigation {
	return changeLinks{Navigation: nav}
}

type changeLinks struct {
	Navigation
}

func (changeLinks) Actions(bool) map[string]string {
	return map[string]string{"change": "?" + changeModeParam + "=1"}
}
