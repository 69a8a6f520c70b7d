// Package wizard drives the multi-page appeal form: each Step loads the
// application data from the session, guards access with navigation
// permissions, validates and merges submitted pages, runs processors and
// redirects to the next page.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/metrics"
	"lfpappeals/web/internal/session"
	"lfpappeals/web/internal/validation"
)

// Renderer writes a named page template.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data map[string]any) error
}

// Engine holds what every step shares.
type Engine struct {
	Sessions  session.Store
	Renderer  Renderer
	Features  config.Features
	EntryPath string
	// Globals are added to the data of every page, error pages included.
	Globals map[string]any
}

// Step is one page of the form. F is the page's form body.
type Step[F any] struct {
	Path     string
	Template string
	// Permission is the navigation token required to open the page. Empty
	// means anyone may open it.
	Permission string
	// Enabled gates the page on a feature; disabled pages redirect to the
	// entry page.
	Enabled func(config.Features) bool
	// Precondition checks state an earlier page must have produced. It runs
	// after the guard on every method.
	Precondition func(*Request) error
	Navigation   Navigation
	Bind         func(*http.Request, appeal.Appeal) (F, error)
	Validator    validation.Validator
	// ViewModel prefills the form from the appeal on GET.
	ViewModel func(appeal.Appeal) F
	// Resolve performs I/O a valid form needs before it can be merged, such
	// as looking penalties up or storing an uploaded file. Returning an
	// *InvalidForm re-renders the page with its errors.
	Resolve func(context.Context, *Request, F) (F, error)
	// Merge folds a valid form into the appeal. It must be pure and give the
	// same appeal when replayed with the same form.
	Merge      func(appeal.Appeal, F) appeal.Appeal
	Processors []Processor
	// Extra adds page-specific values to the template data.
	Extra func(*Request) map[string]any
}

// Mount returns the HTTP handler serving step.
func Mount[F any](engine *Engine, step Step[F]) http.Handler {
	return &stepHandler[F]{engine: engine, step: step}
}

type stepHandler[F any] struct {
	engine *Engine
	step   Step[F]
}

func (h *stepHandler[F]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.step.Enabled != nil && !h.step.Enabled(h.engine.Features) {
		http.Redirect(w, r, h.engine.EntryPath, http.StatusFound)
		return
	}

	req, err := h.engine.request(r, h.step.Permission)
	if err == nil && h.step.Precondition != nil {
		err = h.step.Precondition(req)
	}
	if err != nil {
		h.engine.Fail(w, r, h.step.Path, err)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.get(w, req)
	case http.MethodPost:
		h.post(w, req)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *stepHandler[F]) get(w http.ResponseWriter, req *Request) {
	var form F
	if h.step.ViewModel != nil {
		form = h.step.ViewModel(req.Appeal())
	}
	h.render(w, req, form, validation.Result{})
	metrics.RecordStep(h.step.Path, metrics.OutcomeRendered)
}

func (h *stepHandler[F]) post(w http.ResponseWriter, req *Request) {
	ctx := req.HTTP.Context()
	current := req.Appeal()

	var form F
	if h.step.Bind != nil {
		bound, err := h.step.Bind(req.HTTP, current)
		if err != nil {
			h.engine.Fail(w, req.HTTP, h.step.Path, fmt.Errorf("%w: %v", ErrMalformedForm, err))
			return
		}
		form = bound
	}

	if h.step.Validator != nil {
		if result := h.step.Validator.Validate(form); !result.Valid() {
			h.render(w, req, form, result)
			metrics.RecordStep(h.step.Path, metrics.OutcomeInvalid)
			return
		}
	}

	if h.step.Resolve != nil {
		resolved, err := h.step.Resolve(ctx, req, form)
		var invalid *InvalidForm
		if errors.As(err, &invalid) {
			h.render(w, req, form, invalid.Result)
			metrics.RecordStep(h.step.Path, metrics.OutcomeInvalid)
			return
		}
		if err != nil {
			h.engine.Fail(w, req.HTTP, h.step.Path, err)
			return
		}
		form = resolved
	}

	if h.step.Merge != nil {
		updated := h.step.Merge(current, form)
		req.Data.Appeal = &updated
	}
	if err := h.engine.Save(ctx, req); err != nil {
		h.engine.Fail(w, req.HTTP, h.step.Path, err)
		return
	}

	if len(h.step.Processors) > 0 {
		if err := RunProcessors(ctx, req, h.step.Processors); err != nil {
			h.engine.Fail(w, req.HTTP, h.step.Path, err)
			return
		}
		if err := h.engine.Save(ctx, req); err != nil {
			h.engine.Fail(w, req.HTTP, h.step.Path, err)
			return
		}
	}

	metrics.RecordStep(h.step.Path, metrics.OutcomeAdvanced)
	http.Redirect(w, req.HTTP, h.step.Navigation.Next(req), http.StatusFound)
}

func (h *stepHandler[F]) render(w http.ResponseWriter, req *Request, form F, result validation.Result) {
	data := h.engine.baseData()
	data["Path"] = h.step.Path
	data["FormAction"] = h.step.Path
	data["Form"] = form
	data["Appeal"] = req.Appeal()
	data["Errors"] = result
	data["ChangeMode"] = req.ChangeMode()
	data["Actions"] = map[string]string{}
	if h.step.Navigation != nil {
		data["Previous"] = h.step.Navigation.Previous(req)
		if provider, ok := h.step.Navigation.(ActionsProvider); ok {
			actions := provider.Actions(req.ChangeMode())
			data["Actions"] = actions
			data["FormAction"] = h.step.Path + actions["submit"]
		}
	}
	if h.step.Extra != nil {
		for k, v := range h.step.Extra(req) {
			data[k] = v
		}
	}
	if err := h.engine.Renderer.Render(w, http.StatusOK, h.step.Template, data); err != nil {
		log.WithError(err).WithField("template", h.step.Template).Error("wizard: render failed")
	}
}

func (e *Engine) baseData() map[string]any {
	data := make(map[string]any, len(e.Globals)+10)
	for k, v := range e.Globals {
		data[k] = v
	}
	return data
}

// request loads the session state behind r and enforces the page's
// permission token.
func (e *Engine) request(r *http.Request, permission string) (*Request, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil, ErrSessionNotFound
	}
	data, err := LoadApplicationData(sess)
	if err != nil {
		return nil, err
	}
	if permission != "" {
		if err := Guard(data, permission); err != nil {
			return nil, err
		}
	}
	if data == nil {
		data = &appeal.ApplicationData{}
	}
	return &Request{HTTP: r, Session: sess, Data: data, Features: e.Features}, nil
}

// Save writes the request's application data back to the session store.
func (e *Engine) Save(ctx context.Context, req *Request) error {
	if err := StoreApplicationData(req.Session, req.Data); err != nil {
		return err
	}
	if err := e.Sessions.Save(ctx, req.Session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Fail renders the page for err: a business rule page of its own, or the
// generic problem-with-the-service page.
func (e *Engine) Fail(w http.ResponseWriter, r *http.Request, step string, err error) {
	status, code, template := mapError(err)
	entry := log.WithError(err).WithFields(log.Fields{
		"step":   step,
		"code":   code,
		"method": r.Method,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("wizard: request failed")
	} else {
		entry.Warn("wizard: request stopped")
	}
	metrics.RecordStep(step, metrics.OutcomeFailed)

	data := e.baseData()
	data["Code"] = code
	data["Message"] = genericMessage
	data["EntryPath"] = e.EntryPath
	if sess, ok := session.FromContext(r.Context()); ok {
		if appData, loadErr := LoadApplicationData(sess); loadErr == nil && appData != nil {
			data["Appeal"] = appData.CurrentAppeal()
		}
	}
	if renderErr := e.Renderer.Render(w, status, template, data); renderErr != nil {
		log.WithError(renderErr).WithField("template", template).Error("wizard: render error page failed")
	}
}
