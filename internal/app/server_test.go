package app

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/email"
	"lfpappeals/web/internal/evidence"
	"lfpappeals/web/internal/render"
	"lfpappeals/web/internal/session"
	"lfpappeals/web/internal/wizard"
)

const attachmentID = "3f1c6a8e-3b2a-4a51-9f4e-0c1d2e3f4a5b"

type rendered struct {
	status int
	name   string
	data   map[string]any
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []rendered
}

func (f *fakeRenderer) Render(w http.ResponseWriter, status int, name string, data map[string]any) error {
	f.mu.Lock()
	f.calls = append(f.calls, rendered{status: status, name: name, data: data})
	f.mu.Unlock()
	w.WriteHeader(status)
	return nil
}

func (f *fakeRenderer) last(t *testing.T) rendered {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("expected a render")
	}
	return f.calls[len(f.calls)-1]
}

type fakePenalties struct {
	list appeal.PenaltyList
	err  error
}

func (f *fakePenalties) LatePenalties(_ context.Context, token, _ string) (appeal.PenaltyList, error) {
	if token != "tok" {
		return appeal.PenaltyList{}, errors.New("unexpected token " + token)
	}
	return f.list, f.err
}

type fakeCompanies struct {
	name string
	err  error
}

func (f fakeCompanies) CompanyName(context.Context, string, string) (string, error) {
	return f.name, f.err
}

type fakeAppeals struct {
	mu       sync.Mutex
	existing bool
	created  []appeal.Appeal
}

func (f *fakeAppeals) HasExistingAppeal(context.Context, string, string, string) (bool, error) {
	return f.existing, nil
}

func (f *fakeAppeals) CreateAppeal(_ context.Context, _ string, a appeal.Appeal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, a)
	return "appeal-1", nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type fakeEvidence struct {
	mu      sync.Mutex
	put     []evidence.Object
	removed []string
}

func (f *fakeEvidence) Put(_ context.Context, obj evidence.Object) (appeal.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put = append(f.put, obj)
	return appeal.Attachment{ID: attachmentID, Name: obj.Name, ContentType: obj.ContentType, Size: obj.Size}, nil
}

func (f *fakeEvidence) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type harness struct {
	t         *testing.T
	paths     Paths
	server    *httptest.Server
	client    *http.Client
	renderer  *fakeRenderer
	penalties *fakePenalties
	appeals   *fakeAppeals
	sender    *fakeSender
	evidence  *fakeEvidence
}

func penalty(id string) appeal.Penalty {
	return appeal.Penalty{
		ID:              id,
		Type:            "penalty",
		MadeUpDate:      "2019-12-31",
		TransactionDate: "2020-06-01",
		OriginalAmount:  150,
		Outstanding:     150,
	}
}

func testConfig(features config.Features) config.Config {
	return config.Config{
		CookieName:        "__SID",
		CookieSecret:      "test-secret",
		SessionTTL:        time.Hour,
		DevUserEmail:      "director@example.com",
		APIKey:            "tok",
		InternalTeamEmail: "appeals@example.com",
		IllnessTeamEmail:  "illness@example.com",
		EvidenceMaxBytes:  1 << 20,
		Features:          features,
	}
}

func allReasons() config.Features {
	return config.NewFeatures([]string{config.ReasonIllness, config.ReasonOther}, true)
}

func newHarness(t *testing.T, features config.Features, penalties ...appeal.Penalty) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	store := session.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)

	h := &harness{
		t:         t,
		paths:     NewPaths(Root),
		renderer:  &fakeRenderer{},
		penalties: &fakePenalties{list: appeal.PenaltyList{TotalResults: len(penalties), Items: penalties}},
		appeals:   &fakeAppeals{},
		sender:    &fakeSender{},
		evidence:  &fakeEvidence{},
	}
	srv := NewServer(testConfig(features), Dependencies{
		Sessions:  store,
		Renderer:  h.renderer,
		Appeals:   h.appeals,
		Penalties: h.penalties,
		Companies: fakeCompanies{name: "Acme Ltd"},
		Email:     h.sender,
		Evidence:  h.evidence,
		Now:       func() time.Time { return time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC) },
	})
	h.server = httptest.NewServer(srv.Handler())
	t.Cleanup(h.server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

func (h *harness) do(req *http.Request) (int, string) {
	h.t.Helper()
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Location")
}

func (h *harness) get(path string) int {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.server.URL+path, nil)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	status, _ := h.do(req)
	return status
}

func (h *harness) post(path string, form url.Values) (int, string) {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

// advance posts form to path and expects a redirect to next.
func (h *harness) advance(path string, form url.Values, next string) {
	h.t.Helper()
	status, location := h.post(path, form)
	if status != http.StatusFound {
		h.t.Fatalf("POST %s: expected 302, got %d", path, status)
	}
	if location != next {
		h.t.Fatalf("POST %s: expected redirect to %s, got %s", path, next, location)
	}
}

func (h *harness) expectError(path string, status int, code string) {
	h.t.Helper()
	if got := h.get(path); got != status {
		h.t.Fatalf("GET %s: expected %d, got %d", path, status, got)
	}
	if got := h.renderer.last(h.t).data["Code"]; got != code {
		h.t.Fatalf("GET %s: expected code %s, got %v", path, code, got)
	}
}

func (h *harness) throughReview() {
	h.t.Helper()
	p := h.paths
	h.advance(p.Start, url.Values{}, p.PenaltyReference)
	h.advance(p.PenaltyReference, url.Values{
		"companyNumber":             {"sc123"},
		"userInputPenaltyReference": {"a1234567"},
	}, p.ReviewPenalty)
}

func TestIllnessAppealEndToEnd(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"))
	p := h.paths

	h.throughReview()
	h.advance(p.ReviewPenalty, url.Values{}, p.ChooseReason)
	h.advance(p.ChooseReason, url.Values{"reason": {"illness"}}, p.WhoWasIll)
	h.advance(p.WhoWasIll, url.Values{"illPerson": {"director"}}, p.IllnessStartDate)
	h.advance(p.IllnessStartDate, url.Values{"startDay": {"01"}, "startMonth": {"05"}, "startYear": {"2020"}}, p.FurtherInformation)

	if status := h.get(p.IllnessStartDate); status != http.StatusOK {
		t.Fatalf("expected start date page to reopen, got %d", status)
	}
	got := h.renderer.last(t)
	if a := got.data["Appeal"].(appeal.Appeal); a.Reasons.Illness.IllnessStart != "2020-05-01" {
		t.Fatalf("unexpected stored start date %q", a.Reasons.Illness.IllnessStart)
	}

	h.advance(p.FurtherInformation, url.Values{"description": {"In hospital"}}, p.Evidence)
	h.advance(p.Evidence, url.Values{"evidence": {"no"}}, p.CheckYourAnswers)
	h.advance(p.CheckYourAnswers, url.Values{}, p.Confirmation)

	if len(h.appeals.created) != 1 {
		t.Fatalf("expected one stored appeal, got %d", len(h.appeals.created))
	}
	stored := h.appeals.created[0]
	if stored.PenaltyIdentifier.CompanyNumber != "SC000123" || stored.PenaltyIdentifier.PenaltyReference != "A1234567" {
		t.Fatalf("unexpected penalty identifier %+v", stored.PenaltyIdentifier)
	}
	if stored.PenaltyIdentifier.CompanyName != "Acme Ltd" {
		t.Fatalf("expected company name, got %q", stored.PenaltyIdentifier.CompanyName)
	}
	if stored.CreatedBy == nil || stored.CreatedBy.EmailAddress != "director@example.com" {
		t.Fatalf("unexpected createdBy %+v", stored.CreatedBy)
	}
	if len(h.sender.sent) != 2 || h.sender.sent[0].To != "illness@example.com" || h.sender.sent[1].To != "director@example.com" {
		t.Fatalf("unexpected emails %+v", h.sender.sent)
	}

	if status := h.get(p.Confirmation); status != http.StatusOK {
		t.Fatalf("expected confirmation, got %d", status)
	}
	submitted, _ := h.renderer.last(t).data["Submitted"].(*appeal.Appeal)
	if submitted == nil || submitted.ID != "appeal-1" {
		t.Fatalf("expected submitted appeal on confirmation, got %+v", submitted)
	}

	h.expectError(p.PenaltyReference, http.StatusInternalServerError, "PERMISSION_NOT_FOUND")
}

func TestOtherReasonWithEvidence(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"))
	p := h.paths

	h.throughReview()
	h.advance(p.ReviewPenalty, url.Values{}, p.ChooseReason)
	h.advance(p.ChooseReason, url.Values{"reason": {"other"}}, p.OtherReason)
	h.advance(p.OtherReason, url.Values{"title": {"Flood"}, "description": {"The office flooded"}}, p.Evidence)
	h.advance(p.Evidence, url.Values{"evidence": {"yes"}}, p.EvidenceUpload)

	status, location := h.upload(p.EvidenceUpload, "letter.pdf", "application/pdf", []byte("%PDF-1.4"))
	if status != http.StatusFound || location != p.EvidenceUpload {
		t.Fatalf("upload: got %d %s", status, location)
	}
	if len(h.evidence.put) != 1 || h.evidence.put[0].Owner != "SC000123" || h.evidence.put[0].Name != "letter.pdf" {
		t.Fatalf("unexpected stored evidence %+v", h.evidence.put)
	}

	h.advance(p.EvidenceRemove, url.Values{"attachmentId": {attachmentID}}, p.EvidenceUpload)
	if len(h.evidence.removed) != 1 {
		t.Fatalf("expected evidence removal, got %v", h.evidence.removed)
	}
	h.get(p.EvidenceUpload)
	if a := h.renderer.last(t).data["Appeal"].(appeal.Appeal); len(a.Attachments()) != 0 {
		t.Fatalf("expected attachment removed, got %+v", a.Attachments())
	}

	h.advance(p.EvidenceRemove, url.Values{"attachmentId": {"9b2e4f0a-1c3d-4e5f-8a9b-0c1d2e3f4a5b"}}, p.EvidenceUpload)
	if len(h.evidence.removed) != 1 {
		t.Fatalf("unknown attachment must not reach storage, got %v", h.evidence.removed)
	}

	status, location = h.upload(p.EvidenceUpload, "", "", nil)
	if status != http.StatusFound || location != p.CheckYourAnswers {
		t.Fatalf("continue: got %d %s", status, location)
	}
	h.advance(p.CheckYourAnswers, url.Values{}, p.Confirmation)
	if h.sender.sent[0].To != "appeals@example.com" {
		t.Fatalf("other reasons go to the internal team, got %s", h.sender.sent[0].To)
	}
}

// upload posts a multipart body. An empty name continues without a file.
func (h *harness) upload(path, name, contentType string, content []byte) (int, string) {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	action := "continue"
	if name != "" {
		action = "upload-file"
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			h.t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(content)
	}
	if err := mw.WriteField("action", action); err != nil {
		h.t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		h.t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, h.server.URL+path, &body)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"))
	p := h.paths
	h.throughReview()
	h.advance(p.ReviewPenalty, url.Values{}, p.ChooseReason)
	h.advance(p.ChooseReason, url.Values{"reason": {"other"}}, p.OtherReason)
	h.advance(p.OtherReason, url.Values{"title": {"Flood"}, "description": {"Water"}}, p.Evidence)
	h.advance(p.Evidence, url.Values{"evidence": {"yes"}}, p.EvidenceUpload)

	status, _ := h.upload(p.EvidenceUpload, "run.exe", "application/octet-stream", []byte("MZ"))
	if status != http.StatusOK {
		t.Fatalf("expected form re-render, got %d", status)
	}
	if len(h.evidence.put) != 0 {
		t.Fatal("rejected file must not be stored")
	}
}

func TestMultiplePenaltiesGoThroughSelection(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"), penalty("A7654321"))
	p := h.paths

	h.advance(p.Start, url.Values{}, p.PenaltyReference)
	h.advance(p.PenaltyReference, url.Values{
		"companyNumber":             {"SC000123"},
		"userInputPenaltyReference": {"A1234567"},
	}, p.SelectPenalty)

	if status, _ := h.post(p.SelectPenalty, url.Values{"selectPenalty": {"Z0000000"}}); status != http.StatusOK {
		t.Fatalf("expected unknown penalty to be rejected, got %d", status)
	}
	h.advance(p.SelectPenalty, url.Values{"selectPenalty": {"A7654321"}}, p.ReviewPenalty)

	h.get(p.ReviewPenalty)
	got := h.renderer.last(t)
	if pen, _ := got.data["Penalty"].(*appeal.Penalty); pen == nil || pen.ID != "A7654321" {
		t.Fatalf("expected selected penalty on review page, got %+v", got.data["Penalty"])
	}
	if got.data["Previous"] != p.SelectPenalty {
		t.Fatalf("expected back link to selection, got %v", got.data["Previous"])
	}
}

func TestNoPenaltiesFails(t *testing.T) {
	h := newHarness(t, allReasons())
	p := h.paths
	h.advance(p.Start, url.Values{}, p.PenaltyReference)

	status, _ := h.post(p.PenaltyReference, url.Values{
		"companyNumber":             {"SC000123"},
		"userInputPenaltyReference": {"A1234567"},
	})
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if code := h.renderer.last(t).data["Code"]; code != "NO_PENALTIES" {
		t.Fatalf("unexpected code %v", code)
	}
}

func TestGuardBlocksSkippingAhead(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"))
	p := h.paths

	h.expectError(p.CheckYourAnswers, http.StatusInternalServerError, "APPLICATION_DATA_UNDEFINED")
	h.advance(p.Start, url.Values{}, p.PenaltyReference)
	h.expectError(p.CheckYourAnswers, http.StatusInternalServerError, "PERMISSION_NOT_FOUND")
	h.expectError(p.ReviewPenalty, http.StatusInternalServerError, "PERMISSION_NOT_FOUND")
}

func TestDuplicateAppealStopsOnReview(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"))
	h.appeals.existing = true
	h.throughReview()

	status, location := h.post(h.paths.ReviewPenalty, url.Values{})
	if status != http.StatusConflict || location != "" {
		t.Fatalf("expected 409 without redirect, got %d %q", status, location)
	}
	if got := h.renderer.last(t); got.name != "duplicate-appeal" {
		t.Fatalf("unexpected page %s", got.name)
	}
	h.expectError(h.paths.ChooseReason, http.StatusInternalServerError, "PERMISSION_NOT_FOUND")
}

func TestIllnessDisabledSkipsReasonChoice(t *testing.T) {
	h := newHarness(t, config.NewFeatures([]string{config.ReasonOther}, true), penalty("A1234567"))
	p := h.paths

	if status := h.get(p.ChooseReason); status != http.StatusFound {
		t.Fatalf("expected disabled page to redirect, got %d", status)
	}
	h.throughReview()
	h.advance(p.ReviewPenalty, url.Values{}, p.OtherReason)

	h.get(p.OtherReason)
	if prev := h.renderer.last(t).data["Previous"]; prev != p.ReviewPenalty {
		t.Fatalf("expected back link to review, got %v", prev)
	}
}

func TestChangeModeReturnsToCheckYourAnswers(t *testing.T) {
	h := newHarness(t, allReasons(), penalty("A1234567"))
	p := h.paths

	h.throughReview()
	h.advance(p.ReviewPenalty, url.Values{}, p.ChooseReason)
	h.advance(p.ChooseReason, url.Values{"reason": {"other"}}, p.OtherReason)
	h.advance(p.OtherReason, url.Values{"title": {"Flood"}, "description": {"Water"}}, p.Evidence)
	h.advance(p.Evidence, url.Values{"evidence": {"no"}}, p.CheckYourAnswers)

	h.advance(p.OtherReason+"?cm=1", url.Values{"title": {"Fire"}, "description": {"Smoke"}}, p.CheckYourAnswers)
	h.get(p.CheckYourAnswers)
	got := h.renderer.last(t)
	if a := got.data["Appeal"].(appeal.Appeal); a.Reasons.Other.Title != "Fire" {
		t.Fatalf("expected changed title, got %q", a.Reasons.Other.Title)
	}
	if actions := got.data["Actions"].(map[string]string); actions["change"] != "?cm=1" {
		t.Fatalf("unexpected actions %v", actions)
	}
}

func TestHealthcheck(t *testing.T) {
	srv := NewServer(testConfig(allReasons()), Dependencies{
		Renderer: &fakeRenderer{},
		Health:   map[string]Pinger{"redis": fakePinger{}, "appeals": fakePinger{err: errors.New("down")}},
	})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `"appeals":"unavailable"`) || !strings.Contains(body, `"redis":"ok"`) {
		t.Fatalf("unexpected body %s", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := NewServer(testConfig(allReasons()), Dependencies{Renderer: &fakeRenderer{}})
	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("got %d %q", rr.Code, rr.Header().Get("X-Request-ID"))
	}
}

func TestStartPageRendersWithTemplates(t *testing.T) {
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	mr := miniredis.RunT(t)
	store := session.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	srv := NewServer(testConfig(allReasons()), Dependencies{Sessions: store, Renderer: renderer})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, Root, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `action="`+Root+`"`) {
		t.Fatalf("expected start form action in %s", rr.Body.String())
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatal("expected a session cookie")
	}
}

func TestPathsAreUnique(t *testing.T) {
	p := NewPaths(Root)
	seen := map[string]bool{}
	for _, path := range []string{
		p.Start, p.PenaltyReference, p.SelectPenalty, p.ReviewPenalty, p.ChooseReason,
		p.WhoWasIll, p.IllnessStartDate, p.FurtherInformation, p.OtherReason,
		p.Evidence, p.EvidenceUpload, p.EvidenceRemove, p.CheckYourAnswers, p.Confirmation,
	} {
		if seen[path] {
			t.Fatalf("duplicate path %s", path)
		}
		seen[path] = true
	}
}

var _ wizard.Renderer = (*fakeRenderer)(nil)
