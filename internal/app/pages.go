package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/evidence"
	"lfpappeals/web/internal/forms"
	"lfpappeals/web/internal/processor"
	"lfpappeals/web/internal/wizard"
)

// uploadMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const uploadMemory = 8 << 20

var illPersonOptions = []string{"director", "accountant", "family", "employee", "someoneElse"}

func (s *Server) mountPages(r chi.Router) {
	p := s.paths
	e := s.engine

	r.Handle(p.Start, wizard.Mount(e, withPermission(wizard.Step[forms.Empty]{
		Path:       p.Start,
		Template:   "start",
		Navigation: wizard.Static("", p.PenaltyReference),
		Bind:       forms.BindEmpty,
	})))
	r.Handle(p.PenaltyReference, wizard.Mount(e, withPermission(s.penaltyReferenceStep())))
	r.Handle(p.SelectPenalty, wizard.Mount(e, withPermission(s.selectPenaltyStep())))
	r.Handle(p.ReviewPenalty, wizard.Mount(e, withPermission(s.reviewPenaltyStep())))
	r.Handle(p.ChooseReason, wizard.Mount(e, withPermission(s.chooseReasonStep())))
	r.Handle(p.WhoWasIll, wizard.Mount(e, withPermission(s.whoWasIllStep())))
	r.Handle(p.IllnessStartDate, wizard.Mount(e, withPermission(s.illnessStartDateStep())))
	r.Handle(p.FurtherInformation, wizard.Mount(e, withPermission(s.furtherInformationStep())))
	r.Handle(p.OtherReason, wizard.Mount(e, withPermission(s.otherReasonStep())))
	r.Handle(p.Evidence, wizard.Mount(e, withPermission(s.evidenceStep())))

	uploadLimit := 2*s.cfg.EvidenceMaxBytes + 1<<20
	r.With(limitBody(uploadLimit)).Handle(p.EvidenceUpload,
		releaseMultipart(wizard.Mount(e, withPermission(s.evidenceUploadStep()))))
	r.Method(http.MethodPost, p.EvidenceRemove, wizard.Mount(e, withPermission(s.removeEvidenceStep())))

	r.Handle(p.CheckYourAnswers, wizard.Mount(e, s.checkYourAnswersStep()))
	r.Method(http.MethodGet, p.Confirmation, wizard.Mount(e, wizard.Step[forms.Empty]{
		Path:       p.Confirmation,
		Template:   "confirmation",
		Permission: p.Confirmation,
		Extra: func(req *wizard.Request) map[string]any {
			return map[string]any{"Submitted": req.Data.SubmittedAppeal}
		},
	}))
}

// withPermission appends the processor unlocking the step's next page.
func withPermission[F any](step wizard.Step[F]) wizard.Step[F] {
	step.Processors = append(step.Processors, processor.NavigationPermission{Navigation: step.Navigation})
	return step
}

func (s *Server) penaltyReferenceStep() wizard.Step[forms.PenaltyReference] {
	p := s.paths
	return wizard.Step[forms.PenaltyReference]{
		Path:       p.PenaltyReference,
		Template:   "penalty-reference",
		Permission: p.PenaltyReference,
		Navigation: wizard.NavigationFuncs{
			PreviousFunc: func(*wizard.Request) string { return p.Start },
			NextFunc: func(req *wizard.Request) string {
				list := req.Appeal().PenaltyIdentifier.PenaltyList
				if list != nil && len(list.Items) == 1 {
					return p.ReviewPenalty
				}
				return p.SelectPenalty
			},
		},
		Bind:      forms.BindPenaltyReference,
		Validator: forms.PenaltyReferenceValidator(),
		ViewModel: func(a appeal.Appeal) forms.PenaltyReference {
			return forms.PenaltyReference{
				CompanyNumber:    a.PenaltyIdentifier.CompanyNumber,
				PenaltyReference: a.PenaltyIdentifier.UserInputPenaltyReference,
			}
		},
		Resolve: s.resolvePenalties,
		Merge: func(a appeal.Appeal, f forms.PenaltyReference) appeal.Appeal {
			out := a.Clone()
			out.PenaltyIdentifier = appeal.PenaltyIdentifier{
				CompanyName:               f.CompanyName,
				CompanyNumber:             f.CompanyNumber,
				UserInputPenaltyReference: f.PenaltyReference,
				PenaltyList:               f.Penalties,
			}
			if _, ok := out.PenaltyIdentifier.FindPenalty(f.PenaltyReference); ok {
				out.PenaltyIdentifier.PenaltyReference = f.PenaltyReference
			}
			return out
		},
	}
}

// resolvePenalties looks up the company's late filing penalties and its
// name. The typed reference must be one of the company's penalties. A missing
// company name only degrades the pages that show it.
func (s *Server) resolvePenalties(ctx context.Context, req *wizard.Request, f forms.PenaltyReference) (forms.PenaltyReference, error) {
	token, err := req.AccessToken()
	if err != nil {
		return f, err
	}
	list, err := s.deps.Penalties.LatePenalties(ctx, token, f.CompanyNumber)
	if err != nil {
		return f, fmt.Errorf("look up penalties: %w", err)
	}
	if len(list.Items) == 0 {
		log.WithField("company_number", f.CompanyNumber).Warn("app: no penalties found")
		return f, wizard.ErrNoPenalties
	}
	f.Penalties = &list
	if _, ok := (appeal.PenaltyIdentifier{PenaltyList: &list}).FindPenalty(f.PenaltyReference); !ok {
		log.WithFields(log.Fields{
			"company_number":    f.CompanyNumber,
			"penalty_reference": f.PenaltyReference,
		}).Info("app: penalty reference not found for company")
		return f, wizard.Invalid("userInputPenaltyReference", forms.PenaltyNotFoundMessage)
	}

	name, err := s.deps.Companies.CompanyName(ctx, token, f.CompanyNumber)
	if err != nil {
		log.WithError(err).WithField("company_number", f.CompanyNumber).Warn("app: company name lookup failed")
	}
	f.CompanyName = name
	return f, nil
}

func requirePenaltyList(req *wizard.Request) error {
	if req.Appeal().PenaltyIdentifier.PenaltyList == nil {
		return wizard.ErrPenaltyListMissing
	}
	return nil
}

func (s *Server) selectPenaltyStep() wizard.Step[forms.SelectPenalty] {
	p := s.paths
	return wizard.Step[forms.SelectPenalty]{
		Path:         p.SelectPenalty,
		Template:     "select-the-penalty",
		Permission:   p.SelectPenalty,
		Precondition: requirePenaltyList,
		Navigation:   wizard.Static(p.PenaltyReference, p.ReviewPenalty),
		Bind:         forms.BindSelectPenalty,
		Validator:    forms.SelectPenaltyValidator(),
		ViewModel: func(a appeal.Appeal) forms.SelectPenalty {
			return forms.SelectPenalty{SelectPenalty: a.PenaltyIdentifier.PenaltyReference}
		},
		Merge: func(a appeal.Appeal, f forms.SelectPenalty) appeal.Appeal {
			out := a.Clone()
			out.PenaltyIdentifier.PenaltyReference = f.SelectPenalty
			return out
		},
	}
}

func (s *Server) reviewPenaltyStep() wizard.Step[forms.Empty] {
	p := s.paths
	return wizard.Step[forms.Empty]{
		Path:       p.ReviewPenalty,
		Template:   "review-penalty",
		Permission: p.ReviewPenalty,
		Precondition: func(req *wizard.Request) error {
			if err := requirePenaltyList(req); err != nil {
				return err
			}
			id := req.Appeal().PenaltyIdentifier
			if _, ok := id.FindPenalty(id.PenaltyReference); !ok {
				return wizard.ErrPenaltyListMissing
			}
			return nil
		},
		Navigation: wizard.NavigationFuncs{
			PreviousFunc: func(req *wizard.Request) string {
				if list := req.Appeal().PenaltyIdentifier.PenaltyList; list != nil && len(list.Items) > 1 {
					return p.SelectPenalty
				}
				return p.PenaltyReference
			},
			NextFunc: s.afterReview,
		},
		Bind:       forms.BindEmpty,
		Processors: []wizard.Processor{processor.DuplicateAppealCheck{Appeals: s.deps.Appeals}},
		Extra: func(req *wizard.Request) map[string]any {
			id := req.Appeal().PenaltyIdentifier
			penalty, ok := id.FindPenalty(id.PenaltyReference)
			if !ok {
				return nil
			}
			return map[string]any{"Penalty": &penalty}
		},
	}
}

// reasonPage is the first page of a reason's branch.
func (s *Server) reasonPage(reason string) string {
	if reason == appeal.ReasonIllness {
		return s.paths.WhoWasIll
	}
	return s.paths.OtherReason
}

// afterReview skips the reason choice when only one reason is enabled.
func (s *Server) afterReview(req *wizard.Request) string {
	if reasons := req.Features.EnabledReasons(); len(reasons) == 1 {
		return s.reasonPage(reasons[0])
	}
	return s.paths.ChooseReason
}

// beforeReason is the page a reason branch goes back to.
func (s *Server) beforeReason(req *wizard.Request) string {
	if req.Features.ReasonChoice() {
		return s.paths.ChooseReason
	}
	return s.paths.ReviewPenalty
}

func (s *Server) chooseReasonStep() wizard.Step[forms.ChooseReason] {
	p := s.paths
	return wizard.Step[forms.ChooseReason]{
		Path:       p.ChooseReason,
		Template:   "choose-appeal-reason",
		Permission: p.ChooseReason,
		Enabled:    config.Features.ReasonChoice,
		Navigation: wizard.NavigationFuncs{
			PreviousFunc: func(*wizard.Request) string { return p.ReviewPenalty },
			NextFunc: func(req *wizard.Request) string {
				return s.reasonPage(req.Appeal().CurrentReasonType)
			},
		},
		Bind:      forms.BindChooseReason,
		Validator: forms.ChooseReasonValidator(s.cfg.Features),
		ViewModel: func(a appeal.Appeal) forms.ChooseReason {
			return forms.ChooseReason{Reason: a.CurrentReasonType}
		},
		Merge: func(a appeal.Appeal, f forms.ChooseReason) appeal.Appeal {
			return a.SetReason(f.Reason)
		},
		Extra: func(req *wizard.Request) map[string]any {
			return map[string]any{"ReasonOptions": req.Features.EnabledReasons()}
		},
	}
}

func (s *Server) whoWasIllStep() wizard.Step[forms.WhoWasIll] {
	p := s.paths
	return wizard.Step[forms.WhoWasIll]{
		Path:       p.WhoWasIll,
		Template:   "who-was-ill",
		Permission: p.WhoWasIll,
		Enabled:    config.Features.IllnessEnabled,
		Navigation: wizard.Changeable(wizard.NavigationFuncs{
			PreviousFunc: s.beforeReason,
			NextFunc:     func(*wizard.Request) string { return p.IllnessStartDate },
		}, p.CheckYourAnswers),
		Bind:      forms.BindWhoWasIll,
		Validator: forms.WhoWasIllValidator(),
		ViewModel: func(a appeal.Appeal) forms.WhoWasIll {
			if a.Reasons.Illness == nil {
				return forms.WhoWasIll{}
			}
			return forms.WhoWasIll{IllPerson: a.Reasons.Illness.IllPerson, OtherPerson: a.Reasons.Illness.OtherPerson}
		},
		Merge: func(a appeal.Appeal, f forms.WhoWasIll) appeal.Appeal {
			out := a.SetReason(appeal.ReasonIllness)
			out.Reasons.Illness.IllPerson = f.IllPerson
			out.Reasons.Illness.OtherPerson = f.OtherPerson
			return out
		},
		Extra: func(*wizard.Request) map[string]any {
			return map[string]any{"IllPersonOptions": illPersonOptions}
		},
	}
}

func (s *Server) illnessStartDateStep() wizard.Step[forms.IllnessStartDate] {
	p := s.paths
	return wizard.Step[forms.IllnessStartDate]{
		Path:       p.IllnessStartDate,
		Template:   "illness-start-date",
		Permission: p.IllnessStartDate,
		Enabled:    config.Features.IllnessEnabled,
		Navigation: wizard.Changeable(wizard.Static(p.WhoWasIll, p.FurtherInformation), p.CheckYourAnswers),
		Bind:       forms.BindIllnessStartDate,
		Validator:  forms.IllnessStartDateValidator(s.deps.Now),
		ViewModel: func(a appeal.Appeal) forms.IllnessStartDate {
			if a.Reasons.Illness == nil {
				return forms.IllnessStartDate{}
			}
			return forms.IllnessStartDateFromISO(a.Reasons.Illness.IllnessStart)
		},
		Merge: func(a appeal.Appeal, f forms.IllnessStartDate) appeal.Appeal {
			out := a.SetReason(appeal.ReasonIllness)
			out.Reasons.Illness.IllnessStart = f.ISODate()
			return out
		},
	}
}

func (s *Server) furtherInformationStep() wizard.Step[forms.FurtherInformation] {
	p := s.paths
	return wizard.Step[forms.FurtherInformation]{
		Path:       p.FurtherInformation,
		Template:   "further-information",
		Permission: p.FurtherInformation,
		Enabled:    config.Features.IllnessEnabled,
		Navigation: wizard.Changeable(wizard.Static(p.IllnessStartDate, p.Evidence), p.CheckYourAnswers),
		Bind:       forms.BindFurtherInformation,
		Validator:  forms.FurtherInformationValidator(),
		ViewModel: func(a appeal.Appeal) forms.FurtherInformation {
			if a.Reasons.Illness == nil {
				return forms.FurtherInformation{}
			}
			return forms.FurtherInformation{Description: a.Reasons.Illness.IllnessImpactFurtherInformation}
		},
		Merge: func(a appeal.Appeal, f forms.FurtherInformation) appeal.Appeal {
			out := a.SetReason(appeal.ReasonIllness)
			out.Reasons.Illness.IllnessImpactFurtherInformation = f.Description
			return out
		},
	}
}

func (s *Server) otherReasonStep() wizard.Step[forms.OtherReason] {
	p := s.paths
	return wizard.Step[forms.OtherReason]{
		Path:       p.OtherReason,
		Template:   "other-reason",
		Permission: p.OtherReason,
		Enabled: func(f config.Features) bool {
			return f.ReasonEnabled(config.ReasonOther)
		},
		Navigation: wizard.Changeable(wizard.NavigationFuncs{
			PreviousFunc: s.beforeReason,
			NextFunc:     func(*wizard.Request) string { return p.Evidence },
		}, p.CheckYourAnswers),
		Bind:      forms.BindOtherReason,
		Validator: forms.OtherReasonValidator(),
		ViewModel: func(a appeal.Appeal) forms.OtherReason {
			if a.Reasons.Other == nil {
				return forms.OtherReason{}
			}
			return forms.OtherReason{Title: a.Reasons.Other.Title, Description: a.Reasons.Other.Description}
		},
		Merge: func(a appeal.Appeal, f forms.OtherReason) appeal.Appeal {
			out := a.SetReason(appeal.ReasonOther)
			out.Reasons.Other.Title = f.Title
			out.Reasons.Other.Description = f.Description
			return out
		},
	}
}

// requireReason guards the evidence pages: attachments hang off the chosen
// reason, so one must exist.
func requireReason(req *wizard.Request) error {
	if req.Data.Appeal == nil || req.Data.Appeal.CurrentReasonType == "" {
		return wizard.ErrAppealMissing
	}
	return nil
}

// reasonLastPage is the page completing the chosen reason.
func (s *Server) reasonLastPage(req *wizard.Request) string {
	if req.Appeal().CurrentReasonType == appeal.ReasonIllness {
		return s.paths.FurtherInformation
	}
	return s.paths.OtherReason
}

func (s *Server) evidenceStep() wizard.Step[forms.Evidence] {
	p := s.paths
	return wizard.Step[forms.Evidence]{
		Path:         p.Evidence,
		Template:     "evidence",
		Permission:   p.Evidence,
		Precondition: requireReason,
		Navigation: wizard.NavigationFuncs{
			PreviousFunc: func(req *wizard.Request) string {
				if req.ChangeMode() {
					return p.CheckYourAnswers
				}
				return s.reasonLastPage(req)
			},
			NextFunc: func(req *wizard.Request) string {
				if req.HTTP.PostFormValue("evidence") == "yes" {
					return p.EvidenceUpload
				}
				return p.CheckYourAnswers
			},
		},
		Bind:      forms.BindEvidence,
		Validator: forms.EvidenceValidator(),
		ViewModel: func(a appeal.Appeal) forms.Evidence {
			if len(a.Attachments()) > 0 {
				return forms.Evidence{Evidence: "yes"}
			}
			return forms.Evidence{}
		},
	}
}

func (s *Server) evidenceUploadStep() wizard.Step[forms.EvidenceUpload] {
	p := s.paths
	return wizard.Step[forms.EvidenceUpload]{
		Path:         p.EvidenceUpload,
		Template:     "evidence-upload",
		Permission:   p.EvidenceUpload,
		Precondition: requireReason,
		Navigation: wizard.NavigationFuncs{
			PreviousFunc: func(*wizard.Request) string { return p.Evidence },
			NextFunc: func(req *wizard.Request) string {
				if req.HTTP.FormValue("action") == forms.UploadActionAdd {
					return p.EvidenceUpload
				}
				return p.CheckYourAnswers
			},
		},
		Bind:      forms.BindEvidenceUpload(uploadMemory),
		Validator: forms.EvidenceUploadValidator(s.cfg.EvidenceMaxBytes),
		Resolve:   s.storeEvidence,
		Merge: func(a appeal.Appeal, f forms.EvidenceUpload) appeal.Appeal {
			if f.Uploaded == nil {
				return a
			}
			return a.WithAttachment(*f.Uploaded)
		},
	}
}

func (s *Server) storeEvidence(ctx context.Context, req *wizard.Request, f forms.EvidenceUpload) (forms.EvidenceUpload, error) {
	if f.Action != forms.UploadActionAdd || f.File == nil {
		return f, nil
	}
	if existing, ok := findUpload(req.Appeal(), f.File.Filename, f.File.Size); ok {
		log.WithField("attachment_id", existing.ID).Info("app: evidence already uploaded")
		f.Uploaded = &existing
		return f, nil
	}
	file, err := f.File.Open()
	if err != nil {
		return f, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	attachment, err := s.deps.Evidence.Put(ctx, evidence.Object{
		Name:        f.File.Filename,
		ContentType: f.File.Header.Get("Content-Type"),
		Size:        f.File.Size,
		Body:        file,
		Owner:       req.Appeal().PenaltyIdentifier.CompanyNumber,
	})
	if err != nil {
		return f, fmt.Errorf("store evidence: %w", err)
	}
	f.Uploaded = &attachment
	return f, nil
}

// findUpload matches a resubmitted file by name and size.
func findUpload(a appeal.Appeal, name string, size int64) (appeal.Attachment, bool) {
	for _, item := range a.Attachments() {
		if item.Name == name && item.Size == size {
			return item, true
		}
	}
	return appeal.Attachment{}, false
}

func (s *Server) removeEvidenceStep() wizard.Step[forms.RemoveEvidence] {
	p := s.paths
	return wizard.Step[forms.RemoveEvidence]{
		Path:         p.EvidenceRemove,
		Template:     "evidence-upload",
		Permission:   p.EvidenceUpload,
		Precondition: requireReason,
		Navigation:   wizard.Static(p.Evidence, p.EvidenceUpload),
		Bind:         forms.BindRemoveEvidence,
		Validator:    forms.RemoveEvidenceValidator(),
		Resolve: func(ctx context.Context, req *wizard.Request, f forms.RemoveEvidence) (forms.RemoveEvidence, error) {
			if !hasAttachment(req.Appeal(), f.AttachmentID) {
				return f, nil
			}
			if err := s.deps.Evidence.Remove(ctx, f.AttachmentID); err != nil {
				log.WithError(err).WithField("attachment_id", f.AttachmentID).Warn("app: evidence removal failed")
			}
			return f, nil
		},
		Merge: func(a appeal.Appeal, f forms.RemoveEvidence) appeal.Appeal {
			if !hasAttachment(a, f.AttachmentID) {
				return a
			}
			return a.WithoutAttachment(f.AttachmentID)
		},
		Extra: func(*wizard.Request) map[string]any {
			return map[string]any{"FormAction": p.EvidenceUpload}
		},
	}
}

func hasAttachment(a appeal.Appeal, id string) bool {
	for _, item := range a.Attachments() {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) checkYourAnswersStep() wizard.Step[forms.Empty] {
	p := s.paths
	return wizard.Step[forms.Empty]{
		Path:       p.CheckYourAnswers,
		Template:   "check-your-answers",
		Permission: p.CheckYourAnswers,
		Precondition: func(req *wizard.Request) error {
			if req.Data.Appeal == nil {
				return wizard.ErrAppealMissing
			}
			return nil
		},
		Navigation: wizard.ChangeLinks(wizard.NavigationFuncs{
			PreviousFunc: func(req *wizard.Request) string {
				if len(req.Appeal().Attachments()) > 0 {
					return p.EvidenceUpload
				}
				return p.Evidence
			},
			NextFunc: func(*wizard.Request) string { return p.Confirmation },
		}),
		Bind: forms.BindEmpty,
		Processors: []wizard.Processor{
			processor.DuplicateAppealCheck{Appeals: s.deps.Appeals},
			processor.AppealStorage{Appeals: s.deps.Appeals},
			processor.InternalEmail{
				Sender:       s.deps.Email,
				InternalTeam: s.cfg.InternalTeamEmail,
				IllnessTeam:  s.cfg.IllnessTeamEmail,
			},
			processor.UserConfirmationEmail{Sender: s.deps.Email},
			processor.SessionCleanup{Terminal: p.Confirmation},
		},
	}
}

func limitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// releaseMultipart removes the temporary files of a parsed upload. The
// server only cleans up forms parsed on its own request value, and the
// session middleware hands handlers a copy.
func releaseMultipart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()
		next.ServeHTTP(w, r)
	})
}
