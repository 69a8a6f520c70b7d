// Package forms holds the per-page form bodies, how they are read from a
// request and the validators that check them.
package forms

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"lfpappeals/web/internal/appeal"
)

type PenaltyReference struct {
	CompanyNumber    string `form:"companyNumber" validate:"required,companynumber"`
	PenaltyReference string `form:"userInputPenaltyReference" validate:"required,penaltyref"`
	// Penalties and CompanyName are filled by the lookups once the form is
	// valid.
	Penalties   *appeal.PenaltyList `form:"-" validate:"-"`
	CompanyName string              `form:"-" validate:"-"`
}

func BindPenaltyReference(r *http.Request, _ appeal.Appeal) (PenaltyReference, error) {
	if err := r.ParseForm(); err != nil {
		return PenaltyReference{}, err
	}
	return PenaltyReference{
		CompanyNumber:    appeal.SanitizeCompanyNumber(r.PostFormValue("companyNumber")),
		PenaltyReference: strings.ToUpper(strings.TrimSpace(r.PostFormValue("userInputPenaltyReference"))),
	}, nil
}

type SelectPenalty struct {
	SelectPenalty string   `form:"selectPenalty" validate:"required"`
	Available     []string `form:"-" validate:"-"`
}

func BindSelectPenalty(r *http.Request, current appeal.Appeal) (SelectPenalty, error) {
	if err := r.ParseForm(); err != nil {
		return SelectPenalty{}, err
	}
	form := SelectPenalty{SelectPenalty: strings.TrimSpace(r.PostFormValue("selectPenalty"))}
	if list := current.PenaltyIdentifier.PenaltyList; list != nil {
		for _, item := range list.Items {
			form.Available = append(form.Available, item.ID)
		}
	}
	return form, nil
}

// Empty is the body of pages that only confirm and continue.
type Empty struct{}

func BindEmpty(r *http.Request, _ appeal.Appeal) (Empty, error) {
	return Empty{}, r.ParseForm()
}

type ChooseReason struct {
	Reason string `form:"reason" validate:"required,oneof=illness other"`
}

func BindChooseReason(r *http.Request, _ appeal.Appeal) (ChooseReason, error) {
	if err := r.ParseForm(); err != nil {
		return ChooseReason{}, err
	}
	return ChooseReason{Reason: strings.TrimSpace(r.PostFormValue("reason"))}, nil
}

type WhoWasIll struct {
	IllPerson   string `form:"illPerson" validate:"required,oneof=director accountant family employee someoneElse"`
	OtherPerson string `form:"otherPerson" validate:"required_if=IllPerson someoneElse,max=100"`
}

func BindWhoWasIll(r *http.Request, _ appeal.Appeal) (WhoWasIll, error) {
	if err := r.ParseForm(); err != nil {
		return WhoWasIll{}, err
	}
	form := WhoWasIll{IllPerson: strings.TrimSpace(r.PostFormValue("illPerson"))}
	if form.IllPerson == "someoneElse" {
		form.OtherPerson = strings.TrimSpace(r.PostFormValue("otherPerson"))
	}
	return form, nil
}

type IllnessStartDate struct {
	Day   string `form:"startDay" validate:"required,numeric,max=2"`
	Month string `form:"startMonth" validate:"required,numeric,max=2"`
	Year  string `form:"startYear" validate:"required,numeric,len=4"`
}

func BindIllnessStartDate(r *http.Request, _ appeal.Appeal) (IllnessStartDate, error) {
	if err := r.ParseForm(); err != nil {
		return IllnessStartDate{}, err
	}
	return IllnessStartDate{
		Day:   strings.TrimSpace(r.PostFormValue("startDay")),
		Month: strings.TrimSpace(r.PostFormValue("startMonth")),
		Year:  strings.TrimSpace(r.PostFormValue("startYear")),
	}, nil
}

// ISODate renders the date as YYYY-MM-DD. Callers validate first.
func (f IllnessStartDate) ISODate() string {
	day, _ := strconv.Atoi(f.Day)
	month, _ := strconv.Atoi(f.Month)
	year, _ := strconv.Atoi(f.Year)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// IllnessStartDateFromISO splits a stored YYYY-MM-DD date back into fields.
func IllnessStartDateFromISO(value string) IllnessStartDate {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return IllnessStartDate{}
	}
	return IllnessStartDate{Day: parts[2], Month: parts[1], Year: parts[0]}
}

type FurtherInformation struct {
	Description string `form:"description" validate:"required,max=10000"`
}

func BindFurtherInformation(r *http.Request, _ appeal.Appeal) (FurtherInformation, error) {
	if err := r.ParseForm(); err != nil {
		return FurtherInformation{}, err
	}
	return FurtherInformation{Description: strings.TrimSpace(r.PostFormValue("description"))}, nil
}

type OtherReason struct {
	Title       string `form:"title" validate:"required,max=100"`
	Description string `form:"description" validate:"required,max=10000"`
}

func BindOtherReason(r *http.Request, _ appeal.Appeal) (OtherReason, error) {
	if err := r.ParseForm(); err != nil {
		return OtherReason{}, err
	}
	return OtherReason{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}, nil
}

type Evidence struct {
	Evidence string `form:"evidence" validate:"required,oneof=yes no"`
}

func BindEvidence(r *http.Request, _ appeal.Appeal) (Evidence, error) {
	if err := r.ParseForm(); err != nil {
		return Evidence{}, err
	}
	return Evidence{Evidence: strings.TrimSpace(r.PostFormValue("evidence"))}, nil
}

const (
	UploadActionAdd      = "upload-file"
	UploadActionContinue = "continue"
)

type EvidenceUpload struct {
	Action string                `form:"action" validate:"required,oneof=upload-file continue"`
	File   *multipart.FileHeader `form:"file" validate:"-"`
	// Uploaded is set once the file is in evidence storage.
	Uploaded *appeal.Attachment `form:"-" validate:"-"`
}

// BindEvidenceUpload parses a multipart body, keeping at most maxMemory bytes
// in memory.
func BindEvidenceUpload(maxMemory int64) func(*http.Request, appeal.Appeal) (EvidenceUpload, error) {
	return func(r *http.Request, _ appeal.Appeal) (EvidenceUpload, error) {
		if err := r.ParseMultipartForm(maxMemory); err != nil && err != http.ErrNotMultipart {
			return EvidenceUpload{}, err
		}
		form := EvidenceUpload{Action: strings.TrimSpace(r.FormValue("action"))}
		if r.MultipartForm != nil {
			if files := r.MultipartForm.File["file"]; len(files) > 0 {
				form.File = files[0]
			}
		}
		return form, nil
	}
}

type RemoveEvidence struct {
	AttachmentID string `form:"attachmentId" validate:"required,uuid"`
}

func BindRemoveEvidence(r *http.Request, _ appeal.Appeal) (RemoveEvidence, error) {
	if err := r.ParseForm(); err != nil {
		return RemoveEvidence{}, err
	}
	return RemoveEvidence{AttachmentID: strings.TrimSpace(r.PostFormValue("attachmentId"))}, nil
}
