package forms

import (
	"strconv"
	"time"

	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/validation"
)

// PenaltyNotFoundMessage is shown when a well-formed reference is not one of
// the company's penalties.
const PenaltyNotFoundMessage = "The penalty reference does not match a penalty for this company"

var earliestIllnessStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func PenaltyReferenceValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"companyNumber.required":               "You must enter a company number",
		"companyNumber.companynumber":          "You must enter your full eight character company number",
		"userInputPenaltyReference.required":   "You must enter a penalty reference number",
		"userInputPenaltyReference.penaltyref": "Enter your penalty reference number exactly as shown on your penalty notice",
	})
}

func SelectPenaltyValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"selectPenalty": "Select the penalty you want to appeal",
	}, func(form any, result *validation.Result) {
		f, ok := form.(SelectPenalty)
		if !ok || f.SelectPenalty == "" {
			return
		}
		for _, id := range f.Available {
			if id == f.SelectPenalty {
				return
			}
		}
		result.Add("selectPenalty", "Select the penalty you want to appeal")
	})
}

// ChooseReasonValidator only accepts the reasons features has enabled.
func ChooseReasonValidator(features config.Features) validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"reason": "You must select a reason",
	}, func(form any, result *validation.Result) {
		f, ok := form.(ChooseReason)
		if ok && !features.ReasonEnabled(f.Reason) {
			result.Add("reason", "You must select a reason")
		}
	})
}

func WhoWasIllValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"illPerson":               "You must select a person",
		"otherPerson.required_if": "You must tell us more information",
		"otherPerson.max":         "The information must be 100 characters or less",
	})
}

// IllnessStartDateValidator checks the date is real and lies between
// 1 January 2000 and now().
func IllnessStartDateValidator(now func() time.Time) validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"startDay.required":   "You must enter a day",
		"startMonth.required": "You must enter a month",
		"startYear.required":  "You must enter a year",
		"startDay":            "You must enter a real date",
		"startMonth":          "You must enter a real date",
		"startYear":           "You must enter a real date",
	}, func(form any, result *validation.Result) {
		f, ok := form.(IllnessStartDate)
		if !ok || !result.Valid() {
			return
		}
		date, valid := calendarDate(f.Day, f.Month, f.Year)
		switch {
		case !valid:
			result.Add("illnessStart", "You must enter a real date")
		case date.After(now()):
			result.Add("illnessStart", "Start date must be today or in the past")
		case date.Before(earliestIllnessStart):
			result.Add("illnessStart", "Start date must be after 1 January 2000")
		}
	})
}

func calendarDate(day, month, year string) (time.Time, bool) {
	d, errDay := strconv.Atoi(day)
	m, errMonth := strconv.Atoi(month)
	y, errYear := strconv.Atoi(year)
	if errDay != nil || errMonth != nil || errYear != nil {
		return time.Time{}, false
	}
	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if date.Day() != d || int(date.Month()) != m || date.Year() != y {
		return time.Time{}, false
	}
	return date, true
}

func FurtherInformationValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"description.required": "You must tell us how this affected your ability to file on time",
		"description.max":      "The information must be 10000 characters or less",
	})
}

func OtherReasonValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"title.required":       "You must give your reason a title",
		"title.max":            "The title must be 100 characters or less",
		"description.required": "You must give us a description",
		"description.max":      "The description must be 10000 characters or less",
	})
}

func EvidenceValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"evidence": "You must tell us if you want to upload evidence",
	})
}

var allowedEvidenceTypes = map[string]bool{
	"application/pdf":                                                         true,
	"image/jpeg":                                                              true,
	"image/png":                                                               true,
	"image/gif":                                                               true,
	"text/plain":                                                              true,
	"application/msword":                                                      true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// EvidenceUploadValidator requires a file of an accepted type no larger than
// maxBytes when the user asks to add one.
func EvidenceUploadValidator(maxBytes int64) validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"action": "Select a file to upload",
	}, func(form any, result *validation.Result) {
		f, ok := form.(EvidenceUpload)
		if !ok || f.Action != UploadActionAdd {
			return
		}
		switch {
		case f.File == nil || f.File.Size == 0:
			result.Add("file", "You must add a document or click “Continue”")
		case f.File.Size > maxBytes:
			result.Add("file", "File size must be smaller than "+strconv.FormatInt(maxBytes/(1024*1024), 10)+"MB")
		case !allowedEvidenceTypes[f.File.Header.Get("Content-Type")]:
			result.Add("file", "The selected file must be a TXT, DOC, PDF, JPEG, GIF or PNG")
		}
	})
}

func RemoveEvidenceValidator() validation.Validator {
	return validation.NewTagValidator(map[string]string{
		"attachmentId": "Select a file to remove",
	})
}
