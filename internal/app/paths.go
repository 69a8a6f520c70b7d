package app

// Root is the prefix every wizard page lives under.
const Root = "/appeal-a-penalty"

// Paths are the wizard page URIs. Each one doubles as the navigation
// permission token of its page.
type Paths struct {
	Start              string
	PenaltyReference   string
	SelectPenalty      string
	ReviewPenalty      string
	ChooseReason       string
	WhoWasIll          string
	IllnessStartDate   string
	FurtherInformation string
	OtherReason        string
	Evidence           string
	EvidenceUpload     string
	EvidenceRemove     string
	CheckYourAnswers   string
	Confirmation       string
}

func NewPaths(root string) Paths {
	return Paths{
		Start:              root,
		PenaltyReference:   root + "/penalty-reference",
		SelectPenalty:      root + "/select-the-penalty",
		ReviewPenalty:      root + "/review-penalty",
		ChooseReason:       root + "/choose-appeal-reason",
		WhoWasIll:          root + "/illness/who-was-ill",
		IllnessStartDate:   root + "/illness/illness-start-date",
		FurtherInformation: root + "/illness/further-information",
		OtherReason:        root + "/other-reason",
		Evidence:           root + "/evidence",
		EvidenceUpload:     root + "/evidence-upload",
		EvidenceRemove:     root + "/evidence-upload/remove",
		CheckYourAnswers:   root + "/check-your-answers",
		Confirmation:       root + "/confirmation",
	}
}
