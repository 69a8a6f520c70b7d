// Package appeal holds the appeal aggregate built up page by page and the
// session envelope it travels in.
package appeal

const (
	ReasonIllness = "illness"
	ReasonOther   = "other"
)

// ApplicationDataKey is the session extra-data key the envelope is stored under.
const ApplicationDataKey = "appeals"

type Penalty struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	MadeUpDate      string  `json:"madeUpDate"`
	TransactionDate string  `json:"transactionDate"`
	OriginalAmount  float64 `json:"originalAmount"`
	Outstanding     float64 `json:"outstanding"`
	Reason          string  `json:"reason,omitempty"`
}

type PenaltyList struct {
	TotalResults int       `json:"totalResults"`
	Items        []Penalty `json:"items"`
}

type PenaltyIdentifier struct {
	CompanyName               string       `json:"companyName,omitempty"`
	CompanyNumber             string       `json:"companyNumber"`
	PenaltyReference          string       `json:"penaltyReference"`
	UserInputPenaltyReference string       `json:"userInputPenaltyReference,omitempty"`
	PenaltyList               *PenaltyList `json:"penaltyList,omitempty"`
}

// FindPenalty looks a penalty up by reference in the resolved list.
func (p PenaltyIdentifier) FindPenalty(reference string) (Penalty, bool) {
	if p.PenaltyList == nil {
		return Penalty{}, false
	}
	for _, item := range p.PenaltyList.Items {
		if item.ID == reference {
			return item, true
		}
	}
	return Penalty{}, false
}

type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

type Illness struct {
	IllPerson                       string       `json:"illPerson,omitempty"`
	OtherPerson                     string       `json:"otherPerson,omitempty"`
	IllnessStart                    string       `json:"illnessStart,omitempty"`
	ContinuedIllness                *bool        `json:"continuedIllness,omitempty"`
	IllnessEnd                      string       `json:"illnessEnd,omitempty"`
	IllnessImpactFurtherInformation string       `json:"illnessImpactFurtherInformation,omitempty"`
	Attachments                     []Attachment `json:"attachments,omitempty"`
}

type OtherReason struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Reasons struct {
	Illness *Illness     `json:"illness,omitempty"`
	Other   *OtherReason `json:"other,omitempty"`
}

type CreatedBy struct {
	ID           string `json:"id,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type Appeal struct {
	ID                string            `json:"id,omitempty"`
	PenaltyIdentifier PenaltyIdentifier `json:"penaltyIdentifier"`
	Reasons           Reasons           `json:"reasons"`
	CurrentReasonType string            `json:"currentReasonType,omitempty"`
	CreatedBy         *CreatedBy        `json:"createdBy,omitempty"`
}

type Navigation struct {
	Permissions []string `json:"permissions"`
}

type ApplicationData struct {
	Appeal          *Appeal    `json:"appeal,omitempty"`
	Navigation      Navigation `json:"navigation"`
	SubmittedAppeal *Appeal    `json:"submittedAppeal,omitempty"`
}

// CurrentAppeal returns a copy of the in-progress appeal, or an empty one.
func (d *ApplicationData) CurrentAppeal() Appeal {
	if d == nil || d.Appeal == nil {
		return Appeal{}
	}
	return d.Appeal.Clone()
}
