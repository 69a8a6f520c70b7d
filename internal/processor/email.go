package processor

import (
	"context"
	"fmt"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/email"
	"lfpappeals/web/internal/wizard"
)

// InternalEmail tells the team handling the reason about a new appeal.
// Illness appeals go to the illness team when one is configured.
type InternalEmail struct {
	Sender       email.Sender
	InternalTeam string
	IllnessTeam  string
	FailOnError  bool
}

func (InternalEmail) Name() string { return "InternalEmail" }

func (p InternalEmail) Process(ctx context.Context, req *wizard.Request) error {
	a := req.Data.Appeal
	if a == nil {
		return wizard.ErrAppealMissing
	}
	to := p.InternalTeam
	if a.CurrentReasonType == appeal.ReasonIllness && p.IllnessTeam != "" {
		to = p.IllnessTeam
	}
	msg := email.Message{
		To:      to,
		Subject: fmt.Sprintf("Appeal submitted - %s", a.PenaltyIdentifier.CompanyNumber),
		Body: email.Body{
			TemplateName: email.TemplateInternalNotification,
			TemplateData: notificationData(*a, signInEmail(req)),
		},
	}
	if err := p.Sender.Send(ctx, msg); err != nil {
		return swallow(p.Name(), p.FailOnError, a, err)
	}
	return nil
}

// UserConfirmationEmail confirms the submission to the signed-in user.
type UserConfirmationEmail struct {
	Sender      email.Sender
	FailOnError bool
}

func (UserConfirmationEmail) Name() string { return "UserConfirmationEmail" }

func (p UserConfirmationEmail) Process(ctx context.Context, req *wizard.Request) error {
	a := req.Data.Appeal
	if a == nil {
		return wizard.ErrAppealMissing
	}
	id := a.PenaltyIdentifier
	msg := email.Message{
		To:      signInEmail(req),
		Subject: fmt.Sprintf("Confirmation of your appeal - %s", id.PenaltyReference),
		Body: email.Body{
			TemplateName: email.TemplateConfirmation,
			TemplateData: email.ConfirmationData{
				CompanyName:      id.CompanyName,
				CompanyNumber:    id.CompanyNumber,
				PenaltyReference: id.PenaltyReference,
				UserEmail:        signInEmail(req),
			},
		},
	}
	if err := p.Sender.Send(ctx, msg); err != nil {
		return swallow(p.Name(), p.FailOnError, a, err)
	}
	return nil
}

func signInEmail(req *wizard.Request) string {
	if req.Session == nil || req.Session.SignIn == nil {
		return ""
	}
	return req.Session.SignIn.Email
}

func notificationData(a appeal.Appeal, userEmail string) email.NotificationData {
	data := email.NotificationData{
		AppealID:         a.ID,
		CompanyName:      a.PenaltyIdentifier.CompanyName,
		CompanyNumber:    a.PenaltyIdentifier.CompanyNumber,
		PenaltyReference: a.PenaltyIdentifier.PenaltyReference,
		UserEmail:        userEmail,
	}
	switch {
	case a.CurrentReasonType == appeal.ReasonIllness && a.Reasons.Illness != nil:
		illness := a.Reasons.Illness
		data.Reason = "Illness"
		who := illness.IllPerson
		if illness.OtherPerson != "" {
			who = illness.OtherPerson
		}
		data.Details = []email.Detail{
			{Label: "Who was ill", Value: who},
			{Label: "Illness start date", Value: illness.IllnessStart},
			{Label: "How this affected filing", Value: illness.IllnessImpactFurtherInformation},
		}
	case a.Reasons.Other != nil:
		data.Reason = "Other"
		data.Details = []email.Detail{
			{Label: "Title", Value: a.Reasons.Other.Title},
			{Label: "Description", Value: a.Reasons.Other.Description},
		}
	}
	for _, attachment := range a.Attachments() {
		data.Attachments = append(data.Attachments, attachment.Name)
	}
	return data
}
