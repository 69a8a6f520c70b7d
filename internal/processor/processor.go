// Package processor holds the side effects run after a page is merged:
// unlocking the next page, checking for duplicates, storing the appeal,
// notifying people and closing the session's appeal.
package processor

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/metrics"
	"lfpappeals/web/internal/wizard"
)

// AppealsAPI is the part of the appeals API the processors call.
type AppealsAPI interface {
	HasExistingAppeal(ctx context.Context, token, companyNumber, penaltyReference string) (bool, error)
	CreateAppeal(ctx context.Context, token string, a appeal.Appeal) (string, error)
}

// NavigationPermission unlocks the page the step redirects to.
type NavigationPermission struct {
	Navigation wizard.Navigation
}

func (NavigationPermission) Name() string { return "NavigationPermission" }

func (p NavigationPermission) Process(_ context.Context, req *wizard.Request) error {
	*req.Data = appeal.GrantPermission(*req.Data, p.Navigation.Next(req))
	return nil
}

// DuplicateAppealCheck stops the flow when an appeal already exists for the
// selected penalty.
type DuplicateAppealCheck struct {
	Appeals AppealsAPI
}

func (DuplicateAppealCheck) Name() string { return "DuplicateAppealCheck" }

func (p DuplicateAppealCheck) Process(ctx context.Context, req *wizard.Request) error {
	token, err := req.AccessToken()
	if err != nil {
		return err
	}
	if req.Data.Appeal == nil {
		return wizard.ErrAppealMissing
	}
	id := req.Data.Appeal.PenaltyIdentifier
	exists, err := p.Appeals.HasExistingAppeal(ctx, token, id.CompanyNumber, id.PenaltyReference)
	if err != nil {
		return fmt.Errorf("check existing appeal: %w", err)
	}
	if exists {
		log.WithFields(log.Fields{
			"company_number":    id.CompanyNumber,
			"penalty_reference": id.PenaltyReference,
		}).Info("processor: appeal already submitted")
		return wizard.ErrDuplicateAppeal
	}
	return nil
}

// AppealStorage submits the appeal to the appeals API and records the id it
// was stored under.
type AppealStorage struct {
	Appeals AppealsAPI
}

func (AppealStorage) Name() string { return "AppealStorage" }

func (p AppealStorage) Process(ctx context.Context, req *wizard.Request) error {
	token, err := req.AccessToken()
	if err != nil {
		return err
	}
	if req.Data.Appeal == nil {
		return wizard.ErrAppealMissing
	}
	a := req.Data.Appeal.Clone()
	a.CreatedBy = &appeal.CreatedBy{
		ID:           req.Session.SignIn.UserID,
		EmailAddress: req.Session.SignIn.Email,
	}
	id, err := p.Appeals.CreateAppeal(ctx, token, a)
	if err != nil {
		return fmt.Errorf("store appeal: %w", err)
	}
	a.ID = id
	req.Data.Appeal = &a
	log.WithFields(log.Fields{
		"appeal_id":      id,
		"company_number": a.PenaltyIdentifier.CompanyNumber,
	}).Info("processor: appeal stored")
	return nil
}

// SessionCleanup closes the appeal: it becomes the submitted appeal and only
// the terminal page stays reachable.
type SessionCleanup struct {
	Terminal string
}

func (SessionCleanup) Name() string { return "SessionCleanup" }

func (p SessionCleanup) Process(_ context.Context, req *wizard.Request) error {
	*req.Data = appeal.Submit(*req.Data, p.Terminal)
	return nil
}

// swallow records a failed processor and returns err only when the failure
// must stop the flow.
func swallow(name string, failOnError bool, a *appeal.Appeal, err error) error {
	metrics.RecordProcessorFailure(name, failOnError)
	entry := log.WithError(err).WithField("processor", name)
	if a != nil {
		entry = entry.WithField("appeal_id", a.ID)
	}
	if failOnError {
		entry.Error("processor: failed")
		return err
	}
	entry.Warn("processor: failed, continuing")
	return nil
}
