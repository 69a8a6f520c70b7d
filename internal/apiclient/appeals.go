package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"

	json "github.com/goccy/go-json"

	"lfpappeals/web/internal/appeal"
)

var ErrMissingLocation = errors.New("created appeal has no location")

type AppealsClient struct {
	base
}

func NewAppealsClient(baseURL string, client *http.Client) *AppealsClient {
	return &AppealsClient{base: newBase(baseURL, client)}
}

func appealsPath(companyNumber string) string {
	return "/companies/" + url.PathEscape(companyNumber) + "/appeals"
}

// CreateAppeal stores the appeal and returns the id taken from the last
// segment of the Location header.
func (c *AppealsClient) CreateAppeal(ctx context.Context, token string, a appeal.Appeal) (string, error) {
	p := appealsPath(a.PenaltyIdentifier.CompanyNumber)
	resp, err := c.requestJSON(ctx, http.MethodPost, p, token, a)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusCreated {
		return "", c.unexpected(http.MethodPost, p, resp)
	}
	location := resp.header.Get("Location")
	if location == "" {
		return "", ErrMissingLocation
	}
	id := path.Base(location)
	if id == "" || id == "/" || id == "." {
		return "", fmt.Errorf("%w: %q", ErrMissingLocation, location)
	}
	return id, nil
}

// HasExistingAppeal reports whether an appeal was already submitted for the
// penalty.
func (c *AppealsClient) HasExistingAppeal(ctx context.Context, token, companyNumber, penaltyReference string) (bool, error) {
	p := appealsPath(companyNumber) + "?penaltyReference=" + url.QueryEscape(penaltyReference)
	resp, err := c.requestJSON(ctx, http.MethodGet, p, token, nil)
	if err != nil {
		return false, err
	}
	switch resp.status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.unexpected(http.MethodGet, p, resp)
	}
}

type PenaltiesClient struct {
	base
}

func NewPenaltiesClient(baseURL string, client *http.Client) *PenaltiesClient {
	return &PenaltiesClient{base: newBase(baseURL, client)}
}

// LatePenalties lists the company's open late filing penalties. A company
// the API does not know has no penalties.
func (c *PenaltiesClient) LatePenalties(ctx context.Context, token, companyNumber string) (appeal.PenaltyList, error) {
	p := "/company/" + url.PathEscape(companyNumber) + "/penalties/late-filing"
	resp, err := c.requestJSON(ctx, http.MethodGet, p, token, nil)
	if err != nil {
		return appeal.PenaltyList{}, err
	}
	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return appeal.PenaltyList{}, nil
	default:
		return appeal.PenaltyList{}, c.unexpected(http.MethodGet, p, resp)
	}
	var list appeal.PenaltyList
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return appeal.PenaltyList{}, fmt.Errorf("decode penalties: %w", err)
	}
	return list, nil
}

type CompanyProfileClient struct {
	base
}

func NewCompanyProfileClient(baseURL string, client *http.Client) *CompanyProfileClient {
	return &CompanyProfileClient{base: newBase(baseURL, client)}
}

type companyProfile struct {
	CompanyName   string `json:"company_name"`
	CompanyNumber string `json:"company_number"`
}

func (c *CompanyProfileClient) CompanyName(ctx context.Context, token, companyNumber string) (string, error) {
	p := "/company/" + url.PathEscape(companyNumber)
	resp, err := c.requestJSON(ctx, http.MethodGet, p, token, nil)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", c.unexpected(http.MethodGet, p, resp)
	}
	var profile companyProfile
	if err := json.Unmarshal(resp.body, &profile); err != nil {
		return "", fmt.Errorf("decode company profile: %w", err)
	}
	return profile.CompanyName, nil
}
