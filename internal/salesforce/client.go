package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
)

const DefaultAPIVersion = "59.0"

type ClientConfig struct {
	// LoginURL is the token endpoint host, e.g. https://login.salesforce.com.
	LoginURL      string
	ClientId      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string
	APIVersion    string
}

// Client talks to the Salesforce REST API. SignIn must be called before any
// query; it is idempotent and safe to call again mid-session.
type Client struct {
	http       *resty.Client
	cfg        ClientConfig
	apiVersion string
}

func NewClient(cfg ClientConfig) *Client {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	return &Client{
		http:       resty.New(),
		cfg:        cfg,
		apiVersion: apiVersion,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

// SignIn performs the OAuth2 username-password token exchange and points the
// client at the instance URL returned by the token endpoint.
func (c *Client) SignIn(ctx context.Context) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "password",
			"client_id":     c.cfg.ClientId,
			"client_secret": c.cfg.ClientSecret,
			"username":      c.cfg.Username,
			"password":      c.cfg.Password + c.cfg.SecurityToken,
		}).
		Post(strings.TrimSuffix(c.cfg.LoginURL, "/") + "/services/oauth2/token")
	if err != nil {
		return fmt.Errorf("failed to reach salesforce token endpoint: %w", err)
	}

	if !res.IsSuccess() {
		slog.Error("salesforce sign in rejected", "status_code", res.StatusCode(), "body", res.String())
		return fmt.Errorf("salesforce sign in failed with status %d", res.StatusCode())
	}

	var token tokenResponse
	if err := json.Unmarshal(res.Body(), &token); err != nil {
		return fmt.Errorf("failed to parse salesforce token response: %w", err)
	}
	if token.AccessToken == "" || token.InstanceURL == "" {
		return fmt.Errorf("salesforce token response missing access token or instance url")
	}

	c.http.SetBaseURL(strings.TrimSuffix(token.InstanceURL, "/"))
	c.http.SetAuthToken(token.AccessToken)

	slog.Info("signed in to salesforce", "instance_url", token.InstanceURL)

	return nil
}

type describeResponse struct {
	Fields []struct {
		Name string `json:"name"`
	} `json:"fields"`
}

// ListFields returns the full field set of the given object type.
func (c *Client) ListFields(ctx context.Context, object string) ([]string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/services/data/v%s/sobjects/%s/describe", c.apiVersion, object))
	if err != nil {
		return nil, fmt.Errorf("failed to describe object %s: %w", object, err)
	}

	if !res.IsSuccess() {
		slog.Error("salesforce describe rejected", "object", object, "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("describe of object %s failed with status %d", object, res.StatusCode())
	}

	var describe describeResponse
	if err := json.Unmarshal(res.Body(), &describe); err != nil {
		return nil, fmt.Errorf("failed to parse describe response for object %s: %w", object, err)
	}

	fields := make([]string, 0, len(describe.Fields))
	for _, field := range describe.Fields {
		fields = append(fields, field.Name)
	}

	return fields, nil
}

// FetchObject retrieves all records of the given object type restricted to the
// given field list.
func (c *Client) FetchObject(ctx context.Context, object string, fields []string) (*QueryResult, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("cannot fetch object %s with an empty field list", object)
	}

	soql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(fields, ", "), object)

	return c.RunQuery(ctx, soql)
}

// RunQuery executes a raw SOQL query, following the continuation URL until the
// result set is complete.
func (c *Client) RunQuery(ctx context.Context, query string) (*QueryResult, error) {
	page, err := c.queryPage(ctx, fmt.Sprintf("/services/data/v%s/query", c.apiVersion), query)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		TotalSize: page.TotalSize,
		Done:      true,
		Records:   page.Records,
	}

	for !page.Done && page.NextRecordsURL != "" {
		page, err = c.queryPage(ctx, page.NextRecordsURL, "")
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, page.Records...)
	}

	return result, nil
}

func (c *Client) queryPage(ctx context.Context, path, query string) (*QueryResult, error) {
	req := c.http.R().SetContext(ctx)
	if query != "" {
		req.SetQueryParam("q", query)
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to execute salesforce query: %w", err)
	}

	if !res.IsSuccess() {
		slog.Error("salesforce query rejected", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("salesforce query failed with status %d", res.StatusCode())
	}

	var page QueryResult
	if err := json.Unmarshal(res.Body(), &page); err != nil {
		return nil, fmt.Errorf("failed to parse salesforce query response: %w", err)
	}

	return &page, nil
}

// WriteRecords serializes records to a local file. It is part of the query
// hook so that callers hand off rows without owning the output format.
func (c *Client) WriteRecords(records []Record, path string, opts WriteOptions) error {
	return WriteRecords(records, path, opts)
}
