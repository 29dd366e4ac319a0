package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/terra-clan/bounty-board/internal/models"
)

// Client is a Go SDK for the bounty-board API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new bounty-board client. token is the wallet's bearer
// token and may be empty for public reads.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a failure reported by the API envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

// IsAlreadyAnnounced reports whether err is the winners-already-selected conflict
func IsAlreadyAnnounced(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "already_announced"
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "not_found"
}

// ListOptions contains options for listing bounties
type ListOptions struct {
	Status     string
	CategoryID string
	Limit      int
	Offset     int
}

// Me describes the calling wallet
type Me struct {
	Wallet  string `json:"wallet"`
	IsAdmin bool   `json:"is_admin"`
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListCategories retrieves all categories
func (c *Client) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var data struct {
		Categories []*models.Category `json:"categories"`
	}
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/categories", nil, &data); err != nil {
		return nil, err
	}
	return data.Categories, nil
}

// ListBounties lists bounties newest first
func (c *Client) ListBounties(ctx context.Context, opts ListOptions) ([]*models.BountyView, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.CategoryID != "" {
		query.Set("category_id", opts.CategoryID)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/bounties"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var data struct {
		Bounties []*models.BountyView `json:"bounties"`
	}
	if _, err := c.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Bounties, nil
}

// GetBounty retrieves a bounty with its status and winners
func (c *Client) GetBounty(ctx context.Context, id string) (*models.BountyView, error) {
	var view models.BountyView
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/bounties/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// CreateBounty publishes a bounty. Requires an admin token.
func (c *Client) CreateBounty(ctx context.Context, req models.CreateBountyRequest) (*models.Bounty, error) {
	var b models.Bounty
	if _, err := c.call(ctx, http.MethodPost, "/api/v1/bounties", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBounty removes a bounty and its submissions. Requires an admin token.
func (c *Client) DeleteBounty(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodDelete, "/api/v1/bounties/"+url.PathEscape(id), nil, nil)
	return err
}

// GetMySubmission returns the caller's entry, or nil when there is none
func (c *Client) GetMySubmission(ctx context.Context, bountyID string) (*models.Submission, error) {
	var sub models.Submission
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/bounties/"+url.PathEscape(bountyID)+"/submission", nil, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, nil
	}
	return &sub, nil
}

// Submit creates or updates the caller's entry. created reports which happened.
func (c *Client) Submit(ctx context.Context, bountyID string, fields models.SubmissionFields) (sub *models.Submission, created bool, err error) {
	sub = &models.Submission{}
	status, err := c.call(ctx, http.MethodPut, "/api/v1/bounties/"+url.PathEscape(bountyID)+"/submission", fields, sub)
	if err != nil {
		return nil, false, err
	}
	return sub, status == http.StatusCreated, nil
}

// ListSubmissions returns every entry of a bounty. Requires an admin token.
func (c *Client) ListSubmissions(ctx context.Context, bountyID string) ([]*models.Submission, error) {
	var data struct {
		Submissions []*models.Submission `json:"submissions"`
	}
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/bounties/"+url.PathEscape(bountyID)+"/submissions", nil, &data); err != nil {
		return nil, err
	}
	return data.Submissions, nil
}

// AnnounceWinners commits the winner selection. Requires an admin token.
func (c *Client) AnnounceWinners(ctx context.Context, bountyID string, winners models.WinnerAssignment) (*models.BountyView, error) {
	var view models.BountyView
	req := models.AnnounceWinnersRequest{Winners: winners}
	if _, err := c.call(ctx, http.MethodPost, "/api/v1/bounties/"+url.PathEscape(bountyID)+"/winners", req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Me returns the calling wallet and whether it is an admin
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListAdminWallets returns the admin allow-list. Requires an admin token.
func (c *Client) ListAdminWallets(ctx context.Context) ([]*models.AdminWallet, error) {
	var data struct {
		Wallets []*models.AdminWallet `json:"wallets"`
	}
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/admin/wallets", nil, &data); err != nil {
		return nil, err
	}
	return data.Wallets, nil
}

// ExportBounty streams the payout spreadsheet into w. Requires an admin token.
func (c *Client) ExportBounty(ctx context.Context, bountyID string, w io.Writer) error {
	status, body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/bounties/"+url.PathEscape(bountyID)+"/export.xlsx", nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return decodeError(status, body)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return decodeError(status, body)
	}
	return nil
}

// call sends payload as JSON and decodes the envelope data into out
func (c *Client) call(ctx context.Context, method, path string, payload, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	status, respBody, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	if status >= 400 {
		return status, decodeError(status, respBody)
	}

	if out == nil {
		return status, nil
	}

	result := envelope[json.RawMessage]{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return status, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return status, fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return status, nil
}

func decodeError(status int, body []byte) error {
	result := envelope[json.RawMessage]{}
	if err := json.Unmarshal(body, &result); err != nil || result.Error == nil {
		return &APIError{StatusCode: status, Code: "http_error", Message: string(body)}
	}
	return &APIError{StatusCode: status, Code: result.Error.Code, Message: result.Error.Message}
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
