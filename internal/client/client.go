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
	"strings"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Details []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Message, e.Status, strings.Join(parts, "; "))
}

// Client talks to the product API on behalf of the session held by its
// controller. A 401 from any authenticated call destroys that session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   *session.Controller
	lg         *zap.SugaredLogger
}

func New(baseURL string, sessions *session.Controller, lg *zap.SugaredLogger) *Client {
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		sessions: sessions,
		lg:       lg,
	}
}

// Response types matching the API

type AuthResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    domain.PublicUser `json:"user"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`
}

type ProductQuery struct {
	Search    string
	SortBy    string
	SortOrder string
}

type ProductList struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

type ProductInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Image       *string  `json:"image,omitempty"`
}

type AuditQuery struct {
	Page       int
	Limit      int
	UserID     string
	Action     string
	EntityType string
	DateFrom   string
	DateTo     string
}

type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalItems      int64 `json:"totalItems"`
	ItemsPerPage    int   `json:"itemsPerPage"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

type AuditPage struct {
	AuditLogs  []domain.AuditEntry `json:"auditLogs"`
	Pagination Pagination          `json:"pagination"`
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, false, &result); err != nil {
		return nil, err
	}
	if _, err := c.sessions.Begin(result.Token, result.User); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login verifies credentials and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var result AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, false, &result); err != nil {
		return nil, err
	}
	if _, err := c.sessions.Begin(result.Token, result.User); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Me(ctx context.Context) (*domain.PublicUser, error) {
	var result struct {
		User domain.PublicUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, true, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductList, error) {
	params := url.Values{}
	setIf(params, "search", q.Search)
	setIf(params, "sortBy", q.SortBy)
	setIf(params, "sortOrder", q.SortOrder)

	var result ProductList
	if err := c.do(ctx, http.MethodGet, withQuery("/products", params), nil, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var result struct {
		Product domain.Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/"+id.String(), nil, true, &result); err != nil {
		return nil, err
	}
	return &result.Product, nil
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	var result struct {
		Product domain.Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPost, "/products", in, true, &result); err != nil {
		return nil, err
	}
	return &result.Product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*domain.Product, error) {
	var result struct {
		Product domain.Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPut, "/products/"+id.String(), in, true, &result); err != nil {
		return nil, err
	}
	return &result.Product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/products/"+id.String(), nil, true, nil)
}

func (c *Client) ListAudit(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	var result AuditPage
	if err := c.do(ctx, http.MethodGet, withQuery("/audit", q.values()), nil, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListUserAudit(ctx context.Context, userID uuid.UUID, page, limit int) (*AuditPage, error) {
	q := AuditQuery{Page: page, Limit: limit}
	var result AuditPage
	if err := c.do(ctx, http.MethodGet, withQuery("/audit/user/"+userID.String(), q.values()), nil, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetAudit(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	var result struct {
		AuditLog domain.AuditEntry `json:"auditLog"`
	}
	if err := c.do(ctx, http.MethodGet, "/audit/"+id.String(), nil, true, &result); err != nil {
		return nil, err
	}
	return &result.AuditLog, nil
}

func (c *Client) AuditStats(ctx context.Context) (*domain.AuditStats, error) {
	var result domain.AuditStats
	if err := c.do(ctx, http.MethodGet, "/audit/stats", nil, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (q AuditQuery) values() url.Values {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setIf(params, "userId", q.UserID)
	setIf(params, "action", q.Action)
	setIf(params, "entityType", q.EntityType)
	setIf(params, "dateFrom", q.DateFrom)
	setIf(params, "dateTo", q.DateTo)
	return params
}

// HTTP helpers

func (c *Client) token() (string, error) {
	s, err := c.sessions.Current()
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", domain.ErrNoSession
	}
	return s.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, authenticated bool, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		token, err := c.token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.lg.Debugw("api request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		if authenticated && c.sessions.HandleRejected(resp.StatusCode) {
			c.lg.Debugw("session destroyed after rejection", "status", resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
