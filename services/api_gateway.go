package services

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

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotAuthenticated is the cause of auth errors raised before any request
// is sent because the credential source is empty.
var ErrNotAuthenticated = errors.New("not authenticated")

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 4 << 20

// Gateway is the remote IPO catalog API
type Gateway interface {
	Login(ctx context.Context, username, password string) (models.Credential, error)
	Signup(ctx context.Context, request models.SignupRequest) error
	Logout(ctx context.Context, refresh string) error
	FetchPage(ctx context.Context, page int) (models.Page, error)
	CreateCompany(ctx context.Context, draft models.DraftCompany) (models.Company, error)
	UpdateRound(ctx context.Context, roundID int64, buffer models.EditBuffer) (models.IPORound, error)
	DeleteRound(ctx context.Context, roundID int64) error
}

// APIClient implements Gateway over HTTP/JSON. It never retries; each call
// is a single request and the caller decides what to do with failures.
type APIClient struct {
	baseURL     string
	credentials CredentialSource
	httpClient  *http.Client
	metrics     *shared.ServiceMetrics
	httpMetrics *shared.HTTPMetrics
	logger      *logrus.Entry
}

// NewAPIClient creates a client for config.Service.BaseURL. A nil factory
// builds one with the configured timeout.
func NewAPIClient(config *shared.UnifiedConfiguration, credentials CredentialSource, factory *shared.HTTPClientFactory) *APIClient {
	if config == nil {
		config = shared.NewDefaultUnifiedConfiguration()
	}
	config.ValidateAndApplyDefaults()

	if factory == nil {
		factory = shared.NewHTTPClientFactory(config.Service.HTTPRequestTimeout)
	}
	if credentials == nil {
		credentials = NewMemoryTokenStore(models.Credential{})
	}

	return &APIClient{
		baseURL:     strings.TrimRight(config.Service.BaseURL, "/"),
		credentials: credentials,
		httpClient:  factory.CreateHTTPClient(config.Service.HTTPRequestTimeout),
		metrics:     shared.NewServiceMetrics("api-gateway"),
		httpMetrics: shared.NewHTTPMetrics(),
		logger: logrus.WithFields(logrus.Fields{
			"component": "APIClient",
			"base_url":  config.Service.BaseURL,
		}),
	}
}

// Metrics returns the per-operation request metrics
func (c *APIClient) Metrics() *shared.ServiceMetrics {
	return c.metrics
}

// HTTPMetrics returns status code counters
func (c *APIClient) HTTPMetrics() *shared.HTTPMetrics {
	return c.httpMetrics
}

type apiResponse struct {
	status int
	body   []byte
}

type listResponse struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []models.Company `json:"results"`
}

// Login exchanges username and password for a credential. Every failure,
// transport included, is reported as an authentication error.
func (c *APIClient) Login(ctx context.Context, username, password string) (models.Credential, error) {
	const operation = "login"

	response, err := c.send(ctx, operation, http.MethodPost, "/api/login/", map[string]string{
		"username": username,
		"password": password,
	}, false)
	if err != nil {
		return models.Credential{}, shared.NewAuthError(operation, 0, err)
	}
	if response.status != http.StatusOK {
		return models.Credential{}, shared.NewAuthError(operation, response.status,
			fmt.Errorf("login rejected: %s", detailOf(response.body)))
	}

	var login models.LoginResponse
	if err := json.Unmarshal(response.body, &login); err != nil || login.Access == "" {
		return models.Credential{}, shared.NewAuthError(operation, response.status,
			fmt.Errorf("malformed login response: %v", err))
	}

	credential := models.Credential{
		Access:   login.Access,
		Refresh:  login.Refresh,
		Username: login.User.Username,
		IssuedAt: time.Now().UTC(),
	}
	if credential.Username == "" {
		credential.Username = username
	}
	return credential, nil
}

// Signup registers an account. A 400 carries the server's field errors.
func (c *APIClient) Signup(ctx context.Context, request models.SignupRequest) error {
	const operation = "signup"

	response, err := c.send(ctx, operation, http.MethodPost, "/api/signup/", request, false)
	if err != nil {
		return err
	}
	if response.status == http.StatusCreated || response.status == http.StatusOK {
		return nil
	}
	return statusError(operation, response, "signup")
}

// Logout blacklists the refresh token server-side
func (c *APIClient) Logout(ctx context.Context, refresh string) error {
	const operation = "logout"

	response, err := c.send(ctx, operation, http.MethodPost, "/api/logout/", map[string]string{
		"refresh": refresh,
	}, true)
	if err != nil {
		return err
	}
	switch response.status {
	case http.StatusOK, http.StatusNoContent, http.StatusResetContent:
		return nil
	}
	return statusError(operation, response, "session")
}

// Health probes the unauthenticated liveness endpoint
func (c *APIClient) Health(ctx context.Context) error {
	const operation = "health"

	response, err := c.send(ctx, operation, http.MethodGet, "/health", nil, false)
	if err != nil {
		return err
	}
	if response.status != http.StatusOK {
		return statusError(operation, response, "health")
	}
	return nil
}

// FetchPage reads one page of companies. Page numbers start at 1.
func (c *APIClient) FetchPage(ctx context.Context, page int) (models.Page, error) {
	const operation = "fetch_page"

	if page < 1 {
		page = 1
	}
	path := "/api/ipo/paginated/?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()

	response, err := c.send(ctx, operation, http.MethodGet, path, nil, true)
	if err != nil {
		return models.Page{}, err
	}
	if response.status != http.StatusOK {
		return models.Page{}, statusError(operation, response, fmt.Sprintf("page %d", page))
	}

	var list listResponse
	if err := json.Unmarshal(response.body, &list); err != nil {
		return models.Page{}, shared.NewServiceError(shared.ErrorCategoryProcessing, "DECODE_FAILED",
			"malformed page response", "api-gateway", operation, err).WithStatus(response.status)
	}

	if list.Count < 0 {
		return models.Page{}, shared.NewServiceError(shared.ErrorCategoryProcessing, "DECODE_FAILED",
			fmt.Sprintf("negative item count %d", list.Count), "api-gateway", operation, nil).WithStatus(response.status)
	}

	return models.Page{
		Items:      list.Results,
		PageNumber: page,
		PageSize:   models.PageSize,
		TotalCount: list.Count,
	}, nil
}

// CreateCompany posts a draft as a company with one round and one document pair
func (c *APIClient) CreateCompany(ctx context.Context, draft models.DraftCompany) (models.Company, error) {
	const operation = "create_company"

	response, err := c.send(ctx, operation, http.MethodPost, "/api/ipo/", draft.ToCompany(), true)
	if err != nil {
		return models.Company{}, err
	}
	if response.status != http.StatusCreated && response.status != http.StatusOK {
		return models.Company{}, statusError(operation, response, "company")
	}

	var created models.Company
	if err := json.Unmarshal(response.body, &created); err != nil {
		c.logger.WithError(err).Warn("Created company but could not decode the response")
	}
	return created, nil
}

// UpdateRound replaces a round with the edit buffer
func (c *APIClient) UpdateRound(ctx context.Context, roundID int64, buffer models.EditBuffer) (models.IPORound, error) {
	const operation = "update_round"

	round := buffer.Round
	round.ID = roundID
	response, err := c.send(ctx, operation, http.MethodPut, roundPath(roundID), round, true)
	if err != nil {
		return models.IPORound{}, err
	}
	if response.status != http.StatusOK {
		return models.IPORound{}, statusError(operation, response, fmt.Sprintf("round %d", roundID))
	}

	var updated models.IPORound
	if err := json.Unmarshal(response.body, &updated); err != nil {
		c.logger.WithError(err).Warn("Updated round but could not decode the response")
		return round, nil
	}
	return updated, nil
}

// DeleteRound removes a round
func (c *APIClient) DeleteRound(ctx context.Context, roundID int64) error {
	const operation = "delete_round"

	response, err := c.send(ctx, operation, http.MethodDelete, roundPath(roundID), nil, true)
	if err != nil {
		return err
	}
	if response.status != http.StatusNoContent && response.status != http.StatusOK {
		return statusError(operation, response, fmt.Sprintf("round %d", roundID))
	}
	return nil
}

func roundPath(roundID int64) string {
	return "/api/ipo/" + strconv.FormatInt(roundID, 10) + "/"
}

func (c *APIClient) send(ctx context.Context, operation, method, path string, body interface{}, authenticated bool) (apiResponse, error) {
	startTime := time.Now()
	requestID := uuid.NewString()
	logger := c.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apiResponse{}, shared.NewServiceError(shared.ErrorCategoryProcessing, "ENCODE_FAILED",
				"could not encode request body", "api-gateway", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apiResponse{}, shared.NewServiceError(shared.ErrorCategoryConfiguration, "BAD_REQUEST_URL",
			"could not build request", "api-gateway", operation, err)
	}
	shared.SetJSONHeaders(request, body != nil)
	request.Header.Set("X-Request-ID", requestID)

	if authenticated {
		credential, err := c.credentials.Load(ctx)
		if err != nil {
			return apiResponse{}, shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_READ_FAILED", "api-gateway", operation)
		}
		if credential.Empty() {
			return apiResponse{}, shared.NewAuthError(operation, 0, ErrNotAuthenticated)
		}
		request.Header.Set("Authorization", credential.BearerHeader())
	}

	logger.Debug("Sending API request")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.metrics.RecordRequest(operation, false, time.Since(startTime))
		c.httpMetrics.RecordHTTPRequest(0, "network")
		logger.WithError(err).Warn("API request failed without a response")
		return apiResponse{}, shared.NewNetworkError(operation, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		c.metrics.RecordRequest(operation, false, time.Since(startTime))
		c.httpMetrics.RecordHTTPRequest(response.StatusCode, "network")
		return apiResponse{}, shared.NewNetworkError(operation, err)
	}

	success := response.StatusCode < 400
	errorType := ""
	if !success {
		errorType = http.StatusText(response.StatusCode)
	}
	c.metrics.RecordRequest(operation, success, time.Since(startTime))
	c.httpMetrics.RecordHTTPRequest(response.StatusCode, errorType)

	logger.WithFields(logrus.Fields{
		"status_code": response.StatusCode,
		"duration":    time.Since(startTime),
	}).Debug("Received API response")

	return apiResponse{status: response.StatusCode, body: data}, nil
}

// statusError maps a non-success status to the error taxonomy
func statusError(operation string, response apiResponse, target string) error {
	switch {
	case response.status == http.StatusUnauthorized || response.status == http.StatusForbidden:
		return shared.NewAuthError(operation, response.status, errors.New(detailOf(response.body)))
	case response.status == http.StatusBadRequest:
		return shared.NewValidationError(operation, response.status, parseFieldErrors(response.body))
	case response.status == http.StatusNotFound:
		return shared.NewNotFoundError(operation, target)
	default:
		serviceErr := shared.NewServiceError(shared.ErrorCategoryProcessing, "UNEXPECTED_STATUS",
			fmt.Sprintf("unexpected status %d", response.status), "api-gateway", operation,
			errors.New(detailOf(response.body))).WithStatus(response.status)
		if json.Valid(response.body) {
			serviceErr.WithDetails(parseFieldErrors(response.body))
		}
		return serviceErr
	}
}

// parseFieldErrors reads a DRF-style error body. Values may be a list of
// strings, a single string, or a nested object which is kept as raw text.
func parseFieldErrors(body []byte) shared.FieldErrors {
	fields := shared.FieldErrors{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			fields["error"] = []string{text}
		}
		return fields
	}

	for key, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[key] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			fields[key] = []string{single}
			continue
		}
		fields[key] = []string{string(value)}
	}
	return fields
}

func detailOf(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
