package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "admin"
	testPassword = "correct-horse"
)

func newTestApp(t *testing.T, companies []models.Company) *fiber.App {
	t.Helper()
	catalog := database.NewMemoryCatalog()
	users := NewUserRegistry()
	require.NoError(t, Seed(context.Background(), catalog, users, testUser, testPassword, companies))
	return NewApp(AppOptions{Catalog: catalog, Users: users})
}

func call(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := app.Test(request, -1)
	require.NoError(t, err)
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response, data
}

func login(t *testing.T, app *fiber.App) models.LoginResponse {
	t.Helper()
	response, body := call(t, app, http.MethodPost, "/api/login/", "",
		map[string]string{"username": testUser, "password": testPassword})
	require.Equal(t, http.StatusOK, response.StatusCode, string(body))

	var tokens models.LoginResponse
	require.NoError(t, json.Unmarshal(body, &tokens))
	return tokens
}

func detailOf(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Detail
}

func TestAuthRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	t.Run("signup", func(t *testing.T) {
		response, body := call(t, app, http.MethodPost, "/api/signup/", "",
			models.SignupRequest{Username: "operator", Email: "op@example.com", Password: "long-enough"})
		assert.Equal(t, http.StatusCreated, response.StatusCode)
		assert.Contains(t, string(body), "User created successfully")

		response, body = call(t, app, http.MethodPost, "/api/signup/", "",
			models.SignupRequest{Username: "operator", Email: "bad", Password: "short"})
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)

		var fields map[string][]string
		require.NoError(t, json.Unmarshal(body, &fields))
		assert.Equal(t, []string{detailUserExists}, fields["username"])
		assert.Equal(t, []string{"Enter a valid email address."}, fields["email"])
		assert.Equal(t, []string{"Ensure this field has at least 8 characters."}, fields["password"])
	})

	t.Run("login", func(t *testing.T) {
		tokens := login(t, app)
		assert.NotEmpty(t, tokens.Access)
		assert.NotEmpty(t, tokens.Refresh)
		assert.Equal(t, testUser, tokens.User.Username)

		response, body := call(t, app, http.MethodPost, "/api/login/", "",
			map[string]string{"username": testUser, "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
		assert.Equal(t, detailBadCredentials, detailOf(t, body))

		response, _ = call(t, app, http.MethodPost, "/api/login/", "", map[string]string{"username": testUser})
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})

	t.Run("logout", func(t *testing.T) {
		tokens := login(t, app)

		response, body := call(t, app, http.MethodPost, "/api/logout/", tokens.Access,
			map[string]string{"refresh": "not-issued"})
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
		assert.Equal(t, detailInvalidToken, detailOf(t, body))

		response, _ = call(t, app, http.MethodPost, "/api/logout/", tokens.Access,
			map[string]string{"refresh": tokens.Refresh})
		assert.Equal(t, http.StatusResetContent, response.StatusCode)

		response, body = call(t, app, http.MethodGet, "/api/ipo/paginated/", tokens.Access, nil)
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
		assert.Equal(t, detailTokenNotAllowed, detailOf(t, body))
	})
}

func TestIPORoutesRequireToken(t *testing.T) {
	app := newTestApp(t, DemoCompanies)

	response, body := call(t, app, http.MethodGet, "/api/ipo/paginated/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Equal(t, detailNoCredentials, detailOf(t, body))

	response, _ = call(t, app, http.MethodDelete, "/api/ipo/1/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
}

func TestListCompaniesEnvelope(t *testing.T) {
	var companies []models.Company
	for i := 1; i <= 7; i++ {
		companies = append(companies, models.Company{
			CompanyName: fmt.Sprintf("Company %d", i),
			Rounds:      []models.IPORound{{Status: string(models.StatusListed)}},
		})
	}
	app := newTestApp(t, companies)
	token := login(t, app).Access

	type envelope struct {
		Count    int              `json:"count"`
		Next     *string          `json:"next"`
		Previous *string          `json:"previous"`
		Results  []models.Company `json:"results"`
	}

	response, body := call(t, app, http.MethodGet, "/api/ipo/paginated/", token, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var first envelope
	require.NoError(t, json.Unmarshal(body, &first))
	assert.Equal(t, 7, first.Count)
	assert.Len(t, first.Results, models.PageSize)
	require.NotNil(t, first.Next)
	assert.Contains(t, *first.Next, "page=2")
	assert.Nil(t, first.Previous)
	assert.Equal(t, string(models.StatusListed), first.Results[0].Rounds[0].Status)

	response, body = call(t, app, http.MethodGet, "/api/ipo/paginated/?page=2", token, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var second envelope
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Len(t, second.Results, 2)
	assert.Nil(t, second.Next)
	assert.NotNil(t, second.Previous)

	for _, page := range []string{"3", "0", "abc"} {
		response, body = call(t, app, http.MethodGet, "/api/ipo/paginated/?page="+page, token, nil)
		assert.Equal(t, http.StatusNotFound, response.StatusCode, page)
		assert.Equal(t, detailInvalidPage, detailOf(t, body))
	}
}

func TestEmptyCatalogHasOnePage(t *testing.T) {
	app := newTestApp(t, nil)
	token := login(t, app).Access

	response, body := call(t, app, http.MethodGet, "/api/ipo/paginated/", token, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.JSONEq(t, `{"count":0,"next":null,"previous":null,"results":[]}`, string(body))
}

func TestRoundLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	token := login(t, app).Access

	draft := models.Company{
		CompanyName: "Orbit Aerospace Ltd",
		Rounds: []models.IPORound{{
			PriceBand: "₹300-320",
			Status:    "UPCOMING",
			Documents: []models.DocumentLink{{RHPPDF: "https://example.com/rhp.pdf"}},
		}},
	}
	response, body := call(t, app, http.MethodPost, "/api/ipo/", token, draft)
	require.Equal(t, http.StatusCreated, response.StatusCode, string(body))

	var created models.Company
	require.NoError(t, json.Unmarshal(body, &created))
	require.Len(t, created.Rounds, 1)
	round := created.Rounds[0]
	assert.NotZero(t, created.ID)
	assert.NotZero(t, round.ID)
	assert.Equal(t, string(models.StatusUpcoming), round.Status)
	assert.NotZero(t, round.Documents[0].ID)

	path := fmt.Sprintf("/api/ipo/%d/", round.ID)
	round.Status = string(models.StatusOngoing)
	round.IPOPrice = "320"
	response, body = call(t, app, http.MethodPut, path, token, round)
	require.Equal(t, http.StatusOK, response.StatusCode, string(body))

	response, body = call(t, app, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var fetched models.IPORound
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, string(models.StatusOngoing), fetched.Status)
	assert.Equal(t, "320", fetched.IPOPrice)

	round.Status = "withdrawn"
	response, body = call(t, app, http.MethodPut, path, token, round)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Contains(t, string(body), `"status"`)

	response, _ = call(t, app, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, response.StatusCode)

	response, body = call(t, app, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	assert.NotContains(t, string(body), "detail")

	response, body = call(t, app, http.MethodPut, "/api/ipo/999/", token, round)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	assert.NotContains(t, string(body), "detail")

	// the company outlives its last round
	response, body = call(t, app, http.MethodGet, "/api/ipo/paginated/", token, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), `"count":1`)
}

func TestCreateCompanyValidation(t *testing.T) {
	app := newTestApp(t, nil)
	token := login(t, app).Access

	response, body := call(t, app, http.MethodPost, "/api/ipo/", token, models.Company{
		Rounds: []models.IPORound{{Status: "listed"}, {Status: "bogus"}},
	})
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	var fields map[string][]string
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, []string{detailRequired}, fields["company_name"])
	assert.Contains(t, fields, "ipos.1.status")
	assert.NotContains(t, fields, "ipos.0.status")
}

func TestAppTransportServesClientRequests(t *testing.T) {
	app := newTestApp(t, nil)
	client := &http.Client{Transport: AppTransport{App: app}}

	response, err := client.Get("http://reference.test/health")
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	request, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://reference.test/health", nil)
	_, err = client.Do(request)
	assert.ErrorIs(t, err, context.Canceled)
}
