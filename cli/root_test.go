package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fenilmodi00/ipo-admin/config"
	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/handlers"
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessUser     = "admin"
	harnessPassword = "correct-horse"
)

// harness runs commands against an in-process reference API with a
// credential file in a temporary directory
type harness struct {
	t         *testing.T
	transport handlers.AppTransport
	tokenFile string
}

type result struct {
	code   int
	stdout string
	stderr string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog := database.NewMemoryCatalog()
	users := handlers.NewUserRegistry()
	require.NoError(t, handlers.Seed(context.Background(), catalog, users, harnessUser, harnessPassword, handlers.DemoCompanies))

	return &harness{
		t:         t,
		transport: handlers.AppTransport{App: handlers.NewApp(handlers.AppOptions{Catalog: catalog, Users: users})},
		tokenFile: filepath.Join(t.TempDir(), "credentials.yaml"),
	}
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	opts := &RootOptions{Config: &config.Config{}, Transport: h.transport}
	cmd := NewRootCommandWithOptions(opts)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api-url", "http://api.test/", "--token-file", h.tokenFile}, args...))

	code := Run(cmd, opts)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// runJSON runs a command with JSON output and decodes the response
func (h *harness) runJSON(stdin string, args ...string) (result, CLIResponse, json.RawMessage) {
	h.t.Helper()
	out := h.run(stdin, append([]string{"--format", "json"}, args...)...)

	var envelope struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal([]byte(out.stdout), &envelope), out.stdout)
	return out, envelope.CLIResponse, envelope.Data
}

func (h *harness) login() {
	h.t.Helper()
	out := h.run(harnessPassword+"\n", "login", "-u", harnessUser, "--password-stdin")
	require.Equal(h.t, ExitSuccess, out.code, out.stdout+out.stderr)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand(&config.Config{})
	for _, name := range []string{"login", "signup", "logout", "list", "create", "update", "delete", "watch", "health", "mock-server"} {
		found, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}

func TestUsageErrorsExitWithTwo(t *testing.T) {
	h := newHarness(t)

	out := h.run("", "--format", "xml", "list")
	assert.Equal(t, ExitCommandError, out.code)
	assert.Contains(t, out.stderr, `invalid format "xml"`)

	out = h.run("", "bogus")
	assert.Equal(t, ExitCommandError, out.code)

	out = h.run("", "update", "12")
	assert.Equal(t, ExitCommandError, out.code)
	assert.Contains(t, out.stderr, "at least one --field is required")

	out = h.run("", "delete", "abc")
	assert.Equal(t, ExitCommandError, out.code)

	out = h.run("", "login", "-u", harnessUser)
	assert.Equal(t, ExitCommandError, out.code)
	assert.Contains(t, out.stderr, "--password-stdin")
}

func TestListRequiresLogin(t *testing.T) {
	h := newHarness(t)

	out, response, _ := h.runJSON("", "list")
	assert.Equal(t, ExitCommandError, out.code)
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeNotAuthenticated, response.Error.Code)
}

func TestLoginFailureShowsInvalidCredentials(t *testing.T) {
	h := newHarness(t)

	out, response, _ := h.runJSON("wrong-password\n", "login", "-u", harnessUser, "--password-stdin")
	assert.Equal(t, ExitFailure, out.code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Invalid credentials", response.Error.Message)

	_, err := os.Stat(h.tokenFile)
	assert.True(t, os.IsNotExist(err))
}

func TestLoginThenList(t *testing.T) {
	h := newHarness(t)
	h.login()

	info, err := os.Stat(h.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, response, data := h.runJSON("", "list")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	assert.Equal(t, "ok", response.Status)

	var view PageView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, 1, view.TotalPages)
	assert.Equal(t, len(handlers.DemoCompanies), view.TotalCount)
	// the company without rounds is hidden
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "Bharat Ports Ltd", view.Rows[0].CompanyName)

	text := h.run("", "list")
	require.Equal(t, ExitSuccess, text.code)
	assert.Contains(t, text.stdout, "Nimbus Fintech Ltd")
	assert.Contains(t, text.stdout, "28.00%")
	assert.NotContains(t, text.stdout, "Delisted Holdings Ltd")
}

func TestCreateUpdateDeleteRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.login()

	draftFile := filepath.Join(t.TempDir(), "draft.yaml")
	require.NoError(t, os.WriteFile(draftFile, []byte(`company_name: Orbit Aerospace Ltd
company_logo: https://example.com/logos/orbit.png
round:
  price_band: "₹300-320"
  open_date: "2025-06-02"
  close_date: "2025-06-04"
  issue_size: "₹1,100 Cr"
  issue_type: Book Built
  listing_date: "2025-06-09"
  status: Pending
  ipo_price: "320"
  listing_price: "350"
  listing_gain: "9.38"
  current_market_price: "360"
  current_return: "12.5"
documents:
  rhp_pdf: https://example.com/docs/orbit-rhp.pdf
  drhp_pdf: https://example.com/docs/orbit-drhp.pdf
`), 0o600))

	out, response, data := h.runJSON("", "create", "--from-file", draftFile, "--field", "status=Upcoming")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	require.NotNil(t, response.Notification)
	assert.Equal(t, "IPO registered successfully!", response.Notification.Text)

	var created struct {
		Company models.Company `json:"company"`
		Page    PageView       `json:"page"`
	}
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, string(models.StatusUpcoming), created.Company.Rounds[0].Status)
	require.Len(t, created.Page.Rows, 4)
	newRound := created.Page.Rows[3].Round
	assert.Equal(t, "Orbit Aerospace Ltd", created.Page.Rows[3].CompanyName)

	roundArg := jsonNumber(newRound.ID)
	out, response, data = h.runJSON("", "update", roundArg, "--field", "status=listed", "-f", "ipo_price=321")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	assert.Equal(t, "IPO updated successfully!", response.Notification.Text)

	var updated struct {
		Round models.IPORound `json:"round"`
		Page  PageView        `json:"page"`
	}
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, "321", updated.Page.Rows[3].Round.IPOPrice)
	assert.Equal(t, string(models.StatusListed), updated.Page.Rows[3].Round.Status)
	assert.Equal(t, "Book Built", updated.Page.Rows[3].Round.IssueType)

	out, response, _ = h.runJSON("", "delete", roundArg, roundArg)
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	assert.Equal(t, "IPO deleted successfully!", response.Notification.Text)

	out, response, _ = h.runJSON("", "delete", roundArg)
	assert.Equal(t, ExitFailure, out.code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Failed to delete IPO", response.Error.Message)

	out = h.run("", "update", roundArg, "--field", "ipo_price=1")
	assert.Equal(t, ExitFailure, out.code)
}

func TestCreateRejectsIncompleteDraft(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, response, _ := h.runJSON("", "create", "--company-name", "Half Done Ltd", "--field", "price_band=₹10-12")
	assert.Equal(t, ExitFailure, out.code)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeValidation, response.Error.Code)

	out = h.run("", "create", "--field", "company=Acme")
	assert.Equal(t, ExitCommandError, out.code)
	assert.Contains(t, out.stderr, `unknown field "company"`)
}

func TestLogoutForgetsCredential(t *testing.T) {
	h := newHarness(t)
	h.login()

	out := h.run("", "logout")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	assert.Contains(t, out.stdout, "Logged out")

	_, err := os.Stat(h.tokenFile)
	assert.True(t, os.IsNotExist(err))

	out = h.run("", "list")
	assert.Equal(t, ExitCommandError, out.code)
}

func TestLogoutRecoversFromCorruptCredentialFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.tokenFile, []byte("credential: {access"), 0o600))

	out := h.run("", "list")
	assert.Equal(t, ExitCommandError, out.code)

	out = h.run("", "logout")
	require.Equal(t, ExitSuccess, out.code, out.stdout+out.stderr)
	_, err := os.Stat(h.tokenFile)
	assert.True(t, os.IsNotExist(err))

	h.login()
}

func TestSignupThenLogin(t *testing.T) {
	h := newHarness(t)

	out, response, _ := h.runJSON("one-password\nanother-password\n", "signup", "-u", "operator", "--password-stdin")
	assert.Equal(t, ExitFailure, out.code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Passwords do not match", response.Error.Message)

	out, response, _ = h.runJSON("long-enough\n", "signup", "-u", "operator", "--email", "op@example.com", "--password-stdin")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	assert.Equal(t, "Signup successful! Please login.", response.Notification.Text)

	out = h.run("long-enough\n", "login", "-u", "operator", "--password-stdin")
	assert.Equal(t, ExitSuccess, out.code, out.stdout)
	assert.Contains(t, out.stdout, "Logged in as operator")
}

func TestHealthReport(t *testing.T) {
	h := newHarness(t)

	out, _, data := h.runJSON("", "health")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	var report HealthReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, 1, report.Passed)

	h.login()
	out, _, data = h.runJSON("", "health")
	require.Equal(t, ExitSuccess, out.code, out.stdout)
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 3, report.Total)
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
