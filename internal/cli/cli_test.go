package cli

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/infrastructure/remote/remotetest"
	"github.com/billsight/billsight-client/pkg/logger"
)

type harness struct {
	srv *remotetest.Server
	fs  afero.Fs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("root", "root@example.com", "secret1", domain.RoleAdmin)
	srv.AddUser("alice", "alice@example.com", "secret1", domain.RoleUser)

	t.Setenv("BILLSIGHT_API_URL", srv.URL())
	t.Setenv("BILLSIGHT_PASSWORD", "")
	t.Setenv("TOKEN_STORE", "file")
	t.Setenv("TOKEN_FILE", "/state/token")
	t.Setenv("DOWNLOAD_DIR", "/out")
	t.Setenv("LOG_LEVEL", "off")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/bill.pdf", []byte("%PDF-1.4 bill"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/docs/sales.xlsx", []byte("PK\x03\x04sales"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/docs/notes.txt", []byte("hi"), 0o644))
	return &harness{srv: srv, fs: fs}
}

func (h *harness) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	logger.Reset()
	t.Cleanup(logger.Reset)

	root := RootCmd(Deps{Fs: h.fs})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) storedToken(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, "/state/token")
	if err != nil {
		return ""
	}
	return string(data)
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "login", "-u", "root", "-p", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as root (admin)\n", out)
	assert.NotEmpty(t, h.storedToken(t))

	out, _, err = h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "root <root@example.com> role=admin")
	assert.Contains(t, out, "session expires")

	_, _, err = h.run(t, "login", "-u", "root", "-p", "secret1")
	assert.ErrorContains(t, err, "already logged in as root")

	out, _, err = h.run(t, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)
	assert.Empty(t, h.storedToken(t))
	assert.False(t, h.srv.LoggedIn("root"))

	_, _, err = h.run(t, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "login", "-u", "root", "-p", "wrong")
	assert.EqualError(t, err, "Incorrect username or password")

	h.srv.MarkLoggedIn("alice")
	_, _, err = h.run(t, "login", "-u", "alice", "-p", "secret1")
	assert.EqualError(t, err, domain.MsgAlreadyLoggedIn)
	assert.Empty(t, h.storedToken(t))
}

func TestLoginReadsPasswordFromEnv(t *testing.T) {
	h := newHarness(t)
	t.Setenv("BILLSIGHT_PASSWORD", "secret1")

	_, _, err := h.run(t, "login", "-u", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, h.storedToken(t))
}

func TestProcess(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "process", "/docs/bill.pdf")
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.Zero(t, h.srv.Requests("/process-document"))

	_, _, err = h.run(t, "login", "-u", "alice", "-p", "secret1")
	require.NoError(t, err)

	h.srv.SetDocumentResponse("", []byte("spreadsheet"))
	out, stderr, err := h.run(t, "process", "/docs/bill.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "processed_document.xlsx")
	assert.Contains(t, stderr, "Uploading...")
	assert.Contains(t, stderr, "Generating spreadsheet...")

	data, err := afero.ReadFile(h.fs, "/out/processed_document.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "spreadsheet", string(data))

	_, stderr, err = h.run(t, "process", "/docs/notes.txt")
	assert.EqualError(t, err, "no valid document to submit")
	assert.Contains(t, stderr, "skipping notes.txt")
	assert.Equal(t, 1, strings.Count(stderr, "skipping notes.txt"))
	assert.Contains(t, stderr, "1 of 1 files skipped")

	h.srv.FailDocuments(http.StatusInternalServerError, "OCR engine unavailable")
	_, _, err = h.run(t, "process", "/docs/bill.pdf")
	assert.EqualError(t, err, "OCR engine unavailable")
}

func TestAnalyze(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "login", "-u", "alice", "-p", "secret1")
	require.NoError(t, err)

	_, _, err = h.run(t, "analyze")
	assert.ErrorIs(t, err, domain.ErrEmptySubmission)
	assert.Zero(t, h.srv.Requests("/analyze-bills"))

	h.srv.SetDocumentResponse("inventory_analysis_20250101_120000.xlsx", []byte("report"))
	out, _, err := h.run(t, "analyze", "--purchase", "/docs/bill.pdf", "--sales", "/docs/sales.xlsx", "--sales", "/docs/notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "inventory_analysis_20250101_120000.xlsx")

	up := h.srv.LastUpload()
	require.NotNil(t, up)
	assert.Equal(t, []string{"bill.pdf"}, up.Files["purchase_files"])
	assert.Equal(t, []string{"sales.xlsx"}, up.Files["sales_files"])
	assert.Equal(t, "true", up.AutoDetect)
}

func TestUsers(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "login", "-u", "alice", "-p", "secret1")
	require.NoError(t, err)
	_, _, err = h.run(t, "users", "list")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, _, err = h.run(t, "logout")
	require.NoError(t, err)

	_, _, err = h.run(t, "login", "-u", "root", "-p", "secret1")
	require.NoError(t, err)

	out, _, err := h.run(t, "users", "create", "--username", "bob", "--email", "bob@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Created bob (user)\n", out)

	_, _, err = h.run(t, "users", "create", "--username", "bob", "--email", "bob2@example.com", "--password", "secret1")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, _, err = h.run(t, "users", "create", "--username", "x", "--email", "nope", "--password", "1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	out, _, err = h.run(t, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "bob@example.com")

	out, _, err = h.run(t, "users", "toggle", "bob")
	require.NoError(t, err)
	assert.Equal(t, "User 'bob' disabled successfully\n", out)

	out, _, err = h.run(t, "users", "delete", "bob")
	require.NoError(t, err)
	assert.Equal(t, "User 'bob' deleted successfully\n", out)
	assert.False(t, h.srv.UserExists("bob"))

	_, _, err = h.run(t, "users", "delete", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "is healthy")
}
