package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/cloudprint/internal/bootstrap"
	"github.com/cuongbtq/cloudprint/internal/config"
	"github.com/cuongbtq/cloudprint/internal/dispatch"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textContent = `{"type":"text","data":{"text":"hello printctl"},"copies":2}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func writeConfig(t *testing.T, dsn, endpoint string) string {
	t.Helper()
	return writeFile(t, "config.yaml", fmt.Sprintf(`
database:
  driver: sqlite3
  dsn: %q
worker:
  stale_after: 5m
printing:
  defaults:
    receipt:
      account: ops@example.com
      serial: "960000001"
      secret_key: s3cret
      endpoint: %q
`, dsn, endpoint))
}

func TestSign(t *testing.T) {
	out, err := execute(t, "", "sign", "--account", "ops@example.com", "--secret", "s3cret", "--stime", "1700000000")
	require.NoError(t, err)
	assert.Contains(t, out, "stime=1700000000")
	assert.Contains(t, out, "sig="+dispatch.Signature("ops@example.com", "s3cret", 1700000000))

	_, err = execute(t, "", "sign", "--account", "ops@example.com")
	assert.ErrorContains(t, err, "required")
}

func TestRender(t *testing.T) {
	path := writeFile(t, "content.json", textContent)

	tests := []struct {
		name      string
		stdin     string
		args      []string
		contains  string
		errString string
	}{
		{
			name:     "file",
			args:     []string{"render", path},
			contains: "hello printctl",
		},
		{
			name:     "stdin",
			stdin:    textContent,
			args:     []string{"render", "-"},
			contains: "hello printctl",
		},
		{
			name:     "hex",
			args:     []string{"render", path, "--hex"},
			contains: "68656c6c6f",
		},
		{
			name:     "unknown language falls back",
			args:     []string{"render", path, "--language", "fr"},
			contains: "hello printctl",
		},
		{
			name:      "missing type",
			stdin:     `{"data":{"text":"x"}}`,
			args:      []string{"render", "-"},
			errString: "failed to parse content",
		},
		{
			name:      "no argument",
			args:      []string{"render"},
			errString: "accepts 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			if tt.errString != "" {
				assert.ErrorContains(t, err, tt.errString)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestRender_UnknownLanguageWarns(t *testing.T) {
	path := writeFile(t, "content.json", textContent)

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"render", path, "--language", "fr"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, errOut.String(), `unknown language "fr"`)

	cmd = NewRootCommand()
	var defaultOut bytes.Buffer
	cmd.SetOut(&defaultOut)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"render", path})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, defaultOut.String(), out.String())
}

func TestOptions_VerboseLogger(t *testing.T) {
	cmd := NewRootCommand()

	quiet := (&options{}).logger(cmd)
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelDebug))

	verbose := (&options{verbose: true}).logger(cmd)
	assert.True(t, verbose.Enabled(context.Background(), slog.LevelDebug))
}

func TestSend(t *testing.T) {
	var mu sync.Mutex
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		form, _ = url.ParseQuery(string(body))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ret":0,"msg":"ok","data":"x","serverExecutedTime":4}`))
	}))
	defer srv.Close()

	cfgPath := writeConfig(t, ":memory:", srv.URL)
	content := writeFile(t, "content.json", textContent)

	out, err := execute(t, "", "send", content, "--config", cfgPath, "--store", "store-1")
	require.NoError(t, err)
	assert.Equal(t, "ret=0 msg=ok server_ms=4\n", out)

	mu.Lock()
	assert.Equal(t, "960000001", form.Get("sn"))
	assert.Equal(t, "2", form.Get("times"))
	assert.Contains(t, form.Get("content"), "hello printctl")
	mu.Unlock()

	_, err = execute(t, "", "send", content, "--config", cfgPath, "--printer", "device-9")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, "device-9", form.Get("sn"))
	mu.Unlock()

	_, err = execute(t, "", "send", content, "--config", cfgPath, "--role", "kitchen")
	assert.ErrorContains(t, err, "no kitchen printer configured")

	_, err = execute(t, "", "send", content, "--config", cfgPath, "--role", "fax")
	assert.ErrorContains(t, err, "unknown printer role")

	_, err = execute(t, "", "send", content, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestSweep(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "jobs.db")

	client, store, err := bootstrap.Database(context.Background(), &config.DatabaseConfig{Driver: "sqlite3", DSN: dsn}, logger.NewDiscard())
	require.NoError(t, err)

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.CreatePrintJob(context.Background(), &domain.PrintJob{
		JobID:       "job-stale",
		TenantID:    "tenant-1",
		StoreID:     "store-1",
		PrinterType: domain.PrinterTypeReceipt,
		Content:     domain.PrintContent{Body: domain.Text{Text: "x"}, Copies: 1},
		Status:      domain.JobStatusProcessing,
		MaxRetries:  3,
		CreatedAt:   old,
		UpdatedAt:   old,
		Source:      domain.JobSourceUser,
	}))
	require.NoError(t, client.Close())

	cfgPath := writeConfig(t, dsn, "http://127.0.0.1:1")

	out, err := execute(t, "", "sweep", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "failed 1 stale jobs\n", out)

	out, err = execute(t, "", "sweep", "--config", cfgPath, "--stale-after", "2h")
	require.NoError(t, err)
	assert.Equal(t, "failed 0 stale jobs\n", out)
}
