package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/cuongbtq/cloudprint/internal/api/dto"
	"github.com/cuongbtq/cloudprint/internal/api/handler"
	"github.com/cuongbtq/cloudprint/internal/config"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printing"
	"github.com/cuongbtq/cloudprint/internal/printjob/service"
	"github.com/cuongbtq/cloudprint/internal/printjob/storage"
	"github.com/cuongbtq/cloudprint/shared/database"
	"github.com/cuongbtq/cloudprint/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	engine *gin.Engine

	mu      sync.Mutex
	printed map[string]string
}

func (e *testEnv) content(sn string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.printed[sn]
}

func newTestEnv(t *testing.T, healthErr error) *testEnv {
	t.Helper()

	client, err := database.NewClient(&database.Config{
		Driver: database.DriverSQLite,
		DSN:    ":memory:",
	}, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := storage.NewStorage(client.GetDB(), logger.NewDiscard())
	require.NoError(t, store.Migrate(context.Background()))

	jobs := service.NewService(store, formatter.New(logger.NewDiscard()), logger.NewDiscard())

	env := &testEnv{printed: map[string]string{}}
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		env.mu.Lock()
		env.printed[form.Get("sn")] = form.Get("content")
		env.mu.Unlock()
		_, _ = w.Write([]byte(`{"ret":0,"msg":"ok","data":"x"}`))
	}))
	t.Cleanup(gw.Close)

	provider := printing.NewProvider(config.PrintingConfig{
		Defaults: map[string]config.PrinterConfig{
			"receipt": {Account: "ops", Serial: "receipt-sn", SecretKey: "k", Endpoint: gw.URL},
			"kitchen": {Account: "ops", Serial: "kitchen-sn", SecretKey: "k", Endpoint: gw.URL},
		},
		Stores: map[string]map[string]config.PrinterConfig{
			"no-kitchen": {"kitchen": {Account: "ops", Serial: "broken"}},
		},
	})

	deps := &handler.Dependencies{
		Logger:   logger.NewDiscard(),
		Jobs:     jobs,
		Printers: printing.NewRegistry(provider, logger.NewDiscard(), printing.WithRecorder(jobs)),
		HealthCheck: func(ctx context.Context) error {
			return healthErr
		},
	}
	env.engine = SetupRouter(deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

const createBody = `{
	"tenant_id": "tenant-1",
	"store_id": "store-1",
	"printer_type": "receipt",
	"created_by": "cashier-7",
	"source": "user",
	"content": {
		"type": "receipt",
		"data": {"order_number": "O1", "items": [{"name": "Fried Chicken", "quantity": 2, "price": 85}], "total": 170}
	}
}`

func createJob(t *testing.T, env *testEnv) dto.PrintJobDTO {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/print-jobs", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.PrintJobDTO](t, w)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	env = newTestEnv(t, errors.New("database down"))
	w = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database down")
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodOptions, "/api/v1/print-jobs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreatePrintJob(t *testing.T) {
	env := newTestEnv(t, nil)

	job := createJob(t, env)
	assert.Equal(t, "pending", job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Contains(t, job.RawCommands, "Fried Chicken x 2")
	assert.True(t, strings.HasSuffix(job.RawCommands, formatter.CutSequence))
	assert.Nil(t, job.CompletedAt)
	_, err := uuid.Parse(job.JobID)
	assert.NoError(t, err)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "missing tenant",
			body:      `{"store_id":"s","content":{"type":"text","data":{"text":"hi"}}}`,
			wantField: "tenant_id",
		},
		{
			name:      "missing content",
			body:      `{"tenant_id":"t","store_id":"s"}`,
			wantField: "content",
		},
		{
			name: "content without type",
			body: `{"tenant_id":"t","store_id":"s","content":{"data":{}}}`,
		},
		{
			name: "malformed json",
			body: `{"tenant_id":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/print-jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			if tt.wantField != "" {
				resp := decode[map[string]any](t, w)
				assert.Equal(t, tt.wantField, resp["field"])
			}
		})
	}
}

func TestGetPrintJob(t *testing.T) {
	env := newTestEnv(t, nil)
	job := createJob(t, env)

	w := env.do(t, http.MethodGet, "/api/v1/print-jobs/"+job.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[dto.PrintJobDTO](t, w)
	assert.Equal(t, job.JobID, got.JobID)
	assert.Equal(t, "receipt", string(got.Content.Type()))

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPrintJobs(t *testing.T) {
	env := newTestEnv(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, createJob(t, env).JobID)
	}

	w := env.do(t, http.MethodGet, "/api/v1/print-jobs", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs?store_id=store-1&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[dto.ListPrintJobsResponse](t, w)
	require.Len(t, page.Jobs, 2)
	require.NotEmpty(t, page.NextCursor)

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs?store_id=store-1&limit=2&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	next := decode[dto.ListPrintJobsResponse](t, w)
	require.Len(t, next.Jobs, 1)
	assert.Empty(t, next.NextCursor)

	seen := map[string]bool{}
	for _, j := range append(page.Jobs, next.Jobs...) {
		seen[j.JobID] = true
	}
	for _, id := range ids {
		assert.True(t, seen[id], "missing %s", id)
	}

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs?store_id=store-1&status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.ListPrintJobsResponse](t, w).Jobs)

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs?store_id=store-1&status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs?store_id=store-1&cursor=Zm9v", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePrintJobStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	job := createJob(t, env)
	path := "/api/v1/print-jobs/" + job.JobID + "/status"

	w := env.do(t, http.MethodPatch, path, map[string]string{"status": "processing"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[dto.PrintJobDTO](t, w).CompletedAt)

	w = env.do(t, http.MethodPatch, path, map[string]string{"status": "completed", "status_message": "printed"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[dto.PrintJobDTO](t, w)
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, "printed", updated.StatusMessage)
	assert.NotNil(t, updated.CompletedAt)

	w = env.do(t, http.MethodPatch, path, map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/print-jobs/"+uuid.NewString()+"/status", map[string]string{"status": "failed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelPrintJob(t *testing.T) {
	env := newTestEnv(t, nil)
	job := createJob(t, env)
	path := "/api/v1/print-jobs/" + job.JobID + "/cancel"

	w := env.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.CancelPrintJobResponse](t, w).Cancelled)

	w = env.do(t, http.MethodGet, "/api/v1/print-jobs/"+job.JobID, nil)
	got := decode[dto.PrintJobDTO](t, w)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "manually cancelled", got.StatusMessage)
	assert.NotNil(t, got.CompletedAt)

	w = env.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[dto.CancelPrintJobResponse](t, w).Cancelled)

	w = env.do(t, http.MethodPost, "/api/v1/print-jobs/"+uuid.NewString()+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[dto.CancelPrintJobResponse](t, w).Cancelled)
}

type printOrderResult struct {
	OrderID            string `json:"order_id"`
	ReceiptPrinted     *bool  `json:"receipt_printed"`
	KitchenSlipPrinted *bool  `json:"kitchen_slip_printed"`
}

func TestPrintOrder(t *testing.T) {
	order := map[string]any{
		"order_id":  "O1",
		"tenant_id": "tenant-1",
		"items":     []map[string]any{{"name": "Fried Chicken", "quantity": 2, "price": 85}},
		"total":     170,
	}

	t.Run("both targets", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, http.MethodPost, "/api/v1/stores/store-1/orders/print", map[string]any{"order": order})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		res := decode[printOrderResult](t, w)
		assert.Equal(t, "O1", res.OrderID)
		require.NotNil(t, res.ReceiptPrinted)
		require.NotNil(t, res.KitchenSlipPrinted)
		assert.True(t, *res.ReceiptPrinted)
		assert.True(t, *res.KitchenSlipPrinted)
		assert.Contains(t, env.content("receipt-sn"), "Fried Chicken x 2")
		assert.Contains(t, env.content("kitchen-sn"), "KITCHEN ORDER")

		w = env.do(t, http.MethodGet, "/api/v1/print-jobs?store_id=store-1&status=completed", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[dto.ListPrintJobsResponse](t, w).Jobs, 2)
	})

	t.Run("kitchen only", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, http.MethodPost, "/api/v1/stores/store-1/orders/print", map[string]any{
			"order":         order,
			"print_receipt": false,
		})
		require.Equal(t, http.StatusOK, w.Code)

		res := decode[printOrderResult](t, w)
		assert.Nil(t, res.ReceiptPrinted)
		require.NotNil(t, res.KitchenSlipPrinted)
		assert.True(t, *res.KitchenSlipPrinted)
	})

	t.Run("kitchen missing credentials", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, http.MethodPost, "/api/v1/stores/no-kitchen/orders/print", map[string]any{"order": order})
		require.Equal(t, http.StatusOK, w.Code)

		res := decode[printOrderResult](t, w)
		require.NotNil(t, res.ReceiptPrinted)
		require.NotNil(t, res.KitchenSlipPrinted)
		assert.True(t, *res.ReceiptPrinted)
		assert.False(t, *res.KitchenSlipPrinted)
	})

	t.Run("missing order id", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, http.MethodPost, "/api/v1/stores/store-1/orders/print", map[string]any{"order": map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
