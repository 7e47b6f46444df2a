package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/internal/printjob/storage"
	"github.com/cuongbtq/cloudprint/shared/database"
	"github.com/cuongbtq/cloudprint/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, body)
	return nil
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()

	client, err := database.NewClient(&database.Config{
		Driver: database.DriverSQLite,
		DSN:    ":memory:",
	}, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := storage.NewStorage(client.GetDB(), logger.NewDiscard())
	require.NoError(t, store.Migrate(context.Background()))

	return NewService(store, formatter.New(logger.NewDiscard()), logger.NewDiscard(), opts...)
}

func validInput() CreatePrintJobInput {
	return CreatePrintJobInput{
		TenantID:    "tenant-1",
		StoreID:     "store-1",
		PrinterType: domain.PrinterTypeReceipt,
		Content: domain.PrintContent{
			Body: domain.Receipt{
				OrderNumber: "O1",
				Items:       []domain.LineItem{{Name: "Fried Chicken", Quantity: 2, Price: 85}},
				Total:       170,
			},
			Copies: 1,
		},
		CreatedBy: "cashier-7",
		Source:    domain.JobSourceUser,
	}
}

func TestService_CreatePrintJob(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	job, err := svc.CreatePrintJob(ctx, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Equal(t, domain.DefaultMaxRetries, job.MaxRetries)
	assert.NotEmpty(t, job.RawCommands)
	assert.True(t, strings.HasPrefix(job.RawCommands, formatter.Reset))
	assert.True(t, strings.HasSuffix(job.RawCommands, formatter.CutSequence))
	assert.Contains(t, job.RawCommands, "Fried Chicken x 2")
	assert.Nil(t, job.CompletedAt)

	stored, err := svc.GetPrintJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.RawCommands, stored.RawCommands)
}

func TestService_CreatePrintJob_UniqueIDs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		job, err := svc.CreatePrintJob(ctx, validInput())
		require.NoError(t, err)
		assert.False(t, seen[job.JobID], "duplicate job id %s", job.JobID)
		seen[job.JobID] = true
	}
}

func TestService_CreatePrintJob_Defaults(t *testing.T) {
	svc := newTestService(t, WithDefaultMaxRetries(5))

	in := validInput()
	in.PrinterType = ""
	in.Source = ""
	in.Content.Copies = 0

	job, err := svc.CreatePrintJob(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, domain.PrinterTypeGeneral, job.PrinterType)
	assert.Equal(t, domain.JobSourceUser, job.Source)
	assert.Equal(t, 1, job.Content.Copies)
	assert.Equal(t, 5, job.MaxRetries)

	zero := 0
	in.MaxRetries = &zero
	job, err = svc.CreatePrintJob(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, job.MaxRetries)
}

func TestService_CreatePrintJob_Validation(t *testing.T) {
	negative := -1
	density := 150

	tests := []struct {
		name   string
		mutate func(*CreatePrintJobInput)
		field  string
	}{
		{name: "missing tenant", mutate: func(in *CreatePrintJobInput) { in.TenantID = "" }, field: "tenant_id"},
		{name: "missing store", mutate: func(in *CreatePrintJobInput) { in.StoreID = "" }, field: "store_id"},
		{name: "missing content", mutate: func(in *CreatePrintJobInput) { in.Content = domain.PrintContent{} }, field: "content"},
		{name: "unknown printer type", mutate: func(in *CreatePrintJobInput) { in.PrinterType = "bar" }, field: "printer_type"},
		{name: "unknown source", mutate: func(in *CreatePrintJobInput) { in.Source = "robot" }, field: "source"},
		{name: "negative retries", mutate: func(in *CreatePrintJobInput) { in.MaxRetries = &negative }, field: "max_retries"},
		{name: "negative copies", mutate: func(in *CreatePrintJobInput) { in.Content.Copies = -2 }, field: "content.copies"},
		{
			name: "density out of range",
			mutate: func(in *CreatePrintJobInput) {
				in.Content.Options = &domain.PrintOptions{Density: &density}
			},
			field: "content.print_options.density",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			in := validInput()
			tt.mutate(&in)

			job, err := svc.CreatePrintJob(context.Background(), in)
			require.Error(t, err)
			assert.Nil(t, job)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestService_CreatePrintJob_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	job, err := svc.CreatePrintJob(ctx, validInput())
	require.NoError(t, err)

	require.Len(t, pub.messages, 1)
	var msg domain.JobMessage
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	assert.Equal(t, job.JobID, msg.JobID)

	in := validInput()
	in.Inline = true
	_, err = svc.CreatePrintJob(ctx, in)
	require.NoError(t, err)
	assert.Len(t, pub.messages, 1)
}

func TestService_CreatePrintJob_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	_, err := svc.CreatePrintJob(ctx, validInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	jobs, err := svc.GetPrintJobs(ctx, ListPrintJobsInput{StoreID: "store-1"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].StatusMessage, "enqueue failed")
}

func TestService_GetPrintJobs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var i int
	svc.now = func() time.Time {
		i++
		return start.Add(time.Duration(i) * time.Second)
	}

	var ids []string
	for n := 0; n < 35; n++ {
		job, err := svc.CreatePrintJob(ctx, validInput())
		require.NoError(t, err)
		ids = append(ids, job.JobID)
	}

	other := validInput()
	other.StoreID = "store-2"
	_, err := svc.CreatePrintJob(ctx, other)
	require.NoError(t, err)

	jobs, err := svc.GetPrintJobs(ctx, ListPrintJobsInput{StoreID: "store-1"})
	require.NoError(t, err)
	assert.Len(t, jobs, domain.DefaultListLimit)
	assert.Equal(t, ids[34], jobs[0].JobID)

	_, err = svc.UpdatePrintJobStatus(ctx, ids[0], domain.JobStatusCompleted, "printed")
	require.NoError(t, err)

	completed, err := svc.GetPrintJobs(ctx, ListPrintJobsInput{StoreID: "store-1", Status: domain.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, ids[0], completed[0].JobID)

	_, err = svc.GetPrintJobs(ctx, ListPrintJobsInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetPrintJobs(ctx, ListPrintJobsInput{StoreID: "store-1", Status: "done"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_UpdatePrintJobStatus(t *testing.T) {
	tests := []struct {
		status        domain.JobStatus
		wantCompleted bool
	}{
		{status: domain.JobStatusProcessing, wantCompleted: false},
		{status: domain.JobStatusCompleted, wantCompleted: true},
		{status: domain.JobStatusFailed, wantCompleted: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			svc := newTestService(t)
			ctx := context.Background()

			job, err := svc.CreatePrintJob(ctx, validInput())
			require.NoError(t, err)

			updated, err := svc.UpdatePrintJobStatus(ctx, job.JobID, tt.status, "note")
			require.NoError(t, err)
			assert.Equal(t, tt.status, updated.Status)
			assert.Equal(t, "note", updated.StatusMessage)
			assert.Equal(t, tt.wantCompleted, updated.CompletedAt != nil)
		})
	}

	t.Run("not found", func(t *testing.T) {
		svc := newTestService(t)
		_, err := svc.UpdatePrintJobStatus(context.Background(), "missing", domain.JobStatusCompleted, "")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := newTestService(t)
		_, err := svc.UpdatePrintJobStatus(context.Background(), "missing", "done", "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestService_CancelPrintJob(t *testing.T) {
	tests := []struct {
		name   string
		status domain.JobStatus
		want   bool
	}{
		{name: "pending", status: domain.JobStatusPending, want: true},
		{name: "processing", status: domain.JobStatusProcessing, want: false},
		{name: "completed", status: domain.JobStatusCompleted, want: false},
		{name: "failed", status: domain.JobStatusFailed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			ctx := context.Background()

			job, err := svc.CreatePrintJob(ctx, validInput())
			require.NoError(t, err)

			if tt.status != domain.JobStatusPending {
				_, err = svc.UpdatePrintJobStatus(ctx, job.JobID, tt.status, "before cancel")
				require.NoError(t, err)
			}
			before, err := svc.GetPrintJob(ctx, job.JobID)
			require.NoError(t, err)

			ok, err := svc.CancelPrintJob(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			after, err := svc.GetPrintJob(ctx, job.JobID)
			require.NoError(t, err)

			if tt.want {
				assert.Equal(t, domain.JobStatusFailed, after.Status)
				assert.Equal(t, domain.CancelledMessage, after.StatusMessage)
				assert.NotNil(t, after.CompletedAt)
			} else {
				assert.Equal(t, before, after)
			}
		})
	}

	t.Run("unknown job", func(t *testing.T) {
		svc := newTestService(t)
		ok, err := svc.CancelPrintJob(context.Background(), fmt.Sprintf("missing-%d", 1))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
