package printing

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/cloudprint/internal/dispatch"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

// Registry hands out one Service per store, built lazily from a Provider.
// Clients and their rate limiters are reused across calls for the same store.
type Registry struct {
	provider *Provider
	logger   *slog.Logger
	opts     []Option

	mu       sync.Mutex
	services map[string]*Service
	devices  map[string]Sender
}

// NewRegistry creates a Registry. opts are applied to every Service it builds.
func NewRegistry(provider *Provider, logger *slog.Logger, opts ...Option) *Registry {
	return &Registry{
		provider: provider,
		logger:   logger,
		opts:     opts,
		services: make(map[string]*Service),
		devices:  make(map[string]Sender),
	}
}

// ForStore returns the orchestration service for storeID
func (r *Registry) ForStore(storeID string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[storeID]; ok {
		return svc
	}

	svc := NewService(r.provider.ForStore(storeID), r.logger.With(slog.String("store_id", storeID)), r.opts...)
	r.services[storeID] = svc
	return svc
}

// Resolve returns the sender for a job. A non-empty printerID replaces the
// serial of the role's printer and keeps its account and secret.
func (r *Registry) Resolve(storeID string, role domain.PrinterType, printerID string) (Sender, bool) {
	if printerID == "" {
		return r.ForStore(storeID).Sender(role)
	}

	cfg, ok := r.provider.Lookup(storeID, role)
	if !ok {
		return nil, false
	}

	key := storeID + "|" + string(role) + "|" + printerID

	r.mu.Lock()
	defer r.mu.Unlock()

	if sender, ok := r.devices[key]; ok {
		return sender, true
	}

	cfg.Serial = printerID
	var sender Sender
	client, err := dispatch.NewClient(cfg, r.logger)
	if err != nil {
		sender = unavailableSender{err: fmt.Errorf("printer %s unavailable: %w", printerID, err)}
	} else {
		sender = client
	}
	r.devices[key] = sender
	return sender, true
}
