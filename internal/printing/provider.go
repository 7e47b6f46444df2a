package printing

import (
	"github.com/cuongbtq/cloudprint/internal/config"
	"github.com/cuongbtq/cloudprint/internal/dispatch"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

// LabelAPIName is the gateway operation for label printers.
const LabelAPIName = "Open_printLabelMsg"

// Provider resolves printer configuration per store and role. Store entries
// override the defaults role by role.
type Provider struct {
	defaults map[domain.PrinterType]dispatch.Config
	stores   map[string]map[domain.PrinterType]dispatch.Config
}

// NewProvider builds a Provider from the printing configuration section
func NewProvider(cfg config.PrintingConfig) *Provider {
	p := &Provider{
		defaults: make(map[domain.PrinterType]dispatch.Config, len(cfg.Defaults)),
		stores:   make(map[string]map[domain.PrinterType]dispatch.Config, len(cfg.Stores)),
	}

	for role, pc := range cfg.Defaults {
		p.defaults[domain.PrinterType(role)] = toDispatchConfig(domain.PrinterType(role), pc, cfg)
	}

	for store, roles := range cfg.Stores {
		m := make(map[domain.PrinterType]dispatch.Config, len(roles))
		for role, pc := range roles {
			m[domain.PrinterType(role)] = toDispatchConfig(domain.PrinterType(role), pc, cfg)
		}
		p.stores[store] = m
	}

	return p
}

func toDispatchConfig(role domain.PrinterType, pc config.PrinterConfig, cfg config.PrintingConfig) dispatch.Config {
	language := pc.Language
	if language == "" {
		language = cfg.DefaultLanguage
	}

	apiName := pc.APIName
	if apiName == "" && role == domain.PrinterTypeLabel {
		apiName = LabelAPIName
	}

	return dispatch.Config{
		Account:   pc.Account,
		Serial:    pc.Serial,
		SecretKey: pc.SecretKey,
		Language:  language,
		Endpoint:  pc.Endpoint,
		APIName:   apiName,
		Copies:    pc.Copies,
		Encoding:  pc.Encoding,
		Timeout:   cfg.GatewayTimeout,
		RateLimit: cfg.RateLimit,
	}
}

// Lookup returns the printer for role in storeID
func (p *Provider) Lookup(storeID string, role domain.PrinterType) (dispatch.Config, bool) {
	if roles, ok := p.stores[storeID]; ok {
		if cfg, ok := roles[role]; ok {
			return cfg, true
		}
	}
	cfg, ok := p.defaults[role]
	return cfg, ok
}

// ForStore returns every role configured for storeID
func (p *Provider) ForStore(storeID string) map[domain.PrinterType]dispatch.Config {
	out := make(map[domain.PrinterType]dispatch.Config, len(p.defaults))
	for role, cfg := range p.defaults {
		out[role] = cfg
	}
	for role, cfg := range p.stores[storeID] {
		out[role] = cfg
	}
	return out
}
