// Package dispatch delivers formatted payloads to the cloud printer gateway.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/cloudprint/internal/formatter"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://api.feieyun.cn/Api/Open/"
	DefaultAPIName  = "Open_printMsg"
	DefaultCopies   = 1
	DefaultTimeout  = 5 * time.Second

	maxResponseBytes = 1 << 20
	formContentType  = "application/x-www-form-urlencoded"
)

// Config identifies one printer on the gateway.
type Config struct {
	Account    string
	Serial     string
	SecretKey  string
	Language   string
	Endpoint   string
	APIName    string
	Copies     int
	Encoding   string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables throttling
	HTTPClient *http.Client
}

// Response is the gateway's JSON envelope. Ret 0 means success.
type Response struct {
	Ret                int             `json:"ret"`
	Msg                string          `json:"msg"`
	Data               json.RawMessage `json:"data,omitempty"`
	ServerExecutedTime int             `json:"serverExecutedTime,omitempty"`
}

// Client sends payloads to exactly one printer. It never retries.
type Client struct {
	config     Config
	language   formatter.Language
	httpClient *http.Client
	limiter    *rate.Limiter
	formatter  *formatter.Formatter
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient validates credentials and applies defaults for everything else.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	var missing []string
	if cfg.Account == "" {
		missing = append(missing, "account")
	}
	if cfg.Serial == "" {
		missing = append(missing, "serial")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.APIName == "" {
		cfg.APIName = DefaultAPIName
	}
	if cfg.Copies < 1 {
		cfg.Copies = DefaultCopies
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		config:     cfg,
		language:   formatter.Language(cfg.Language),
		httpClient: httpClient,
		formatter:  formatter.New(logger),
		logger:     logger.With(slog.String("printer_sn", cfg.Serial)),
		now:        time.Now,
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return c, nil
}

// Language is the printer's configured content language.
func (c *Client) Language() formatter.Language {
	return c.language
}

// Serial is the device serial this client targets.
func (c *Client) Serial() string {
	return c.config.Serial
}

type sendOptions struct {
	copies   int
	encoding string
}

// SendOption overrides per-call delivery settings.
type SendOption func(*sendOptions)

// WithCopies overrides the configured copy count when n >= 1.
func WithCopies(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 1 {
			o.copies = n
		}
	}
}

// WithEncoding overrides the configured code page when charset is not empty.
func WithEncoding(charset string) SendOption {
	return func(o *sendOptions) {
		if charset != "" {
			o.encoding = charset
		}
	}
}

// Send posts raw to the gateway and returns the parsed envelope on success.
func (c *Client) Send(ctx context.Context, raw string, opts ...SendOption) (*Response, error) {
	so := sendOptions{copies: c.config.Copies, encoding: c.config.Encoding}
	for _, opt := range opts {
		opt(&so)
	}

	if !formatter.HasPreamble(raw) {
		raw = c.formatter.Preamble(c.language) + raw
	}

	content, err := transcode(raw, so.encoding)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	stime := c.now().Unix()
	form := url.Values{}
	form.Set("user", c.config.Account)
	form.Set("stime", strconv.FormatInt(stime, 10))
	form.Set("sig", Signature(c.config.Account, c.config.SecretKey, stime))
	form.Set("apiname", c.config.APIName)
	form.Set("sn", c.config.Serial)
	form.Set("content", content)
	form.Set("times", strconv.Itoa(so.copies))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", formContentType)

	c.logger.Debug("Sending print payload to gateway",
		slog.String("apiname", c.config.APIName),
		slog.Int("copies", so.copies),
		slog.Int("content_bytes", len(content)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("failed to decode gateway response: %w", err),
		}
	}

	if envelope.Ret != 0 {
		return nil, &BusinessError{
			Code:    envelope.Ret,
			Message: envelope.Msg,
			Data:    diagnostic(envelope.Data),
		}
	}

	c.logger.Info("Gateway accepted print payload",
		slog.String("apiname", c.config.APIName),
		slog.Int("server_time_ms", envelope.ServerExecutedTime),
	)

	return &envelope, nil
}

// diagnostic flattens the server-supplied data field for error messages.
func diagnostic(data json.RawMessage) string {
	if len(data) == 0 || string(data) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return string(data)
}
