package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ContentType discriminates the PrintContent variants.
type ContentType string

const (
	ContentTypeOrder   ContentType = "order"
	ContentTypeReceipt ContentType = "receipt"
	ContentTypeLabel   ContentType = "label"
	ContentTypeText    ContentType = "text"
	ContentTypeCustom  ContentType = "custom"
)

// Content is the closed set of printable payloads. Only types in this package
// implement it.
type Content interface {
	ContentType() ContentType
	isContent()
}

// LineItem is one ordered item.
type LineItem struct {
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Price    float64  `json:"price,omitempty"`
	Options  []string `json:"options,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// LineTotal is price × quantity.
func (i LineItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// PriorityNormal is the default order priority; it is never printed.
const PriorityNormal = "normal"

// OrderTicket is a kitchen slip.
type OrderTicket struct {
	OrderNumber string     `json:"order_number"`
	OrderTime   time.Time  `json:"order_time"`
	TableNumber string     `json:"table_number,omitempty"`
	Items       []LineItem `json:"items"`
	Notes       string     `json:"notes,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// Receipt is a customer receipt.
type Receipt struct {
	StoreName     string     `json:"store_name"`
	StoreAddress  string     `json:"store_address,omitempty"`
	StorePhone    string     `json:"store_phone,omitempty"`
	OrderNumber   string     `json:"order_number"`
	OrderTime     time.Time  `json:"order_time"`
	TableNumber   string     `json:"table_number,omitempty"`
	Items         []LineItem `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Tax           float64    `json:"tax,omitempty"`
	Discount      float64    `json:"discount,omitempty"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	PaymentStatus string     `json:"payment_status,omitempty"`
	Footer        string     `json:"footer,omitempty"`
}

// Label is a sticker label with optional machine-readable payloads.
type Label struct {
	Title   string `json:"title,omitempty"`
	Body    string `json:"body"`
	QRCode  string `json:"qr_code,omitempty"`
	Barcode string `json:"barcode,omitempty"`
}

// Text is printed verbatim.
type Text struct {
	Text string `json:"text"`
}

// Custom carries any content kind the formatter has no layout for.
type Custom struct {
	Type string          `json:"-"`
	Data json.RawMessage `json:"-"`
}

func (OrderTicket) ContentType() ContentType { return ContentTypeOrder }
func (Receipt) ContentType() ContentType     { return ContentTypeReceipt }
func (Label) ContentType() ContentType       { return ContentTypeLabel }
func (Text) ContentType() ContentType        { return ContentTypeText }

func (c Custom) ContentType() ContentType {
	if c.Type == "" {
		return ContentTypeCustom
	}
	return ContentType(c.Type)
}

func (OrderTicket) isContent() {}
func (Receipt) isContent()     {}
func (Label) isContent()       {}
func (Text) isContent()        {}
func (Custom) isContent()      {}

// PrintOptions tune rendering and delivery.
type PrintOptions struct {
	PaperSize      string `json:"paper_size,omitempty"`
	Orientation    string `json:"orientation,omitempty"`
	FontWeight     string `json:"font_weight,omitempty"`
	FontSize       string `json:"font_size,omitempty"`
	Density        *int   `json:"density,omitempty"`
	CutPaper       *bool  `json:"cut_paper,omitempty"`
	OpenCashDrawer bool   `json:"open_cash_drawer,omitempty"`
	Encoding       string `json:"encoding,omitempty"`
}

// ShouldCut is true unless cutting was explicitly disabled.
func (o *PrintOptions) ShouldCut() bool {
	return o == nil || o.CutPaper == nil || *o.CutPaper
}

// PrintContent is the tagged payload of a job.
type PrintContent struct {
	Body    Content
	Copies  int
	Options *PrintOptions
}

// Type returns the discriminator of the wrapped body.
func (c PrintContent) Type() ContentType {
	if c.Body == nil {
		return ""
	}
	return c.Body.ContentType()
}

// Validate checks the invariants that do not depend on the content kind.
func (c PrintContent) Validate() error {
	if c.Body == nil {
		return NewValidationError("content", "is required")
	}
	if c.Copies < 1 {
		return NewValidationError("content.copies", "must be at least 1")
	}
	if c.Options != nil && c.Options.Density != nil {
		if d := *c.Options.Density; d < 0 || d > 100 {
			return NewValidationError("content.print_options.density", "must be between 0 and 100")
		}
	}
	return nil
}

type printContentJSON struct {
	Type    ContentType     `json:"type"`
	Data    json.RawMessage `json:"data"`
	Copies  int             `json:"copies,omitempty"`
	Options *PrintOptions   `json:"print_options,omitempty"`
}

func (c PrintContent) MarshalJSON() ([]byte, error) {
	var data []byte
	var err error
	switch body := c.Body.(type) {
	case nil:
		data = []byte("null")
	case Custom:
		data = body.Data
		if len(data) == 0 {
			data = []byte("null")
		}
	default:
		data, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	return json.Marshal(printContentJSON{
		Type:    c.Type(),
		Data:    data,
		Copies:  c.Copies,
		Options: c.Options,
	})
}

func (c *PrintContent) UnmarshalJSON(b []byte) error {
	var raw printContentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		return errors.New("content type is required")
	}

	body, err := decodeBody(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("failed to decode %s content: %w", raw.Type, err)
	}

	c.Body = body
	c.Copies = raw.Copies
	c.Options = raw.Options
	return nil
}

func decodeBody(t ContentType, data json.RawMessage) (Content, error) {
	switch t {
	case ContentTypeOrder:
		var v OrderTicket
		if err := unmarshalData(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ContentTypeReceipt:
		var v Receipt
		if err := unmarshalData(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ContentTypeLabel:
		var v Label
		if err := unmarshalData(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ContentTypeText:
		var v Text
		if err := unmarshalData(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return Custom{Type: string(t), Data: data}, nil
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
