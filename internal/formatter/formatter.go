// Package formatter renders print content into printer control sequences.
package formatter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

// Language selects the printer's CJK character set.
type Language string

const (
	LanguageTraditionalChinese Language = "zh-TW"
	LanguageSimplifiedChinese  Language = "zh-CN"

	DefaultLanguage = LanguageTraditionalChinese
)

var languageSequences = map[Language]string{
	LanguageTraditionalChinese: "\x1c&\x1cC\x01",
	LanguageSimplifiedChinese:  "\x1c&\x1cC\x00",
}

const timeLayout = "2006-01-02 15:04"

// ParseLanguage resolves a configured language value. Unknown values fall back to
// DefaultLanguage with ok == false.
func ParseLanguage(v string) (Language, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), "_", "-")) {
	case "":
		return DefaultLanguage, true
	case "zh-tw", "zh-hant", "big5":
		return LanguageTraditionalChinese, true
	case "zh-cn", "zh-hans", "gbk":
		return LanguageSimplifiedChinese, true
	}
	return DefaultLanguage, false
}

// Formatter converts PrintContent into a control-sequence string. Output depends
// only on its inputs.
type Formatter struct {
	logger *slog.Logger
}

// New creates a Formatter. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{logger: logger}
}

// Preamble returns the reset and character-set sequence for lang.
func (f *Formatter) Preamble(lang Language) string {
	return Reset + languageSequences[f.resolve(lang)]
}

// HasPreamble reports whether raw already starts with a printer reset.
func HasPreamble(raw string) bool {
	return strings.HasPrefix(raw, Reset)
}

func (f *Formatter) resolve(lang Language) Language {
	resolved, ok := ParseLanguage(string(lang))
	if !ok {
		f.logger.Warn("Unrecognized printer language, using default",
			slog.String("language", string(lang)),
			slog.String("default", string(DefaultLanguage)),
		)
	}
	return resolved
}

// Format renders content for a printer configured with lang.
func (f *Formatter) Format(content domain.PrintContent, lang Language) string {
	opts := content.Options
	if opts == nil {
		opts = &domain.PrintOptions{}
	}

	t := newTicket(columnsFor(opts.PaperSize))
	t.raw(f.Preamble(lang))
	applyFont(t, opts)

	switch body := content.Body.(type) {
	case domain.OrderTicket:
		writeOrder(t, body)
	case domain.Receipt:
		writeReceipt(t, body)
	case domain.Label:
		writeLabel(t, body)
	case domain.Text:
		t.raw(body.Text)
	case domain.Custom:
		t.line(fmt.Sprintf("Unsupported content type: %s", body.ContentType()))
	case nil:
		t.line("Unsupported content type: none")
	}

	if opts.OpenCashDrawer {
		t.raw(CashDrawer)
	}
	if opts.ShouldCut() {
		t.raw(CutSequence)
	}
	return t.String()
}

// FormatOrder renders a kitchen slip with default options.
func (f *Formatter) FormatOrder(order domain.OrderTicket, lang Language) string {
	return f.Format(domain.PrintContent{Body: order, Copies: 1}, lang)
}

// FormatReceipt renders a customer receipt with default options.
func (f *Formatter) FormatReceipt(receipt domain.Receipt, lang Language) string {
	return f.Format(domain.PrintContent{Body: receipt, Copies: 1}, lang)
}

func applyFont(t *ticket, opts *domain.PrintOptions) {
	if strings.EqualFold(opts.FontWeight, "bold") {
		t.bold = true
		t.raw(boldOn)
	}
	switch strings.ToLower(opts.FontSize) {
	case "large":
		t.size = sizeDouble
		t.raw(sizeDouble)
	case "small":
		t.raw(fontB)
	default:
		t.raw(fontA)
	}
}

func writeOrder(t *ticket, o domain.OrderTicket) {
	t.heading("KITCHEN ORDER")
	t.line("Order #: " + o.OrderNumber)
	if !o.OrderTime.IsZero() {
		t.line("Time: " + o.OrderTime.Format(timeLayout))
	}
	if o.TableNumber != "" {
		t.emphasis("Table: " + o.TableNumber)
	}
	t.rule()

	for _, item := range o.Items {
		t.large(fmt.Sprintf("%s x %d", item.Name, item.Quantity))
		writeItemDetails(t, item)
	}
	t.rule()

	if o.Notes != "" {
		t.line("Notes: " + o.Notes)
	}
	if o.Priority != "" && !strings.EqualFold(o.Priority, domain.PriorityNormal) {
		t.emphasis("PRIORITY: " + strings.ToUpper(o.Priority))
	}
}

func writeReceipt(t *ticket, r domain.Receipt) {
	t.heading(r.StoreName)
	if r.StoreAddress != "" {
		t.center(r.StoreAddress)
	}
	if r.StorePhone != "" {
		t.center("Tel: " + r.StorePhone)
	}
	t.rule()

	t.line("Order #: " + r.OrderNumber)
	if !r.OrderTime.IsZero() {
		t.line("Time: " + r.OrderTime.Format(timeLayout))
	}
	if r.TableNumber != "" {
		t.line("Table: " + r.TableNumber)
	}
	t.rule()

	for _, item := range r.Items {
		t.pair(fmt.Sprintf("%s x %d", item.Name, item.Quantity), money(item.LineTotal()))
		writeItemDetails(t, item)
	}
	t.rule()

	t.pair("Subtotal", money(r.Subtotal))
	if r.Tax != 0 {
		t.pair("Tax", money(r.Tax))
	}
	if r.Discount != 0 {
		t.pair("Discount", "-"+money(r.Discount))
	}
	t.raw(boldOn)
	t.pair("Total", money(r.Total))
	if !t.bold {
		t.raw(boldOff)
	}
	t.rule()

	if r.PaymentMethod != "" {
		t.line("Payment: " + r.PaymentMethod)
	}
	if r.PaymentStatus != "" {
		t.line("Status: " + r.PaymentStatus)
	}
	if r.Footer != "" {
		t.center(r.Footer)
	}
}

func writeLabel(t *ticket, l domain.Label) {
	if l.Title != "" {
		t.raw(alignCenter)
		t.emphasis(l.Title)
		t.raw(alignLeft)
	}
	for _, line := range strings.Split(l.Body, "\n") {
		t.line(line)
	}
	if l.QRCode != "" {
		t.qrCode(l.QRCode)
	}
	if l.Barcode != "" {
		t.barcode(l.Barcode)
	}
}

func writeItemDetails(t *ticket, item domain.LineItem) {
	for _, opt := range item.Options {
		t.line("  + " + opt)
	}
	if item.Notes != "" {
		t.line("  * " + item.Notes)
	}
}

// money renders prices with two decimals and no currency symbol.
func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
