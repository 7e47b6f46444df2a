package formatter

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Control sequences understood by the gateway's thermal printers.
const (
	Reset         = "\x1b@"
	CutSequence   = "\x1dV\x42\x00"
	CashDrawer    = "\x1bp\x00\x19\x78"
	boldOn        = "\x1bE\x01"
	boldOff       = "\x1bE\x00"
	alignLeft     = "\x1ba\x00"
	alignCenter   = "\x1ba\x01"
	sizeNormal    = "\x1d!\x00"
	sizeDouble    = "\x1d!\x11"
	fontA         = "\x1bM\x00"
	fontB         = "\x1bM\x01"
	barcodeHeight = "\x1dh\x50"
	barcodeHRI    = "\x1dH\x02"
)

const (
	columns58mm = 32
	columns80mm = 48
)

// ticket accumulates control sequences and text lines for one print.
type ticket struct {
	b     strings.Builder
	width int
	bold  bool
	size  string
}

func newTicket(width int) *ticket {
	return &ticket{width: width, size: sizeNormal}
}

func (t *ticket) raw(s string) {
	t.b.WriteString(s)
}

func (t *ticket) line(s string) {
	t.b.WriteString(s)
	t.b.WriteByte('\n')
}

func (t *ticket) rule() {
	t.line(strings.Repeat("-", t.width))
}

func (t *ticket) center(s string) {
	t.raw(alignCenter)
	t.line(s)
	t.raw(alignLeft)
}

func (t *ticket) emphasis(s string) {
	t.raw(boldOn)
	t.line(s)
	if !t.bold {
		t.raw(boldOff)
	}
}

func (t *ticket) heading(s string) {
	t.raw(alignCenter + sizeDouble + boldOn)
	t.line(s)
	t.raw(t.size + alignLeft)
	if !t.bold {
		t.raw(boldOff)
	}
}

func (t *ticket) large(s string) {
	t.raw(sizeDouble)
	t.line(s)
	t.raw(t.size)
}

// pair writes left and right on one line, right-aligned to the paper width.
func (t *ticket) pair(left, right string) {
	gap := t.width - displayWidth(left) - displayWidth(right)
	if gap < 1 {
		gap = 1
	}
	t.line(left + strings.Repeat(" ", gap) + right)
}

// qrCodeMaxData is the largest payload the two-byte store length can describe.
const qrCodeMaxData = 0xFFFF - 3

// qrCode prints a model 2 QR symbol; oversized payloads are printed as text.
func (t *ticket) qrCode(data string) {
	if len(data) > qrCodeMaxData {
		t.line(data)
		return
	}
	n := len(data) + 3
	t.raw(alignCenter)
	t.raw("\x1d(k\x04\x001A2\x00")
	t.raw("\x1d(k\x03\x001C\x06")
	t.raw("\x1d(k\x03\x001E1")
	t.raw("\x1d(k" + string([]byte{byte(n % 256), byte(n / 256)}) + "1P0" + data)
	t.raw("\x1d(k\x03\x001Q0")
	t.raw("\n" + alignLeft)
}

// barcode prints CODE128 set B; payloads the command cannot carry are printed as text.
func (t *ticket) barcode(data string) {
	payload := "{B" + data
	if len(payload) > 255 || !code128B(data) {
		t.line(data)
		return
	}
	t.raw(alignCenter + barcodeHeight + barcodeHRI)
	t.raw("\x1dkI" + string([]byte{byte(len(payload))}) + payload)
	t.raw("\n" + alignLeft)
}

// code128B reports whether every byte is in the printable ASCII range set B encodes.
func code128B(data string) bool {
	for i := 0; i < len(data); i++ {
		if data[i] < 0x20 || data[i] > 0x7e {
			return false
		}
	}
	return true
}

func (t *ticket) String() string {
	return t.b.String()
}

// displayWidth counts East Asian wide and fullwidth runes as two columns.
func displayWidth(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func columnsFor(paperSize string) int {
	switch strings.ToLower(strings.TrimSpace(paperSize)) {
	case "80mm", "80":
		return columns80mm
	default:
		return columns58mm
	}
}
