package dispatch

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// transcode converts a UTF-8 payload to the printer's code page. Characters the
// code page lacks are replaced rather than failing the print.
func transcode(raw, charset string) (string, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return raw, nil
	case "big5":
		enc = traditionalchinese.Big5
	case "gbk", "gb2312":
		enc = simplifiedchinese.GBK
	case "gb18030":
		enc = simplifiedchinese.GB18030
	default:
		return "", fmt.Errorf("unsupported encoding %q", charset)
	}

	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).String(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload as %s: %w", charset, err)
	}
	return out, nil
}
