package output

import (
	"fmt"
	"io"
)

// BannerKind classifies a status banner.
type BannerKind string

// Banner kinds.
const (
	BannerInfo    BannerKind = "info"
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
)

// BannerOutput is the JSON shape of a status banner.
type BannerOutput struct {
	Status  BannerKind `json:"status"`
	Message string     `json:"message"`
}

// Banner writes the single status line shown after an intent completes.
func (f *Formatter) Banner(kind BannerKind, message string) error {
	if message == "" {
		return nil
	}
	if f.format == FormatJSON {
		return writeJSON(f.writer, BannerOutput{Status: kind, Message: message})
	}

	prefix, color := bannerStyle(kind)
	if f.color {
		_, err := fmt.Fprintf(f.writer, "%s%s%s %s\n", color, prefix, ansiReset, message)
		return err
	}
	_, err := fmt.Fprintf(f.writer, "%s %s\n", prefix, message)
	return err
}

func bannerStyle(kind BannerKind) (string, string) {
	switch kind {
	case BannerSuccess:
		return "[ok]", ansiGreen
	case BannerError:
		return "[error]", ansiRed
	default:
		return "[info]", ansiCyan
	}
}

// Warnf prints a warning to w regardless of output format.
// Used for notices that must not corrupt JSON on stdout.
func Warnf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "warning: "+format+"\n", args...)
}
