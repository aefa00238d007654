// Package sumatra runs SumatraPDF to print documents, bounding how many
// instances run at once and killing the ones that exceed their timeout.
package sumatra

import (
	"strconv"
	"strings"
)

// PrintingOptions describes a single print request.
//
// The zero value prints nothing useful but is valid. Values are comparable, so
// two options are equal with == exactly when printer, file and copies match,
// and they can be used as map keys.
type PrintingOptions struct {
	printerName string
	filePath    string
	copies      uint
	hasCopies   bool
}

// NewPrintingOptions stores printerName and filePath verbatim.
// Use network form for shared printers, e.g. `\\printserver\frontdesk`.
func NewPrintingOptions(printerName, filePath string) PrintingOptions {
	return PrintingOptions{
		printerName: printerName,
		filePath:    filePath,
	}
}

// WithCopies returns a copy of o that requests n copies.
func (o PrintingOptions) WithCopies(n uint) PrintingOptions {
	o.copies = n
	o.hasCopies = true
	return o
}

// PrinterName returns the target printer, empty for the system default.
func (o PrintingOptions) PrinterName() string { return o.printerName }

// FilePath returns the document path.
func (o PrintingOptions) FilePath() string { return o.filePath }

// Copies returns the requested copy count and whether one was set.
func (o PrintingOptions) Copies() (uint, bool) { return o.copies, o.hasCopies }

// Equal reports whether o and other describe the same request.
func (o PrintingOptions) Equal(other PrintingOptions) bool {
	return o == other
}

// ArgumentString renders the SumatraPDF command line:
//
//	-s [-print-to "<printer>"] [-print-settings "<copies>x"] ["<file>"]
//
// Values are wrapped in double quotes as-is; quotes inside a printer name or
// path are not escaped.
func (o PrintingOptions) ArgumentString() string {
	parts := []string{
		"-s",
		formatNonEmpty(o.printerName, func(s string) string { return `-print-to "` + s + `"` }),
		"",
		formatNonEmpty(o.filePath, func(s string) string { return `"` + s + `"` }),
	}
	if o.hasCopies {
		parts[2] = `-print-settings "` + strconv.FormatUint(uint64(o.copies), 10) + `x"`
	}
	return joinNonEmpty(" ", parts)
}

// String returns ArgumentString.
func (o PrintingOptions) String() string {
	return o.ArgumentString()
}

func formatNonEmpty(s string, format func(string) string) string {
	if s == "" {
		return ""
	}
	return format(s)
}

func joinNonEmpty(sep string, parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
