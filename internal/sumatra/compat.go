package sumatra

import (
	"context"
	"time"
)

// PrintFile prints filePath on printerName.
//
// Deprecated: use Print with NewPrintingOptions instead.
func (p *Printer) PrintFile(ctx context.Context, filePath, printerName string, timeout time.Duration) error {
	return p.Print(ctx, NewPrintingOptions(printerName, filePath), timeout)
}
