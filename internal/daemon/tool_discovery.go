package daemon

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"
	"time"

	"github.com/adcondev/pdf-daemon/internal/printer"
)

// ToolDiscovery checks the SumatraPDF executable with caching
type ToolDiscovery struct {
	path        string
	cacheTTL    time.Duration
	stat        func(string) (fs.FileInfo, error)
	cache       *printer.ToolSummary
	lastRefresh time.Time
	mu          sync.RWMutex
}

// NewToolDiscovery creates a discovery service for the executable at path
func NewToolDiscovery(path string, ttl time.Duration) *ToolDiscovery {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ToolDiscovery{
		path:     path,
		cacheTTL: ttl,
		stat:     os.Stat,
	}
}

// Path returns the executable location being checked
func (td *ToolDiscovery) Path() string { return td.path }

// Summary returns the cached result or re-checks the file if stale
func (td *ToolDiscovery) Summary(forceRefresh bool) printer.ToolSummary {
	td.mu.RLock()
	if !forceRefresh && td.fresh() {
		result := *td.cache
		td.mu.RUnlock()
		return result
	}
	td.mu.RUnlock()

	td.mu.Lock()
	defer td.mu.Unlock()

	// Double-check after acquiring write lock
	if !forceRefresh && td.fresh() {
		return *td.cache
	}

	summary := td.inspect()
	td.cache = &summary
	td.lastRefresh = time.Now()
	return summary
}

// fresh must be called with td.mu held
func (td *ToolDiscovery) fresh() bool {
	return td.cache != nil && time.Since(td.lastRefresh) < td.cacheTTL
}

func (td *ToolDiscovery) inspect() printer.ToolSummary {
	summary := printer.ToolSummary{Path: td.path}

	info, err := td.stat(td.path)
	switch {
	case err != nil:
		summary.Status = "error"
		summary.Error = err.Error()
	case info.IsDir():
		summary.Status = "error"
		summary.Error = fmt.Sprintf("%s is a directory", td.path)
	case info.Size() == 0:
		summary.Status = "warning"
		summary.Found = true
		summary.Error = "executable is empty"
	default:
		summary.Status = "ok"
		summary.Found = true
		summary.SizeBytes = info.Size()
	}
	return summary
}

// LogStartupDiagnostics logs SumatraPDF availability at service start
func (td *ToolDiscovery) LogStartupDiagnostics() {
	summary := td.Summary(true)

	log.Println("[TOOL] ══════════════════════════════════════════════════")
	switch summary.Status {
	case "ok":
		log.Printf("[TOOL] 📄 SumatraPDF found: %s (%d bytes)", summary.Path, summary.SizeBytes)
	case "warning":
		log.Printf("[TOOL] ⚠️ SumatraPDF at %s looks wrong: %s", summary.Path, summary.Error)
	default:
		log.Printf("[TOOL] ❌ SumatraPDF not available at %s: %s", summary.Path, summary.Error)
		log.Println("[TOOL] ⚠️ Print jobs will fail until the executable is installed")
	}
	log.Println("[TOOL] ══════════════════════════════════════════════════")
}
