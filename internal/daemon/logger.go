// Package daemon contiene la lógica del servicio de Windows.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Log configuration
const (
	maxLogSize     = 5 * 1024 * 1024 // 5MB
	rotateKeepLine = 1000
	flushKeepLines = 50
)

// Non-critical prefixes (filtered when verbose=false)
var nonCriticalPrefixes = []string{
	"[>] Job enviado",
	"[i] Iniciando escucha",
	"[i] Terminando escucha",
	"[+] Cliente conectado",
	"[-] Cliente desconectado",
	"[~] Queue status",
	"[WORKER] 🔄 Processing job",
	"[WORKER] 🖨️ Job",
}

var errLogClosed = errors.New("log file not initialized")

// LogFile is an io.Writer over the service log with size rotation and a verbosity filter.
type LogFile struct {
	path   string
	mirror io.Writer

	mu   sync.Mutex // Protege operaciones de archivo (write, flush, rotate)
	file *os.File

	verboseMu sync.RWMutex
	verbose   bool
}

// OpenLogFile rotates path if it is too large and opens it for appending.
// mirror, when non-nil, receives a copy of every line that passes the filter.
func OpenLogFile(path string, verbose bool, mirror io.Writer) (*LogFile, error) {
	// Auto-rotate if exceeds 5MB
	if err := rotateLogIfNeeded(path); err != nil {
		fmt.Printf("[!] Error en rotación de logs: %v\n", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) //nolint:gosec
	if err != nil {
		return nil, err
	}

	return &LogFile{path: path, mirror: mirror, file: f, verbose: verbose}, nil
}

// Write filters log messages based on verbosity
func (l *LogFile) Write(p []byte) (n int, err error) {
	if !l.Verbose() && isNonCritical(p) {
		return len(p), nil // Discard silently
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, errLogClosed
	}
	if l.mirror != nil {
		_, _ = l.mirror.Write(p)
	}
	return l.file.Write(p)
}

func isNonCritical(p []byte) bool {
	msg := string(p)
	for _, prefix := range nonCriticalPrefixes {
		if strings.Contains(msg, prefix) {
			return true
		}
	}
	return false
}

// SetVerbose changes the verbosity level at runtime
func (l *LogFile) SetVerbose(v bool) {
	l.verboseMu.Lock()
	l.verbose = v
	l.verboseMu.Unlock()
}

// Verbose returns current verbosity level
func (l *LogFile) Verbose() bool {
	l.verboseMu.RLock()
	defer l.verboseMu.RUnlock()
	return l.verbose
}

// Path returns the log file location
func (l *LogFile) Path() string { return l.path }

// Size returns current log file size
func (l *LogFile) Size() int64 {
	info, err := os.Stat(l.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Flush keeps the last 50 lines and clears the rest
func (l *LogFile) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := readLastNLines(l.path, flushKeepLines)
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}

	// ningún Write() puede ocurrir
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return err
		}
		l.file = nil
	}

	if err := os.WriteFile(l.path, []byte(content), 0600); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) //nolint:gosec
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// Close releases the file handle; later writes fail.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Active log file, installed by InitLogger
var (
	activeLogMu sync.RWMutex
	activeLog   *LogFile
)

// InitLogger opens the log file and routes the standard logger into it
func InitLogger(path string, verbose bool, mirror io.Writer) error {
	lf, err := OpenLogFile(path, verbose, mirror)
	if err != nil {
		return err
	}

	activeLogMu.Lock()
	previous := activeLog
	activeLog = lf
	activeLogMu.Unlock()

	log.SetOutput(lf)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// SetVerbose changes the verbosity of the active log at runtime
func SetVerbose(v bool) {
	activeLogMu.RLock()
	lf := activeLog
	activeLogMu.RUnlock()
	if lf == nil {
		return
	}
	lf.SetVerbose(v)
	log.Printf("[OK] Verbosidad de logs: %v", v)
}

// GetVerbose returns the verbosity of the active log
func GetVerbose() bool {
	activeLogMu.RLock()
	defer activeLogMu.RUnlock()
	if activeLog == nil {
		return true
	}
	return activeLog.Verbose()
}

// FlushLogFile trims the active log to its last lines
func FlushLogFile() error {
	activeLogMu.RLock()
	lf := activeLog
	activeLogMu.RUnlock()
	if lf == nil {
		return fmt.Errorf("ruta de log no configurada")
	}
	if err := lf.Flush(); err != nil {
		return err
	}
	log.Println("[OK] Logs limpiados")
	return nil
}

// rotateLogIfNeeded rotates log if exceeds max size
func rotateLogIfNeeded(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.Size() < maxLogSize {
		return nil
	}

	// Rotate: keep last 1000 lines
	lines := readLastNLines(path, rotateKeepLine)
	if len(lines) == 0 {
		return nil
	}

	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0600)
}

// readLastNLines reads last N lines from the final 64KB of a file
func readLastNLines(path string, n int) []string {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return []string{}
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return []string{}
	}

	size := stat.Size()
	if size == 0 {
		return []string{}
	}

	bufSize := int64(64 * 1024)
	if size < bufSize {
		bufSize = size
	}

	buf := make([]byte, bufSize)
	if _, err := file.ReadAt(buf, size-bufSize); err != nil && !errors.Is(err, io.EOF) {
		return []string{}
	}

	allLines := strings.Split(string(buf), "\n")

	// Clean empty lines at end
	for len(allLines) > 0 && allLines[len(allLines)-1] == "" {
		allLines = allLines[:len(allLines)-1]
	}

	// If we started mid-line, discard first partial line
	if size > bufSize && len(allLines) > 0 {
		allLines = allLines[1:]
	}

	if len(allLines) <= n {
		return allLines
	}
	return allLines[len(allLines)-n:]
}
