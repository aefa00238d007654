package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/judwhite/go-svc"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	embed "github.com/adcondev/pdf-daemon"
	"github.com/adcondev/pdf-daemon/internal/auth"
	"github.com/adcondev/pdf-daemon/internal/config"
	"github.com/adcondev/pdf-daemon/internal/metrics"
	"github.com/adcondev/pdf-daemon/internal/printer"
	"github.com/adcondev/pdf-daemon/internal/server"
	"github.com/adcondev/pdf-daemon/internal/sumatra"
	"github.com/adcondev/pdf-daemon/internal/worker"
)

// LoadEnvironment resolves the build environment and applies the YAML overrides
// at path (or next to the binary when path is empty).
func LoadEnvironment(path string) (config.Environment, error) {
	env := config.GetEnvironment(config.BuildEnvironment)
	if path == "" {
		path = config.DefaultOverridesPath()
	}

	env, err := config.LoadOverrides(env, path)
	if err != nil {
		return env, err
	}
	if err := env.Validate(); err != nil {
		return env, fmt.Errorf("invalid configuration: %w", err)
	}
	return env, nil
}

// NewPrinter builds the bounded SumatraPDF printer described by cfg.
func NewPrinter(cfg config.Environment) (*sumatra.Printer, error) {
	return sumatra.NewPrinter(cfg.MaxConcurrentPrints,
		sumatra.WithExecutablePath(cfg.SumatraPath),
		sumatra.WithDefaultTimeout(cfg.PrintTimeout),
	)
}

// Program implements svc.Service interface
type Program struct {
	// ConfigPath points to the YAML overrides; empty uses the file next to the binary.
	ConfigPath string
	// Console mirrors the log file to stdout.
	Console bool

	cfg         config.Environment
	wg          sync.WaitGroup
	quit        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	httpServer  *http.Server
	wsServer    *server.Server
	printWorker *worker.Worker
	printer     *sumatra.Printer
	tools       *ToolDiscovery
	authMgr     *auth.Manager
	startTime   time.Time
}

// Init initializes the service
func (p *Program) Init(_ svc.Environment) error {
	cfg, err := LoadEnvironment(p.ConfigPath)
	if err != nil {
		return err
	}
	p.cfg = cfg

	if err := initLogging(cfg, p.Console); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║   📄 PDF DAEMON - SumatraPDF Print Service                 ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Printf("[INIT] 🚀 Starting service - Environment: %s", cfg.Name)
	log.Printf("[INIT] 📅 Build: %s %s", config.BuildDate, config.BuildTime)
	log.Printf("[INIT] 🖨️ Max concurrent prints: %d, timeout: %v", cfg.MaxConcurrentPrints, cfg.PrintTimeout)

	return nil
}

// Start starts the service
func (p *Program) Start() error {
	p.quit = make(chan struct{})
	p.startTime = time.Now()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	cfg := p.cfg

	pdfPrinter, err := NewPrinter(cfg)
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}
	p.printer = pdfPrinter
	metrics.RegisterGate(p.printer.InFlight)

	// Initialize auth manager (bound to service context for clean shutdown)
	p.authMgr = auth.NewManager(p.ctx, config.PasswordHashB64)

	p.tools = NewToolDiscovery(p.printer.ExecutablePath(), 30*time.Second)
	p.tools.LogStartupDiagnostics()

	// Initialize WebSocket server; status replies read slots through p
	p.wsServer = server.NewServer(server.Config{
		QueueSize:      cfg.QueueCapacity,
		AllowedOrigins: cfg.AllowedOrigins,
		JobsPerMinute:  cfg.JobsPerMinute,
		AuthToken:      config.AuthToken,
	}, p.tools, p)

	// Initialize print worker
	p.printWorker = worker.NewWorker(
		p.wsServer.JobQueue(),
		p.wsServer,
		p.printer,
		worker.Config{DefaultPrinter: cfg.DefaultPrinter, PrintTimeout: cfg.PrintTimeout},
	)
	p.printWorker.Start()

	handler, err := p.routes()
	if err != nil {
		p.printWorker.Stop()
		return err
	}

	p.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		log.Println("┌─────────────────────────────────────────────────────────────┐")
		log.Printf("│ 📄 PDF DAEMON READY - Environment: %-25s│", cfg.Name)
		log.Printf("│ 🔌 WebSocket: ws://%s/ws%-25s│", cfg.ListenAddr, "")
		log.Printf("│ 🌐 Dashboard: http://%s%-27s│", cfg.ListenAddr, "")
		log.Printf("│ 💚 Health:     http://%s/health%-20s│", cfg.ListenAddr, "")
		log.Printf("│ 📊 Metrics:    http://%s/metrics%-19s│", cfg.ListenAddr, "")
		log.Printf("│ 🔐 Auth:       %-43v│", p.authMgr.Enabled())
		log.Println("└─────────────────────────────────────────────────────────────┘")

		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] ❌ Error starting HTTP server: %v", err)
		}
	}()

	return nil
}

// Stop stops the service gracefully
func (p *Program) Stop() error {
	log.Println("[STOP] 🛑 Service shutting down...")

	// 1. Cancel context (stops auth cleanup goroutine)
	if p.cancel != nil {
		p.cancel()
	}

	// 2. Stop print worker (kills SumatraPDF processes still running)
	if p.printWorker != nil {
		p.printWorker.Stop()
	}

	// 3. Graceful HTTP shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.httpServer != nil {
		if err := p.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[STOP] ⚠️ HTTP shutdown error: %v", err)
		}
	}

	// 4. Shutdown WebSocket server
	if p.wsServer != nil {
		p.wsServer.Shutdown()
	}

	if p.quit != nil {
		close(p.quit)
	}
	p.wg.Wait()

	uptime := time.Since(p.startTime)
	log.Printf("[STOP] ✅ Service stopped (uptime: %v)", uptime.Round(time.Second))
	return nil
}

// GateStatus reports print slots; nil-safe before the worker starts.
func (p *Program) GateStatus() printer.GateStatus {
	if p.printWorker == nil {
		return printer.GateStatus{}
	}
	return p.printWorker.GateStatus()
}

// routes builds the HTTP mux with auth boundaries
func (p *Program) routes() (http.Handler, error) {
	// Setup embedded filesystem
	webFS, err := fs.Sub(embed.WebFiles, "internal/assets/web")
	if err != nil {
		return nil, fmt.Errorf("error loading web assets: %w", err)
	}

	// Parse index.html as Go template for token injection
	indexBytes, err := fs.ReadFile(webFS, "index.html")
	if err != nil {
		return nil, fmt.Errorf("error reading index.html: %w", err)
	}
	dashboardTmpl, err := template.New("dashboard").Parse(string(indexBytes))
	if err != nil {
		return nil, fmt.Errorf("error parsing index.html as template: %w", err)
	}

	loginHTML, err := fs.ReadFile(webFS, "login.html")
	if err != nil {
		return nil, fmt.Errorf("error reading login.html: %w", err)
	}

	mux := http.NewServeMux()

	// ── PUBLIC ROUTES (no auth required) ─────────────────────
	mux.Handle("/css/", http.FileServer(http.FS(webFS)))
	mux.Handle("/js/", http.FileServer(http.FS(webFS)))
	mux.HandleFunc("/login", p.authMgr.LoginPage(loginHTML))
	mux.HandleFunc("/auth/login", p.authMgr.HandleLogin)
	mux.HandleFunc("/auth/logout", p.authMgr.HandleLogout)
	mux.HandleFunc("/ws", p.wsServer.HandleWebSocket) // WS is public; token validates inside per-message
	mux.HandleFunc("/health", p.handleHealth)         // Health is public for monitoring tools
	mux.Handle("/metrics", promhttp.Handler())

	// ── PROTECTED ROUTES (session required for dashboard) ────
	mux.HandleFunc("/logs/flush", p.authMgr.Require(handleFlushLogs))
	mux.HandleFunc("/logs/verbose", p.authMgr.Require(handleVerbose))
	mux.HandleFunc("/", p.authMgr.Require(serveDashboard(dashboardTmpl)))

	return mux, nil
}

// handleHealth reports queue, worker, slot and SumatraPDF state
func (p *Program) handleHealth(w http.ResponseWriter, _ *http.Request) {
	current, capacity := p.wsServer.QueueStatus()
	stats := p.printWorker.Stats()

	var utilization float64
	if capacity > 0 {
		utilization = float64(current) / float64(capacity) * 100
	}

	response := HealthResponse{
		Status: "ok",
		Queue: QueueStatus{
			Current:     current,
			Capacity:    capacity,
			Utilization: utilization,
		},
		Worker: WorkerStatus{
			Running:       stats.IsRunning,
			JobsProcessed: stats.JobsProcessed,
			JobsFailed:    stats.JobsFailed,
			JobsTimedOut:  stats.JobsTimedOut,
			JobsActive:    stats.JobsActive,
		},
		Slots: p.printWorker.GateStatus(),
		Tool:  p.tools.Summary(false),
		Build: BuildInfo{
			Env:  config.BuildEnvironment,
			Date: config.BuildDate,
			Time: config.BuildTime,
		},
		Uptime: int(time.Since(p.startTime).Seconds()),
	}

	if response.Tool.Status == "error" || !stats.IsRunning {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(response)
}

func initLogging(envConfig config.Environment, console bool) error {
	logPath := envConfig.LogPath(os.Getenv("PROGRAMDATA"))
	logDir := filepath.Dir(logPath)

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	var mirror io.Writer
	if console {
		mirror = os.Stdout
	}
	if err := InitLogger(logPath, envConfig.Verbose, mirror); err != nil {
		return err
	}

	log.Printf("[INIT] 📁 Log file: %s", logPath)
	return nil
}

// handleFlushLogs trims the service log (POST /logs/flush).
func handleFlushLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := FlushLogFile(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVerbose reports or changes log verbosity (POST /logs/verbose?enabled=true).
func handleVerbose(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		enabled, err := strconv.ParseBool(r.FormValue("enabled"))
		if err != nil {
			http.Error(w, "enabled must be true or false", http.StatusBadRequest)
			return
		}
		SetVerbose(enabled)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"verbose": GetVerbose()})
}

// serveDashboard renders the dashboard template with token injection.
func serveDashboard(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct{ AuthToken string }{AuthToken: config.AuthToken}
		if err := tmpl.Execute(w, data); err != nil {
			log.Printf("[X] Error rendering dashboard: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
