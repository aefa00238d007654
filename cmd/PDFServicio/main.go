// Package main es el punto de entrada del PDF Daemon.
// PDF Daemon es un servicio de Windows que recibe solicitudes de impresión
// vía WebSocket y las envía a la impresora usando SumatraPDF.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/judwhite/go-svc"

	"github.com/adcondev/pdf-daemon/internal/daemon"
)

func main() {
	// Parse flags
	consoleMode := flag.Bool("console", false, "Run in console mode (not as service)")
	configPath := flag.String("config", "", "Path to the YAML overrides (default: pdfservicio.yaml next to the binary)")
	printFile := flag.String("print", "", "Print this PDF once through SumatraPDF and exit")
	printerName := flag.String("printer", "", "Printer for -print (default: configured printer)")
	copies := flag.Uint("copies", 0, "Copies for -print (omit to let SumatraPDF decide)")
	timeout := flag.Duration("timeout", 0, "Timeout for -print (default: configured timeout)")
	flag.Parse()

	if *printFile != "" {
		args := printOnceArgs{
			ConfigPath: *configPath,
			File:       *printFile,
			Printer:    *printerName,
			Timeout:    *timeout,
		}
		if flagGiven(flag.CommandLine, "copies") {
			args.Copies = copies
		}
		os.Exit(runPrintOnce(args))
	}

	prg := &daemon.Program{ConfigPath: *configPath}

	// Check if running interactively (console mode)
	if *consoleMode || isInteractive() {
		prg.Console = true
		runConsole(prg)
	} else {
		// Run as Windows Service
		if err := svc.Run(prg, syscall.SIGINT, syscall.SIGTERM); err != nil {
			log.Fatal(err)
		}
	}
}

// runConsole runs the program in console mode
func runConsole(prg *daemon.Program) {
	if err := prg.Init(nil); err != nil {
		log.Fatalf("Init failed: %v", err)
	}

	if err := prg.Start(); err != nil {
		log.Fatalf("Start failed: %v", err)
	}

	log.Println("═══════════════════════════════════════════════════════")
	log.Println("  📄 PDF SERVICIO - Modo Consola")
	log.Println("  Presiona Ctrl+C para detener...")
	log.Println("═══════════════════════════════════════════════════════")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down...")
	if err := prg.Stop(); err != nil {
		log.Printf("Stop failed: %v", err)
	}
}

// isInteractive checks if running from a terminal (not as service)
func isInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// If stdin is a character device (terminal), we're interactive
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
