package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/adcondev/pdf-daemon/internal/daemon"
	"github.com/adcondev/pdf-daemon/internal/sumatra"
)

// Exit codes for -print
const (
	exitPrinted  = 0
	exitFailed   = 1
	exitTimedOut = 2
)

type printOnceArgs struct {
	ConfigPath string
	File       string
	Printer    string
	Copies     *uint // nil when -copies was not given
	Timeout    time.Duration
}

// runPrintOnce prints a single file with the configured engine and returns the exit code
func runPrintOnce(args printOnceArgs) int {
	env, err := daemon.LoadEnvironment(args.ConfigPath)
	if err != nil {
		log.Printf("[X] %v", err)
		return exitFailed
	}

	pdfPrinter, err := daemon.NewPrinter(env)
	if err != nil {
		log.Printf("[X] %v", err)
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	options := buildOptions(args, env.DefaultPrinter)
	log.Printf("[SUMATRA] 🖨️ %s %s", pdfPrinter.ExecutablePath(), options)

	outcome, err := pdfPrinter.Run(ctx, options, args.Timeout)
	code := exitCode(outcome, err)
	switch code {
	case exitPrinted:
		log.Println("[OK] Impresión enviada")
	case exitTimedOut:
		log.Println("[!] SumatraPDF no terminó a tiempo y fue detenido")
	default:
		log.Printf("[X] Error imprimiendo: %v", err)
	}
	return code
}

func buildOptions(args printOnceArgs, defaultPrinter string) sumatra.PrintingOptions {
	printerName := args.Printer
	if printerName == "" {
		printerName = defaultPrinter
	}
	options := sumatra.NewPrintingOptions(printerName, args.File)
	if args.Copies != nil {
		options = options.WithCopies(*args.Copies)
	}
	return options
}

// flagGiven reports whether name was set on the command line, even to its zero value
func flagGiven(fs *flag.FlagSet, name string) bool {
	given := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			given = true
		}
	})
	return given
}

func exitCode(outcome sumatra.Outcome, err error) int {
	switch {
	case err != nil:
		return exitFailed
	case outcome == sumatra.OutcomeTimedOut:
		return exitTimedOut
	default:
		return exitPrinted
	}
}
