package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `plate-gate - parking gate plate recognition

Usage:
  plate-gate [serve] [flags]        MCP server over stdin/stdout
  plate-gate scan [flags] <dir>     Replay a frame directory through a scanning session
  plate-gate ocr [flags] <image>    Read the plate region of one image
  plate-gate score <text>...        Score recognized text and print the best candidate

Flags:
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Printf("plate-gate %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Print(usage)
			newFlags("plate-gate").PrintDefaults()
			fmt.Println()
			fmt.Println("Environment variables use the PLATEGATE_ prefix, e.g.")
			fmt.Println("  PLATEGATE_BASE_URL=http://parking:8080")
			fmt.Println("  PLATEGATE_LOG_LEVEL=debug")
			fmt.Println("A .env file in the working directory is read first.")
			return
		case "serve", "scan", "ocr", "score":
			cmd, args = args[0], args[1:]
		}
	}

	fs := newFlags(cmd)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(flagsFrom(fs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "plate-gate: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	switch cmd {
	case "serve":
		err = a.serve(ctx)
	case "scan":
		err = a.scan(ctx, fs.Args())
	case "ocr":
		err = a.ocr(ctx, fs.Args())
	case "score":
		err = score(os.Stdout, fs.Args())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		a.close()
		os.Exit(1)
	}
}

// options are the command-line overrides shared by every command.
type options struct {
	configPath string
	mode       string
	gateID     int
	auto       string
	fps        float64
	logLevel   string
	pretty     bool
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (yaml, json or toml)")
	fs.StringP("mode", "m", "in", "gate mode: in or out")
	fs.IntP("gate", "g", 0, "gate id; 0 uses the configured default for the mode")
	fs.String("auto", "", "override auto-submit: true or false")
	fs.Float64("fps", 0, "frame rate for scan playback")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("pretty", false, "human-readable logs")
	return fs
}

func flagsFrom(fs *flag.FlagSet) options {
	var o options
	o.configPath, _ = fs.GetString("config")
	o.mode, _ = fs.GetString("mode")
	o.gateID, _ = fs.GetInt("gate")
	o.auto, _ = fs.GetString("auto")
	o.fps, _ = fs.GetFloat64("fps")
	o.logLevel, _ = fs.GetString("log-level")
	o.pretty, _ = fs.GetBool("pretty")
	return o
}
