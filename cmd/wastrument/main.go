package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/backend/assemblyscript"
	"github.com/aaronmunsters/wastrumentation/backend/rust"
	"github.com/aaronmunsters/wastrumentation/config"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/wasm"
	"github.com/aaronmunsters/wastrumentation/wastrumentation"
)

func main() {
	var (
		targetFile  = flag.String("target", "", "Path to the target .wasm module")
		aspectFile  = flag.String("aspect", "", "Path to the aspect DSL source")
		outFile     = flag.String("o", "", "Path to write the linked output module")
		lang        = flag.String("lang", "rust", "Analysis language backend: rust or assemblyscript")
		primary     = flag.String("primary", "target", "Which module's exports surface on the output: target or analysis")
		targets     = flag.String("targets", "", "Comma-separated target function indices to instrument (default: all non-imports)")
		interactive = flag.Bool("i", false, "Interactive mode: preview join points and toggle targets before running")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *targetFile == "" || *aspectFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wastrument -target <file.wasm> -aspect <file.aspect> -o <out.wasm> [-lang rust|assemblyscript] [-primary target|analysis] [-targets 1,2,3] [-i] [-v]")
		os.Exit(1)
	}

	if err := run(*targetFile, *aspectFile, *outFile, *lang, *primary, *targets, *interactive, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(targetFile, aspectFile, outFile, lang, primary, targets string, interactive, verbose bool) error {
	targetBytes, err := os.ReadFile(targetFile)
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	targetModule, err := wasm.ParseModule(targetBytes)
	if err != nil {
		return fmt.Errorf("parse target module: %w", err)
	}

	aspectBytes, err := os.ReadFile(aspectFile)
	if err != nil {
		return fmt.Errorf("read aspect: %w", err)
	}

	cfg, err := buildConfig(lang, primary, targets, verbose)
	if err != nil {
		return err
	}

	if interactive {
		return runInteractive(cfg, targetModule, string(aspectBytes), outFile)
	}

	b, err := backendFor(cfg.Language)
	if err != nil {
		return err
	}
	pipeline := wastrumentation.New(b, toolchainCompiler{})

	out, err := pipeline.Instrument(cfg, targetModule, string(aspectBytes))
	if err != nil {
		return fmt.Errorf("instrument: %w", err)
	}

	if outFile == "" {
		fmt.Printf("Linked module: %d funcs, %d exports\n", len(out.Funcs), len(out.Exports))
		return nil
	}
	if err := os.WriteFile(outFile, out.Encode(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("Wrote %s (%d funcs, %d exports)\n", outFile, len(out.Funcs), len(out.Exports))
	return nil
}

func buildConfig(lang, primary, targetsFlag string, verbose bool) (config.Configuration, error) {
	cfg := config.Default()

	switch lang {
	case "rust":
		cfg.Language = config.Rust
	case "assemblyscript":
		cfg.Language = config.AssemblyScript
	default:
		return cfg, fmt.Errorf("unknown -lang %q", lang)
	}

	switch primary {
	case "target":
		cfg.PrimarySelection = config.Target
	case "analysis":
		cfg.PrimarySelection = config.Analysis
	default:
		return cfg, fmt.Errorf("unknown -primary %q", primary)
	}

	if targetsFlag != "" {
		set := map[uint32]struct{}{}
		for _, tok := range strings.Split(targetsFlag, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 32)
			if err != nil {
				return cfg, fmt.Errorf("invalid -targets entry %q: %w", tok, err)
			}
			set[uint32(n)] = struct{}{}
		}
		cfg.TargetIndices = &set
	}

	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return cfg, fmt.Errorf("create logger: %w", err)
		}
		cfg.Logger = logger
	} else {
		logger, err := zap.NewProduction()
		if err != nil {
			return cfg, fmt.Errorf("create logger: %w", err)
		}
		cfg.Logger = logger
	}

	return cfg, nil
}

func backendFor(lang config.Language) (backend.Backend, error) {
	switch lang {
	case config.Rust:
		return rust.New(), nil
	case config.AssemblyScript:
		return assemblyscript.New(), nil
	default:
		return nil, fmt.Errorf("unsupported language %v", lang)
	}
}

// previewJoinPoints parses the aspect source and reports which join-point
// variants it activates, for the interactive mode's listing.
func previewJoinPoints(aspectSource string) (*dsl.JoinPoints, error) {
	_, jp, err := dsl.Parse(aspectSource)
	return jp, err
}
