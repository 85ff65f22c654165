package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/aaronmunsters/wastrumentation/config"
)

// toolchainCompiler implements wastrumentation.Compiler by shelling out to
// the host-installed rustc or asc toolchain, per config.Language. This is
// the concrete collaborator spec.md §2 leaves external to the pipeline;
// the root package's tests use a fixed-output test double instead.
type toolchainCompiler struct{}

func (toolchainCompiler) Compile(lang config.Language, source string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "wastrument-compile-*")
	if err != nil {
		return nil, fmt.Errorf("compile: tempdir: %w", err)
	}
	defer os.RemoveAll(dir)

	switch lang {
	case config.Rust:
		return compileRust(dir, source)
	case config.AssemblyScript:
		return compileAssemblyScript(dir, source)
	default:
		return nil, fmt.Errorf("compile: unsupported language %v", lang)
	}
}

func compileRust(dir, source string) ([]byte, error) {
	src := filepath.Join(dir, "lib.rs")
	out := filepath.Join(dir, "out.wasm")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("compile rust: write source: %w", err)
	}
	cmd := exec.Command("rustc",
		"--target", "wasm32-unknown-unknown",
		"--crate-type", "cdylib",
		"-O",
		"-o", out,
		src,
	)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("compile rust: rustc: %w\n%s", err, output)
	}
	return os.ReadFile(out)
}

func compileAssemblyScript(dir, source string) ([]byte, error) {
	src := filepath.Join(dir, "lib.ts")
	out := filepath.Join(dir, "out.wasm")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("compile assemblyscript: write source: %w", err)
	}
	cmd := exec.Command("asc", src, "-o", out, "-O", "--exportRuntime")
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("compile assemblyscript: asc: %w\n%s", err, output)
	}
	return os.ReadFile(out)
}
