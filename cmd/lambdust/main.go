// Command lambdust is a thin CLI front-end over pkg/lambdust: load a
// file or read from stdin, evaluate it, print the result or diagnostic,
// exit 0 on success and nonzero otherwise (spec §6's out-of-core CLI
// contract). A banner is printed to stderr before reading a script, but
// only when stderr is a terminal (mattn/go-isatty), matching the
// teacher's termIsTTY/isatty.IsTerminal gate in builtins_term.go so
// piped output stays machine-readable.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/akasaka-miraina/lambdust-sub001/internal/config"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/pkg/lambdust"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var configPath string
	var scriptPath string
	for _, a := range args {
		switch {
		case a == "-h" || a == "--help":
			fmt.Fprintln(stdout, "usage: lambdust [-config=path.yaml] [script.scm]")
			return 0
		case a == "-v" || a == "--version":
			fmt.Fprintln(stdout, "lambdust", version)
			return 0
		case len(a) > 8 && a[:8] == "-config=":
			configPath = a[8:]
		default:
			scriptPath = a
		}
	}

	banner(stderr)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(stderr, "lambdust:", err)
			return 1
		}
		cfg = loaded
	}

	var source []byte
	var err error
	if scriptPath != "" {
		source, err = os.ReadFile(scriptPath)
	} else {
		source, err = io.ReadAll(bufio.NewReader(stdin))
	}
	if err != nil {
		fmt.Fprintln(stderr, "lambdust:", err)
		return 1
	}

	rt := lambdust.NewWithConfig(cfg)
	result, err := rt.Eval(string(source))
	if err != nil {
		printDiagnostic(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, result.Write())
	return 0
}

// banner prints a one-line identification before reading a script, only
// when stderr is an interactive terminal so scripted/piped invocations
// see nothing but the program's own output.
func banner(stderr io.Writer) {
	f, ok := stderr.(*os.File)
	if !ok {
		return
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return
	}
	fmt.Fprintln(stderr, "lambdust", version, "-- R7RS core")
}

func printDiagnostic(stderr io.Writer, err error) {
	if de, ok := err.(*diagnostics.DiagnosticError); ok {
		fmt.Fprintf(stderr, "lambdust: %s: %s\n", de.Code, de.Message)
		return
	}
	fmt.Fprintln(stderr, "lambdust:", err)
}
