package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunEvaluatesStdinAndPrintsResult(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(`(+ 1 2)`), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "3\n", stdout.String())
}

func TestRunReportsDiagnosticAndNonzeroExit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(`(car '())`), &stdout, &stderr)
	require.NotEqual(t, 0, code)
	require.NotEmpty(t, stderr.String())
}

func TestRunHelpFlagExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-h"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "usage")
}

func TestRunVersionFlagExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-v"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), version)
}

// banner must stay silent for a non-*os.File writer (e.g. the bytes.Buffer
// these tests use), matching the isatty gate's behavior for piped output.
func TestBannerSilentForNonFileWriter(t *testing.T) {
	var stderr bytes.Buffer
	banner(&stderr)
	require.Empty(t, stderr.String())
}
