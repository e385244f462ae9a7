package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// captureOutput runs fn with os.Stdout and os.Stderr redirected to pipes and
// returns what was written to each.
func captureOutput(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()
	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outW, errW
	defer func() { os.Stdout, os.Stderr = origOut, origErr }()

	outC := make(chan string, 1)
	errC := make(chan string, 1)
	go func() { b, _ := io.ReadAll(outR); outC <- string(b) }()
	go func() { b, _ := io.ReadAll(errR); errC <- string(b) }()

	fn()

	_ = outW.Close()
	_ = errW.Close()
	return <-outC, <-errC
}

func newSimulator(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRunPrintsBotResponse(t *testing.T) {
	srv, calls := newSimulator(t, http.StatusOK, `{"response":"Hi!"}`)
	textfile := filepath.Join(t.TempDir(), "notifier.prom")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SIMULATOR_URL", srv.URL+"/api/message")
	t.Setenv("METRICS_TEXTFILE", textfile)

	var code int
	stdout, stderr := captureOutput(t, func() { code = run(context.Background()) })

	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if stdout != "Bot response: Hi!\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if stderr != "" {
		t.Errorf("expected empty stderr, got %q", stderr)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected one request, got %d", *calls)
	}

	data, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("expected metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), "notifier_http_requests_total") {
		t.Errorf("expected request counter in textfile, got:\n%s", data)
	}
}

func TestRunPrintsOutcomeAboveInfoLevel(t *testing.T) {
	for _, level := range []string{"warn", "error"} {
		t.Run(level, func(t *testing.T) {
			srv, _ := newSimulator(t, http.StatusOK, `{"response":"Hi!"}`)
			t.Setenv("LOG_LEVEL", level)
			t.Setenv("SIMULATOR_URL", srv.URL+"/api/message")

			var code int
			stdout, _ := captureOutput(t, func() { code = run(context.Background()) })

			if code != exitOK {
				t.Fatalf("expected exit 0, got %d", code)
			}
			if stdout != "Bot response: Hi!\n" {
				t.Errorf("unexpected stdout %q", stdout)
			}
		})
	}
}

func TestRunPrintsHTTPError(t *testing.T) {
	srv, calls := newSimulator(t, http.StatusInternalServerError, `{"response":"ignored"}`)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SIMULATOR_URL", srv.URL+"/api/message")

	var code int
	stdout, stderr := captureOutput(t, func() { code = run(context.Background()) })

	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if stdout != "" {
		t.Errorf("expected empty stdout, got %q", stdout)
	}
	if stderr != "Error calling simulator: HTTP error! status: 500\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected one request, got %d", *calls)
	}
}

func TestRunPrintsConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SIMULATOR_URL", url+"/api/message")

	var code int
	stdout, stderr := captureOutput(t, func() { code = run(context.Background()) })

	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if stdout != "" {
		t.Errorf("expected empty stdout, got %q", stdout)
	}
	if !strings.HasPrefix(stderr, "Error calling simulator: ") || !strings.Contains(stderr, "connection refused") {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if strings.Count(stderr, "\n") != 1 || !strings.HasSuffix(stderr, "\n") {
		t.Errorf("expected exactly one line, got %q", stderr)
	}
}

func TestRunReadsLogLevelFromDotEnv(t *testing.T) {
	srv, _ := newSimulator(t, http.StatusOK, `{"response":"Hi!"}`)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("LOG_LEVEL", "unset")
	os.Unsetenv("LOG_LEVEL")
	t.Setenv("SIMULATOR_URL", srv.URL+"/api/message")

	var code int
	stdout, _ := captureOutput(t, func() { code = run(context.Background()) })

	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "sending message to simulator") {
		t.Errorf("expected debug output enabled by .env, got %q", stdout)
	}
	if !strings.HasSuffix(stdout, "Bot response: Hi!\n") {
		t.Errorf("expected outcome as the last line, got %q", stdout)
	}
}

func TestRunRejectsInvalidEndpoint(t *testing.T) {
	t.Setenv("SIMULATOR_URL", "not a url")

	var code int
	_, stderr := captureOutput(t, func() { code = run(context.Background()) })

	if code != exitConfigError {
		t.Fatalf("expected exit %d, got %d", exitConfigError, code)
	}
	if !strings.HasPrefix(stderr, "invalid configuration") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}
