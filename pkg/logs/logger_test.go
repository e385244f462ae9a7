package logs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerKeyValuePairs(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	l := &Logger{
		zap: zap.New(core),
	}

	l.Info(context.Background(), "test msg", "key1", "val1", "key2", 42)

	entries := obs.All()
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry")
	}

	entry := entries[0]
	fieldMap := make(map[string]zapcore.Field)
	for _, f := range entry.Context {
		fieldMap[f.Key] = f
	}

	if f, ok := fieldMap["key1"]; !ok {
		t.Error("expected field 'key1'")
	} else if f.String != "val1" {
		t.Errorf("expected key1=val1, got %v", f.String)
	}

	if _, ok := fieldMap["key2"]; !ok {
		t.Error("expected field 'key2'")
	}
}

func TestLoggerZapFields(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	l := &Logger{
		zap: zap.New(core),
	}

	l.Info(context.Background(), "test msg", zap.String("field1", "val1"))

	entries := obs.All()
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry")
	}

	entry := entries[0]
	found := false
	for _, f := range entry.Context {
		if f.Key == "field1" && f.String == "val1" {
			found = true
		}
	}
	if !found {
		t.Error("expected zap.Field 'field1' with value 'val1'")
	}
}

func TestLoggerMixedArgs(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	l := &Logger{
		zap: zap.New(core),
	}

	l.Warn(context.Background(), "mixed", zap.Int("zapField", 1), "kvKey", "kvVal")

	entries := obs.All()
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry")
	}

	entry := entries[0]
	fieldMap := make(map[string]zapcore.Field)
	for _, f := range entry.Context {
		fieldMap[f.Key] = f
	}

	if _, ok := fieldMap["zapField"]; !ok {
		t.Error("expected zapField")
	}
	if _, ok := fieldMap["kvKey"]; !ok {
		t.Error("expected kvKey from key-value pair")
	}
}

func TestLoggerOrphanKey(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	l := &Logger{
		zap: zap.New(core),
	}

	l.Info(context.Background(), "orphan test", "lonely")

	entries := obs.All()
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry")
	}

	entry := entries[0]
	found := false
	for _, f := range entry.Context {
		if f.Key == "orphanKey" && f.String == "lonely" {
			found = true
		}
	}
	if !found {
		t.Error("expected orphanKey field for lonely string arg")
	}
}

func TestLoggerAppNamePrefixAndError(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	l := &Logger{zap: zap.New(core), appName: "notifier"}

	l.Error(context.Background(), "boom", errors.New("connection refused"))

	entries := obs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "[notifier] boom" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("expected error level, got %v", entries[0].Level)
	}
	if got := entries[0].ContextMap()["error"]; got != "connection refused" {
		t.Errorf("expected error field, got %v", got)
	}
}

func TestLoggerRespectsCoreLevel(t *testing.T) {
	core, obs := observer.New(zapcore.InfoLevel)
	l := New(zap.New(core))

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "shown")

	if obs.Len() != 1 || obs.All()[0].Message != "shown" {
		t.Fatalf("expected only the info entry, got %v", obs.All())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCapLevel(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"debug": "debug",
		"info":  "info",
		"warn":  "info",
		"error": "info",
		"bogus": "bogus",
	}
	for in, want := range tests {
		if got := CapLevel(in, zapcore.InfoLevel); got != want {
			t.Errorf("CapLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetLoggerRestores(t *testing.T) {
	core, obs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(New(zap.New(core)))

	Info(context.Background(), "through global")
	restore()

	if obs.Len() != 1 {
		t.Fatalf("expected global helpers to use the replaced logger, got %d entries", obs.Len())
	}
	if GetLogger() == nil {
		t.Fatal("expected restored logger")
	}
}

func TestCoreSplitsStreamsByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := New(zap.New(newCore(Options{Plain: true}, zapcore.AddSync(&stdout), zapcore.AddSync(&stderr))))

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "Bot response: Hi!")
	l.Error(context.Background(), "Error calling simulator: HTTP error! status: 500")

	if got := stdout.String(); got != "Bot response: Hi!\n" {
		t.Errorf("unexpected stdout %q", got)
	}
	if got := stderr.String(); got != "Error calling simulator: HTTP error! status: 500\n" {
		t.Errorf("unexpected stderr %q", got)
	}
}

func TestCoreHonoursLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := New(zap.New(newCore(Options{Plain: true, Level: "debug"}, zapcore.AddSync(&stdout), zapcore.AddSync(&stderr))))

	l.Debug(context.Background(), "visible")

	if stdout.String() != "visible\n" || stderr.Len() != 0 {
		t.Errorf("unexpected output stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestNewLoggerReplacesEarlierLogger(t *testing.T) {
	first := GetLogger()
	t.Cleanup(func() { SetLogger(first) })

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	second := NewLogger(Options{Plain: true})
	if second == first {
		t.Fatal("expected a new logger")
	}
	if GetLogger() != second {
		t.Fatal("expected NewLogger to install itself as the global logger")
	}

	Info(context.Background(), "Bot response: Hi!")
	_ = w.Close()
	out, _ := io.ReadAll(r)

	if string(out) != "Bot response: Hi!\n" {
		t.Errorf("expected plain output from the later options, got %q", out)
	}
}
