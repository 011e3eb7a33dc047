package nanolog_test

import (
	"path/filepath"
	"testing"

	"github.com/nanolog/nanolog"
)

func TestBuilderRejectsEmptyPath(t *testing.T) {
	_, err := nanolog.NewBuilder().WithPath("").Build()
	if err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestBuilderRejectsNonPositiveStagingBufferSize(t *testing.T) {
	dir := t.TempDir()
	_, err := nanolog.NewBuilder().
		WithPath(filepath.Join(dir, "log")).
		WithStagingBufferSize(0).
		Build()
	if err == nil {
		t.Fatal("expected an error for a zero staging buffer size")
	}
}

func TestBuilderFirstErrorShortCircuitsLaterCalls(t *testing.T) {
	b := nanolog.NewBuilder().WithPath("")
	// Once b.err is set, every later With* is a no-op; Build must still
	// surface the first failure rather than some later misconfiguration.
	b = b.WithStagingBufferSize(4096).WithLevel(nanolog.SeverityWarn)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected the original empty-path error to survive")
	}
}

func TestBuilderRejectsPreprocessorMode(t *testing.T) {
	dir := t.TempDir()
	_, err := nanolog.NewBuilder().
		WithPath(filepath.Join(dir, "log")).
		WithMode(nanolog.Preprocessor).
		Build()
	if err == nil {
		t.Fatal("expected an error for Preprocessor mode")
	}
}

func TestBuilderDefaultsProduceAWorkingRuntime(t *testing.T) {
	dir := t.TempDir()
	rt, err := nanolog.NewBuilder().
		WithPath(filepath.Join(dir, "log")).
		WithStagingBufferSize(64 * 1024).
		WithOutputBufferSize(64 * 1024).
		WithHistograms().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if got := rt.LogLevel(); got != nanolog.SeverityDebug {
		t.Errorf("LogLevel() = %v, want SeverityDebug default", got)
	}
}
