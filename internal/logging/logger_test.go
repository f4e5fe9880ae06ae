package logging

import "testing"

func TestNewDevelopment(t *testing.T) {
	t.Parallel()
	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("New(true) returned nil logger")
	}
	if !logger.Core().Enabled(0) {
		t.Error("development logger should enable info level")
	}
}

func TestNewProduction(t *testing.T) {
	t.Parallel()
	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("New(false) returned nil logger")
	}
	if logger.Core().Enabled(-1) {
		t.Error("production logger should not enable debug level")
	}
}
