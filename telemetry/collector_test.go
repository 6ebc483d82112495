package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCollectorWindows(t *testing.T) {
	c := NewCollector(2)

	c.RecordRound(RoundEvents{Round: 1, ParticlesMoved: 2, CircuitSizes: []int{3, 1}})
	if _, ok := c.LastWindow(); ok {
		t.Fatal("window closed too early")
	}
	c.RecordConflict(2)
	c.RecordRound(RoundEvents{Round: 2, ParticlesMoved: 4, CircuitSizes: []int{2}, BeepsDelivered: 5})

	ws, ok := c.LastWindow()
	if !ok {
		t.Fatal("expected a completed window")
	}
	if ws.WindowEndRound != 2 || ws.Rounds != 2 {
		t.Errorf("window bounds wrong: %+v", ws)
	}
	if ws.Conflicts != 1 {
		t.Errorf("expected 1 conflict, got %d", ws.Conflicts)
	}
	if math.Abs(ws.MovesMean-3) > 1e-9 {
		t.Errorf("expected moves mean 3, got %f", ws.MovesMean)
	}
	if math.Abs(ws.CircuitSizeMean-2) > 1e-9 {
		t.Errorf("expected circuit size mean 2, got %f", ws.CircuitSizeMean)
	}
	if ws.TotalBeeps != 5 {
		t.Errorf("expected 5 beeps, got %d", ws.TotalBeeps)
	}
}

func TestCollectorFlushPartialWindow(t *testing.T) {
	c := NewCollector(10)
	c.RecordRound(RoundEvents{Round: 1, ParticlesMoved: 1})
	c.Flush()
	ws, ok := c.LastWindow()
	if !ok || ws.Rounds != 1 {
		t.Fatalf("expected flushed window of 1 round, got %+v ok=%v", ws, ok)
	}
	// Flushing again with no new rounds is a no-op.
	c.Flush()
	if ws2, _ := c.LastWindow(); ws2 != ws {
		t.Error("empty flush changed the last window")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordRound(RoundEvents{Round: 1})
	c.RecordConflict(1)
	c.Flush()
	c.SetOutput(nil)
	if _, ok := c.LastWindow(); ok {
		t.Error("nil collector reported a window")
	}
}

func TestOutputWritesCSV(t *testing.T) {
	dir := t.TempDir()
	out, err := NewOutput(dir)
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}

	c := NewCollector(1)
	c.SetOutput(out)
	c.RecordRound(RoundEvents{Round: 1, ParticlesMoved: 3, CircuitSizes: []int{4}})
	c.RecordRound(RoundEvents{Round: 2, ParticlesMoved: 1})
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "rounds.csv"))
	if err != nil {
		t.Fatalf("reading rounds.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "particles_moved") {
		t.Errorf("header missing column: %q", lines[0])
	}

	data, err = os.ReadFile(filepath.Join(dir, "windows.csv"))
	if err != nil {
		t.Fatalf("reading windows.csv: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 3 {
		t.Errorf("expected header plus 2 window rows, got %d lines", n)
	}
}

func TestDisabledOutput(t *testing.T) {
	out, err := NewOutput("")
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	if out != nil {
		t.Fatal("empty dir should disable output")
	}
	if err := out.WriteRound(RoundStats{}); err != nil {
		t.Errorf("nil output write: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("nil output close: %v", err)
	}
}
