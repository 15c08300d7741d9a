package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	if m.RunsTotal == nil || m.MethodAccuracy == nil || m.PoolFitDuration == nil {
		t.Fatal("NewWithRegistry left metrics unset")
	}

	// Vec metrics only appear once a label set is used.
	m.MethodAccuracy.WithLabelValues("OLA").Set(0.5)
	count, err := testutil.GatherAndCount(registry)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 6 {
		t.Errorf("Expected 6 series, got %d", count)
	}
}

func TestNewWithRegistry_DuplicatePanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic when registering twice")
		}
	}()
	NewWithRegistry(registry)
}

func TestWrapper_RecordsRun(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	var rec Recorder = NewWrapper(m)

	rec.DatasetLoaded(1000)
	rec.PoolFitted(250*time.Millisecond, 0.84)
	rec.MethodFitted("KNORA-E", 10*time.Millisecond)
	rec.MethodScored("KNORA-E", 30*time.Millisecond, 250, 0.88)
	rec.MethodScored("OLA", 20*time.Millisecond, 250, 0.86)
	rec.RunFinished()
	rec.Failed()

	if v := testutil.ToFloat64(m.DatasetSamples); v != 1000 {
		t.Errorf("Expected 1000 samples, got %f", v)
	}
	if v := testutil.ToFloat64(m.PoolAccuracy); v != 0.84 {
		t.Errorf("Expected pool accuracy 0.84, got %f", v)
	}
	if v := testutil.ToFloat64(m.MethodAccuracy.WithLabelValues("KNORA-E")); v != 0.88 {
		t.Errorf("Expected KNORA-E accuracy 0.88, got %f", v)
	}
	if v := testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("OLA")); v != 250 {
		t.Errorf("Expected 250 OLA predictions, got %f", v)
	}
	if v := testutil.ToFloat64(m.RunsTotal); v != 1 {
		t.Errorf("Expected 1 run, got %f", v)
	}
	if v := testutil.ToFloat64(m.ErrorsTotal); v != 1 {
		t.Errorf("Expected 1 error, got %f", v)
	}
	if n := testutil.CollectAndCount(m.MethodPredictDuration); n != 2 {
		t.Errorf("Expected predict durations for 2 methods, got %d", n)
	}
	if n := testutil.CollectAndCount(m.PoolFitDuration); n != 1 {
		t.Errorf("Expected one pool fit histogram, got %d", n)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	NewWrapper(m).MethodScored("META-DES", time.Millisecond, 10, 0.9)

	path := filepath.Join(t.TempDir(), "deslab.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `deslab_method_accuracy{method="META-DES"} 0.9`) {
		t.Errorf("textfile missing accuracy sample:\n%s", data)
	}
}

func TestWriteTextfile_NoGatherer(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(prometheus.WrapRegistererWithPrefix("x_", registry))

	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "out.prom")); err == nil {
		t.Error("Expected error without a gatherer")
	}
}

func TestNop(t *testing.T) {
	var rec Recorder = Nop{}
	rec.DatasetLoaded(1)
	rec.PoolFitted(time.Second, 1)
	rec.MethodFitted("OLA", time.Second)
	rec.MethodScored("OLA", time.Second, 1, 1)
	rec.RunFinished()
	rec.Failed()
}
