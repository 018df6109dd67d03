package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitWritesTraceFile(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	dir := filepath.Join(t.TempDir(), "telemetry")
	cleanup, err := Init(context.Background(), dir, "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "analysis.cycle")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("analysis.cycles")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(context.Background(), 1)

	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "intake_ocr_traces.log"))
	if err != nil {
		t.Fatalf("trace file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected the span to be flushed on cleanup")
	}
	if _, err := os.Stat(filepath.Join(dir, "intake_ocr_metrics.log")); err != nil {
		t.Fatalf("metrics file: %v", err)
	}
}
