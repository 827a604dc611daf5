package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceContextPropagation verifies that pipeline spans join the request trace
func TestTraceContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	Install(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServerServiceName))
	r.HandleFunc("/api/v1/imports", func(w http.ResponseWriter, r *http.Request) {
		_, span := StartSpan(r.Context(), "importer.upload")
		EndSpan(span, nil)
		w.WriteHeader(http.StatusCreated)
	}).Methods("POST")

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceParent string
	}{
		{name: "without existing trace ID"},
		{name: "with existing trace ID", traceParent: "00-" + traceID + "-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest("POST", "/api/v1/imports", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusCreated {
				t.Errorf("Expected status 201, got %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Errorf("Failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) != 2 {
				t.Fatalf("Expected request and pipeline spans, got %d", len(spans))
			}
			child, parent := spans[0], spans[1]
			if child.Name != "importer.upload" {
				t.Errorf("Expected first finished span importer.upload, got %q", child.Name)
			}
			if child.SpanContext.TraceID() != parent.SpanContext.TraceID() {
				t.Error("Expected pipeline span to share the request trace ID")
			}
			if child.Parent.SpanID() != parent.SpanContext.SpanID() {
				t.Error("Expected pipeline span to be a child of the request span")
			}
			if tt.traceParent != "" && parent.SpanContext.TraceID().String() != traceID {
				t.Errorf("Expected trace ID %s, got %s", traceID, parent.SpanContext.TraceID())
			}
		})
	}
}
