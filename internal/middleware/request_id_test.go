package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidCorrelationID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"req-123", true},
		{"01JAB3C4D5E6F7G8H9J0KMNPQR", true},
		{"svc.trace:abc_1", true},
		{"has space", false},
		{"line\nbreak", false},
		{`{"inject":1}`, false},
		{strings.Repeat("a", maxCorrelationIDLength), true},
		{strings.Repeat("a", maxCorrelationIDLength+1), false},
	}

	for _, tt := range tests {
		if got := validCorrelationID(tt.id); got != tt.want {
			t.Errorf("validCorrelationID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		traceID   string
		keepID    bool
		wantTrace string
	}{
		{name: "generated when absent"},
		{name: "client id kept", requestID: "client-42", keepID: true},
		{name: "unsafe client id replaced", requestID: "evil\r\nX-Admin: 1"},
		{name: "trace echoed", traceID: "trace-7", wantTrace: "trace-7"},
		{name: "unsafe trace dropped", traceID: "bad trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID, ctxTrace string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				ctxTrace = GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
			if tt.requestID != "" {
				req.Header[RequestIDHeader] = []string{tt.requestID}
			}
			if tt.traceID != "" {
				req.Header.Set(TraceIDHeader, tt.traceID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			header := rec.Header().Get(RequestIDHeader)
			if header == "" || header != ctxID {
				t.Fatalf("response id %q, context id %q", header, ctxID)
			}
			if tt.keepID && header != tt.requestID {
				t.Errorf("request id = %q, want %q", header, tt.requestID)
			}
			if !tt.keepID && !validCorrelationID(header) {
				t.Errorf("generated id %q is not a safe token", header)
			}
			if ctxTrace != tt.wantTrace || rec.Header().Get(TraceIDHeader) != tt.wantTrace {
				t.Errorf("trace = %q (header %q), want %q", ctxTrace, rec.Header().Get(TraceIDHeader), tt.wantTrace)
			}
		})
	}
}
