package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Go runtime and process collectors are always present.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	m.LinesTotal.WithLabelValues(OutcomeRewritten).Inc()
	m.LineDuration.Observe(0.0001)
	m.WriteErrors.WithLabelValues(StreamOutput).Inc()
	m.RequestsTotal.WithLabelValues("GET", "200", "/healthz").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"squid_rewriter_lines_total":           false,
		"squid_rewriter_line_duration_seconds": false,
		"squid_rewriter_write_errors_total":    false,
		"squid_rewriter_admin_requests_total":  false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PUT", "PUT"},
		{"DELETE", "DELETE"},
		{"PATCH", "PATCH"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/helper/status", "/helper/status"},
		{"/helper/status/x", "/helper/status"},
		{"/metrics", "/metrics"},
		{"/helper", "other"},
		{"/unknown", "other"},
		{"/", "other"},
		{"/healthzz", "other"},
	}

	m := New()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := m.NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizePath_CustomScrapePath(t *testing.T) {
	m := New()
	m.SetScrapePath("/prom")

	tests := []struct {
		path string
		want string
	}{
		{"/prom", "/prom"},
		{"/metrics", "other"},
		{"/promx", "other"},
		{"/healthz", "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := m.NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
