package version

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCurrent_Defaults(t *testing.T) {
	b := Current()
	if b.Version == "" || b.Commit == "" || b.Date == "" {
		t.Fatalf("build info must never be empty: %+v", b)
	}
	if b.Version != GetVersion() {
		t.Fatalf("GetVersion (%s) should match Current (%s)", GetVersion(), b.Version)
	}
}

func TestBuild_String(t *testing.T) {
	s := Build{Version: "v1.2.0", Commit: "abc123", Date: "2026-03-01"}.String()
	for _, part := range []string{"version=v1.2.0", "commit=abc123", "date=2026-03-01"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestRegisterBuildInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterBuildInfo(reg, Build{Version: "v1.2.0", Commit: "abc123", Date: "2026-03-01"})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 || families[0].GetName() != "bakery_build_info" {
		t.Fatalf("unexpected metric families: %v", families)
	}
	metric := families[0].GetMetric()[0]
	if metric.GetGauge().GetValue() != 1 {
		t.Fatalf("build info gauge must be 1, got %v", metric.GetGauge().GetValue())
	}
	labels := map[string]string{}
	for _, pair := range metric.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	if labels["version"] != "v1.2.0" || labels["commit"] != "abc123" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}
