package ingress

import "testing"

func TestHealthyReportsOnlyHealthyGateways(t *testing.T) {
	w := NewMultiplexedGatewayWatcher([]*Gateway{
		{Name: "a"},
		{Name: "b"},
	})
	w.gateways[1].healthy = false

	got := w.Healthy()
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("Healthy() = %v, want [a]", got)
	}
}

func TestNewMultiplexedGatewayWatcherStartsAllHealthy(t *testing.T) {
	w := NewMultiplexedGatewayWatcher([]*Gateway{{Name: "a"}, {Name: "b"}})
	got := w.Healthy()
	if len(got) != 2 {
		t.Fatalf("expected both gateways to start healthy, got %v", got)
	}
}
