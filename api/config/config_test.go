package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_PORT", "")
	t.Setenv("STREAM_HEARTBEAT", "")
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	if cfg.Port != "8000" {
		t.Errorf("Expected port 8000, got %s", cfg.Port)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Errorf("Expected 10s heartbeat, got %v", cfg.HeartbeatInterval)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.WorkerCount)
	}
	if cfg.Pipeline == nil || cfg.Pipeline.FigureCount != 5 {
		t.Fatalf("Expected pipeline config with 5 figures, got %+v", cfg.Pipeline)
	}
	if len(cfg.KafkaBrokerList()) != 0 {
		t.Errorf("Expected kafka disabled by default, got %v", cfg.KafkaBrokerList())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STREAM_HEARTBEAT", "250ms")
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("FIGURE_COUNT", "3")

	cfg := Load()

	if cfg.HeartbeatInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms heartbeat, got %v", cfg.HeartbeatInterval)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("Expected fallback to default worker count, got %d", cfg.WorkerCount)
	}
	if got := cfg.KafkaBrokerList(); len(got) != 2 || got[1] != "k2:9092" {
		t.Errorf("Unexpected broker list %v", got)
	}
	if cfg.Pipeline.FigureCount != 3 {
		t.Errorf("Expected 3 figures, got %d", cfg.Pipeline.FigureCount)
	}
}
