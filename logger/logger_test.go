package logger

import (
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("aggregator")
	if entry.Entry.Data["component"] != "aggregator" {
		t.Fatalf("expected component field to be set")
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log := Logger()
	if err := log.Configure("nosuchlevel", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("LIQFLOW_TEST_ENV", "value1")
	log := Logger()
	entry := log.WithEnv("LIQFLOW_TEST_ENV")
	if entry.Entry.Data["LIQFLOW_TEST_ENV"] != "value1" {
		t.Fatalf("expected env field to be attached")
	}
}

func TestWarnErrorCounts(t *testing.T) {
	log := Logger()
	before, _ := Counts("counttest")
	log.WithComponent("counttest").Warn("something odd")
	log.WithComponent("counttest").Warn("still odd")
	after, _ := Counts("counttest")
	if after-before != 2 {
		t.Fatalf("expected 2 warns recorded, got %d", after-before)
	}
}
