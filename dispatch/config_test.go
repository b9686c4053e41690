package dispatch

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Heartbeat != defaultHeartbeat {
		t.Fatalf("Heartbeat = %v, want %v", cfg.Heartbeat, defaultHeartbeat)
	}
	if cfg.NoGC {
		t.Fatalf("NoGC = true, want false")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TASKLET_PROFILE", "low-latency")
	t.Setenv("TASKLET_NOGC", "true")
	t.Setenv("TASKLET_HEARTBEAT", "5s")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Profile != "low-latency" {
		t.Fatalf("Profile = %q, want low-latency", cfg.Profile)
	}
	if !cfg.NoGC {
		t.Fatalf("NoGC = false, want true")
	}
	if cfg.Heartbeat != 5*time.Second {
		t.Fatalf("Heartbeat = %v, want 5s", cfg.Heartbeat)
	}
}

func TestLoadConfigTOMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.toml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString("profile = \"batch\"\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	cfg, err := LoadConfig([]string{"-config", f.Name()})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Profile != "batch" {
		t.Fatalf("Profile = %q, want batch", cfg.Profile)
	}
}
