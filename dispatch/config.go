package dispatch

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is dispatch's process-level configuration, grounded on the
// teacher's options.go pattern (eventloop): a plain struct of tunables, with
// defaults applied by LoadConfig rather than scattered across call sites.
type Config struct {
	// Profile selects a named memory/GC tuning profile: "" (default),
	// "low-latency" (disables the GC percent, relies on automemlimit's soft
	// memory limit instead), or "batch" (raises GC percent to trade memory
	// for fewer collections).
	Profile string `toml:"profile"`

	// NoGC turns the garbage collector off (debug.SetGCPercent(-1)) and skips
	// automemlimit/GOMEMLIMIT tuning and Profile entirely.
	NoGC bool `toml:"no_gc"`

	// Leak is loaded from TOML and TASKLET_LEAK, but nothing in this package
	// reads it; setting it has no effect on behavior.
	Leak bool `toml:"leak"`

	// Heartbeat is how often the reactor loop wakes even when idle.
	Heartbeat time.Duration `toml:"heartbeat"`

	// PprofAddr, if non-empty, serves net/http/pprof on this address.
	PprofAddr string `toml:"pprof_addr"`

	// Version is reported by TASKLET_VERSION for diagnostics; it has no
	// effect on behavior.
	Version string `toml:"version"`
}

const defaultHeartbeat = time.Second

func defaultConfig() Config {
	return Config{Heartbeat: defaultHeartbeat}
}

// LoadConfig builds a Config from (in increasing precedence) built-in
// defaults, a TOML file named by -config (or TASKLET_CONFIG) if present, and
// environment variables TASKLET_PROFILE / TASKLET_NOGC / TASKLET_LEAK /
// TASKLET_HEARTBEAT / TASKLET_PPROF_ADDR / TASKLET_VERSION — grounded on the
// teacher's BurntSushi/toml + env-var layering convention.
func LoadConfig(args []string) (Config, error) {
	cfg := defaultConfig()

	if path := configPath(args); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if v, ok := os.LookupEnv("TASKLET_PROFILE"); ok {
		cfg.Profile = v
	}
	if v, ok := os.LookupEnv("TASKLET_NOGC"); ok {
		cfg.NoGC = parseBool(v)
	}
	if v, ok := os.LookupEnv("TASKLET_LEAK"); ok {
		cfg.Leak = parseBool(v)
	}
	if v, ok := os.LookupEnv("TASKLET_HEARTBEAT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Heartbeat = d
		}
	}
	if v, ok := os.LookupEnv("TASKLET_PPROF_ADDR"); ok {
		cfg.PprofAddr = v
	}
	if v, ok := os.LookupEnv("TASKLET_VERSION"); ok {
		cfg.Version = v
	}

	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}

	return cfg, nil
}

func configPath(args []string) string {
	for i, a := range args {
		if a == "-config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v, ok := os.LookupEnv("TASKLET_CONFIG"); ok {
		return v
	}
	return ""
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
