package dispatch

import (
	"runtime/debug"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/concurrence/concurrence/tasklet"
)

// tuneGC applies cfg's memory/GC profile, grounded on SPEC_FULL.md §4.10:
// automemlimit sets GOMEMLIMIT from the container's cgroup so the Go
// runtime doesn't wait for the OS OOM killer, and debug.SetGCPercent tunes
// collection frequency against that limit per profile.
func tuneGC(cfg Config, logger tasklet.Logger) {
	if cfg.NoGC {
		debug.SetGCPercent(-1)
		return
	}

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroupHybrid),
	)
	if err != nil {
		logger.Warn("automemlimit: failed to derive GOMEMLIMIT from cgroup", "error", err)
	} else {
		logger.Debug("automemlimit: set GOMEMLIMIT", "bytes", limit)
	}

	switch cfg.Profile {
	case "low-latency":
		// rely on the soft memory limit rather than a percentage trigger
		debug.SetGCPercent(-1)
	case "batch":
		debug.SetGCPercent(400)
	}
}
