package config

import "time"

// Write-back policy defaults. They are exposed through the config so
// deployments can re-tune them, but the defaults are the proven ones.
const (
	DefaultFirstDelay          = 3 * time.Second
	DefaultIdleDelay           = time.Second
	DefaultMaxAgeTarget        = 8
	DefaultMaxWriteBehindPages = 16
	DefaultDirtyPageTarget     = 1024
	DefaultLowWaterRescanMark  = 20
)

type ScanCfg struct {
	// FirstDelay is the timer delay used on the idle-to-active transition.
	// It is deliberately longer than IdleDelay so a foreground burst can
	// finish before lazy work starts competing for I/O.
	FirstDelay time.Duration `yaml:"first_delay"`

	// IdleDelay is the steady-state delay between scan ticks while active.
	IdleDelay time.Duration `yaml:"idle_delay"`

	// DirtyPageTarget is the total number of dirty pages the controller
	// tries to converge on.
	DirtyPageTarget int `yaml:"dirty_page_target"`

	// MaxAgeTarget spreads a large backlog over this many ticks: when the
	// backlog exceeds it, only backlog/MaxAgeTarget pages are scheduled
	// per tick.
	MaxAgeTarget int `yaml:"max_age_target"`

	// MaxWriteBehindPages is the per-request write-behind size in pages.
	// Streams with a backlog of at least 4x this value are flushed even
	// when their write mode would otherwise defer them.
	MaxWriteBehindPages int `yaml:"max_write_behind_pages"`

	// LowWaterRescanMark makes a parking worker re-run the scan inline
	// when at least this many dirty pages remain and deferred writes pend.
	LowWaterRescanMark int `yaml:"low_water_rescan_mark"`

	// SmallSystem relaxes the exclusive-write batching rules, matching the
	// behavior on memory-constrained hosts.
	SmallSystem bool `yaml:"small_system"`

	// VerifyIdle enables a consistency sweep of the dirty ring before the
	// scan goes idle. Debug aid, off in production.
	VerifyIdle bool `yaml:"verify_idle"`
}

func (cfg *ScanCfg) adjust() {
	if cfg.FirstDelay <= 0 {
		cfg.FirstDelay = DefaultFirstDelay
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultIdleDelay
	}
	if cfg.DirtyPageTarget <= 0 {
		cfg.DirtyPageTarget = DefaultDirtyPageTarget
	}
	if cfg.MaxAgeTarget <= 0 {
		cfg.MaxAgeTarget = DefaultMaxAgeTarget
	}
	if cfg.MaxWriteBehindPages <= 0 {
		cfg.MaxWriteBehindPages = DefaultMaxWriteBehindPages
	}
	if cfg.LowWaterRescanMark <= 0 {
		cfg.LowWaterRescanMark = DefaultLowWaterRescanMark
	}
}
