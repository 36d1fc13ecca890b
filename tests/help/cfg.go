package help

import (
	"time"

	"github.com/Borislavv/go-lazy-writeback/config"
)

// Cfg is the integration test baseline: real clock, millisecond ticks so
// tests converge quickly, telemetry off.
func Cfg() *config.Config {
	c := &config.Config{
		Scan: &config.ScanCfg{
			FirstDelay:          time.Millisecond,
			IdleDelay:           time.Millisecond,
			DirtyPageTarget:     100,
			MaxAgeTarget:        8,
			MaxWriteBehindPages: 16,
			LowWaterRescanMark:  20,
		},
		Workers: &config.WorkersCfg{
			PoolSize:      2,
			QueueCapacity: 256,
		},
	}
	c.AdjustConfig()
	return c
}

func DeferredCfg() *config.Config {
	c := Cfg()
	c.Deferred = &config.DeferredCfg{
		Capacity: 64,
		PostRate: 1_000_000,
	}
	c.AdjustConfig()
	return c
}

func TelemetryCfg() *config.Config {
	c := Cfg()
	c.Telemetry = config.TelemetryCfg{
		IsTelemetryLogsEnabled: true,
		TelemetryLogsInterval:  10 * time.Millisecond,
	}
	return c
}
