package config

const DefaultDeferredPostRate = 1000

// DeferredCfg configures the deferred-write retry queue: writes that could
// not be issued immediately (backpressure) are parked there and re-posted
// once per scan tick.
//
// When nil, deferred writes are disabled and DeferWrite is a no-op.
type DeferredCfg struct {
	// Capacity bounds the retry queue. Zero means DefaultQueueCapacity.
	Capacity int `yaml:"capacity"`

	// PostRate limits re-posting attempts per second so a stuck backend
	// is not hammered in a tight loop.
	PostRate int `yaml:"post_rate"`
}

func (cfg *DeferredCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *DeferredCfg) adjust() {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultQueueCapacity
	}
	if cfg.PostRate <= 0 {
		cfg.PostRate = DefaultDeferredPostRate
	}
}
