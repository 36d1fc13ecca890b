package config

const (
	DefaultPoolSize      = 2
	DefaultQueueCapacity = 256
)

type WorkersCfg struct {
	// PoolSize is the number of worker goroutines servicing the flush
	// queues. Workers are activated on demand and park when both lanes
	// are empty.
	PoolSize int `yaml:"pool_size"`

	// QueueCapacity bounds the number of outstanding work items across
	// both lanes. Allocation beyond the bound fails softly: the producer
	// degrades (aborts the walk, goes idle) and retries on a later tick.
	QueueCapacity int `yaml:"queue_capacity"`
}

func (cfg *WorkersCfg) adjust() {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
}
