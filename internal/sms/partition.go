package sms

import (
	"context"
	"hash/fnv"
	"runtime"
)

// Coordinator is the actor-model dispatcher shape SMS uses twice (§4.13,
// §5): a fixed pool of partitions, each draining its own serial task
// queue, so that work sharing a key is strictly sequential while work
// across keys runs in parallel.
type Coordinator struct {
	queues []chan func()
}

// DefaultPartitionCount is max(8, cores), per §5.
func DefaultPartitionCount() int {
	n := runtime.NumCPU()
	if n < 8 {
		return 8
	}
	return n
}

// NewCoordinator builds a Coordinator with the given number of partitions
// (<=0 uses DefaultPartitionCount) and a per-partition queue depth.
func NewCoordinator(partitions, queueDepth int) *Coordinator {
	if partitions <= 0 {
		partitions = DefaultPartitionCount()
	}
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	c := &Coordinator{queues: make([]chan func(), partitions)}
	for i := range c.queues {
		c.queues[i] = make(chan func(), queueDepth)
	}
	return c
}

// Run starts one drain goroutine per partition. It blocks until ctx is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	for _, q := range c.queues {
		go func(q chan func()) {
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-q:
					task()
				}
			}
		}(q)
	}
	<-ctx.Done()
}

// Execute schedules task on the serial queue belonging to key's partition.
// Tasks for the same key always execute in submission order; tasks for
// different keys may run concurrently on different partitions.
func (c *Coordinator) Execute(key string, task func()) {
	q := c.queues[c.partitionFor(key)]
	select {
	case q <- task:
	default:
		// Explicit back-pressure: block rather than silently drop (§5, §9).
		q <- task
	}
}

func (c *Coordinator) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(c.queues)
}
