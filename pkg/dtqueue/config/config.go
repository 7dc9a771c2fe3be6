// Package config holds the tunables for a dtqueue.Queue, following the
// Config-struct-plus-initDefaults shape of
// pkg/kv/kvserver/concurrency.Config/(*Config).initDefaults in the
// teacher.
package config

import "github.com/xuanhan863/dtqueue/pkg/interval"

// Config carries the dependencies and tunables needed to construct a
// dtqueue.Queue.
type Config struct {
	// NumThreads bounds the number of initial query subtrees produced
	// by Init's frontier cut (spec §3 "Lifecycle").
	NumThreads int

	// IntervalBTreeDegree overrides the per-rank B-tree degree used by
	// every subtree's DisjointIntervalSet. Zero means
	// interval.DefaultDegree.
	IntervalBTreeDegree int
}

func (c *Config) initDefaults() {
	if c.NumThreads <= 0 {
		c.NumThreads = 1
	}
	if c.IntervalBTreeDegree <= 0 {
		c.IntervalBTreeDegree = interval.DefaultDegree
	}
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// their defaults, leaving c itself untouched.
func WithDefaults(c Config) Config {
	c.initDefaults()
	return c
}
