// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// PerformanceCounter accumulates the number of invocations and the total time spent in one execution step.
//
// The meaning of Name is backend specific, e.g. the name of an op kind or of a kernel.
type PerformanceCounter struct {
	Name  string
	Count int64
	Total time.Duration
}

// Add one invocation that took elapsed.
func (c *PerformanceCounter) Add(elapsed time.Duration) {
	c.Count++
	c.Total += elapsed
}

// Mean returns the average duration of an invocation, or 0 if there were none.
func (c PerformanceCounter) Mean() time.Duration {
	if c.Count == 0 {
		return 0
	}
	return c.Total / time.Duration(c.Count)
}

// String implements fmt.Stringer.
func (c PerformanceCounter) String() string {
	return fmt.Sprintf("%s: %s calls, total %s, mean %s", c.Name, humanize.Comma(c.Count), c.Total, c.Mean())
}
