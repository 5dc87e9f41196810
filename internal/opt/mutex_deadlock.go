//go:build tsync_deadlock

package opt

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockDetection_ reports whether the default mutex is the deadlock
// detecting one. Build with -tags=tsync_deadlock to enable it.
const DeadlockDetection_ = true

func init() {
	// Barrier waits can legitimately be long; only flag real stalls.
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

// Mutex_ is the default substrate for barriers.
// Use: go test -tags=tsync_deadlock
type Mutex_ = deadlock.Mutex
