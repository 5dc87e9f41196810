//go:build !tsync_deadlock

package opt

import "sync"

// DeadlockDetection_ reports whether the default mutex is the deadlock
// detecting one. Build with -tags=tsync_deadlock to enable it.
const DeadlockDetection_ = false

// Mutex_ is the default substrate for barriers.
type Mutex_ = sync.Mutex
