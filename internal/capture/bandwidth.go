package capture

import (
	"fmt"
	"sync"
)

// Bandwidth bounds how many writers may be armed at once
type Bandwidth struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewBandwidth returns a limiter for limit writers; 0 means unlimited
func NewBandwidth(limit int) *Bandwidth {
	return &Bandwidth{limit: limit}
}

func (b *Bandwidth) Acquire() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && b.used >= b.limit {
		return fmt.Errorf("%d of %d writers armed: %w", b.used, b.limit, ErrInsufficientBandwidth)
	}
	b.used++
	return nil
}

func (b *Bandwidth) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used > 0 {
		b.used--
	}
}

func (b *Bandwidth) InUse() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
