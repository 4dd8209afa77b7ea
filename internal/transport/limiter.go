package transport

import "sync"

// Limiter caps the number of concurrent connections across all transports
type Limiter struct {
	max int

	mu     sync.Mutex
	active int
}

// NewLimiter creates a limiter admitting up to max connections; 0 means unlimited
func NewLimiter(max int) *Limiter {
	return &Limiter{max: max}
}

// Acquire reserves a slot, reporting false when the server is full
func (l *Limiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.active >= l.max {
		return false
	}
	l.active++
	return true
}

// Release frees a slot taken by Acquire
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		l.active--
	}
}

// Active returns the number of held slots
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Max returns the configured limit
func (l *Limiter) Max() int {
	return l.max
}
