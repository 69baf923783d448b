package core

import "sync"

// FreqHook is notified after the system clock frequency changes.
type FreqHook func(freqHz uint32)

// SysClock models the system clock frequency and fans out change
// notifications so peripheral timing (I2C divisors and the like) can
// follow DSLEEP/full-speed transitions.
type SysClock struct {
	mu     sync.Mutex
	freqHz uint32
	hooks  []FreqHook
}

// NewSysClock starts at the given frequency.
func NewSysClock(freqHz uint32) *SysClock {
	return &SysClock{freqHz: freqHz}
}

// Freq returns the current frequency in Hz.
func (s *SysClock) Freq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freqHz
}

// SetFreq changes the frequency and runs every registered hook. Hooks
// run outside the lock so they may call back into the clock.
func (s *SysClock) SetFreq(freqHz uint32) {
	s.mu.Lock()
	s.freqHz = freqHz
	hooks := make([]FreqHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, h := range hooks {
		h(freqHz)
	}
}

// OnFreqChange registers a hook and runs it immediately with the
// current frequency, so new listeners start in sync.
func (s *SysClock) OnFreqChange(h FreqHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	freq := s.freqHz
	s.mu.Unlock()

	h(freq)
}
