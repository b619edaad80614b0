package monitor

import "sync"

// DefaultHistorySize is the default number of samples kept per result.
const DefaultHistorySize = 120

// History keeps recent progress samples per result for sparklines.
type History struct {
	mu      sync.RWMutex
	size    int
	results map[string]*ringBuffer
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewHistory creates a history that keeps size samples per result.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:    size,
		results: make(map[string]*ringBuffer),
	}
}

// Push records a progress sample (0-100) for key.
func (h *History) Push(key string, percent float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.results[key]
	if !ok {
		r = newRingBuffer(h.size)
		h.results[key] = r
	}
	r.push(percent)
}

// Get returns up to count samples for key, oldest first.
func (h *History) Get(key string, count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.results[key]
	if !ok {
		return nil
	}
	return r.getLast(count)
}

// Count returns the number of samples stored for key.
func (h *History) Count(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if r, ok := h.results[key]; ok {
		return r.count
	}
	return 0
}

// Forget drops the samples for key.
func (h *History) Forget(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.results, key)
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer) getLast(count int) []float64 {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]float64, count)
	// head is the next write position, so the newest value sits at head-1.
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}
