package execution

// keyWindow tracks the most recently accepted idempotency keys. When the
// window is full the oldest key is evicted individually, so the guarantee
// is: no key is accepted twice while it remains among the last `capacity`
// accepted keys. Memory stays bounded without the forget-everything cliff
// of clearing the whole set at once.
type keyWindow struct {
	keys     map[string]struct{}
	ring     []string
	head     int
	size     int
	capacity int
}

func newKeyWindow(capacity int) *keyWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &keyWindow{
		keys:     make(map[string]struct{}, capacity),
		ring:     make([]string, capacity),
		capacity: capacity,
	}
}

func (w *keyWindow) Seen(key string) bool {
	_, ok := w.keys[key]
	return ok
}

func (w *keyWindow) Add(key string) {
	if w.size == w.capacity {
		oldest := w.ring[w.head]
		delete(w.keys, oldest)
		w.head = (w.head + 1) % w.capacity
		w.size--
	}
	tail := (w.head + w.size) % w.capacity
	w.ring[tail] = key
	w.keys[key] = struct{}{}
	w.size++
}

func (w *keyWindow) Len() int {
	return w.size
}
