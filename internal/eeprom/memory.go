package eeprom

// Memory is an in-memory Device for tests. Flash holds the committed
// image; PowerCycle drops uncommitted writes.
type Memory struct {
	cache []byte
	Flash []byte

	// Commits counts successful commits.
	Commits int

	// CommitError, if set, will be returned by Commit.
	CommitError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewMemory creates an erased region of the given size.
func NewMemory(size int) *Memory {
	return &Memory{cache: erasedBlock(size), Flash: erasedBlock(size)}
}

// NewMemoryFrom creates a region whose committed contents are image,
// padded with erased cells to size.
func NewMemoryFrom(image []byte, size int) *Memory {
	m := NewMemory(size)
	copy(m.Flash, image)
	copy(m.cache, m.Flash)
	return m
}

// Size returns the region size.
func (m *Memory) Size() int { return len(m.cache) }

// ReadAt reads from the cache.
func (m *Memory) ReadAt(p []byte, off int) error {
	if err := checkRange(len(m.cache), off, len(p)); err != nil {
		return err
	}
	copy(p, m.cache[off:])
	return nil
}

// WriteAt writes to the cache.
func (m *Memory) WriteAt(p []byte, off int) error {
	if err := checkRange(len(m.cache), off, len(p)); err != nil {
		return err
	}
	copy(m.cache[off:], p)
	return nil
}

// Commit copies the cache to Flash.
func (m *Memory) Commit() error {
	if m.CommitError != nil {
		return m.CommitError
	}
	copy(m.Flash, m.cache)
	m.Commits++
	return nil
}

// PowerCycle reloads the cache from Flash, losing uncommitted writes.
func (m *Memory) PowerCycle() {
	copy(m.cache, m.Flash)
}

// Close marks the region closed.
func (m *Memory) Close() error {
	m.Closed = true
	return nil
}
