package alarm

import "sync/atomic"

// EditGuard marks the one alarm slot whose time is being edited
// interactively. It is written from the input context and read by the
// engine; flag and slot share a single atomic word (0 = not editing,
// otherwise slot+1). The zero value is a cleared guard.
type EditGuard struct {
	word atomic.Int32
}

// Begin marks slot as being edited. Invalid slots clear the guard.
func (g *EditGuard) Begin(slot int) {
	if !ValidSlot(slot) {
		g.word.Store(0)
		return
	}
	g.word.Store(int32(slot) + 1)
}

// End clears the guard.
func (g *EditGuard) End() {
	g.word.Store(0)
}

// Slot returns the slot under edit.
func (g *EditGuard) Slot() (int, bool) {
	w := g.word.Load()
	if w == 0 {
		return -1, false
	}
	return int(w) - 1, true
}

// Holds reports whether slot is currently under edit.
func (g *EditGuard) Holds(slot int) bool {
	s, ok := g.Slot()
	return ok && s == slot
}
