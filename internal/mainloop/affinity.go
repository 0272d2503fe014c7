package mainloop

// Affinity answers whether the caller runs on the goroutine it was bound to.
type Affinity struct {
	id uint64
}

// BindCurrent returns an Affinity bound to the calling goroutine.
func BindCurrent() Affinity {
	return Affinity{id: currentGoroutineID()}
}

// IsCurrent reports whether the caller runs on the bound goroutine.
func (a Affinity) IsCurrent() bool {
	return a.id != 0 && a.id == currentGoroutineID()
}
