package subbus

// Word is the cache cell backing one register address. It's shared
// between the bus-facing read/write path and the owning driver.
//
// Written is set only by Bus.Write and cleared by the owner once it
// consumed PendingWrite. WasRead is set only by Bus.Read and cleared by
// the owner after it reacted to the read.
type Word struct {
	Value        uint16
	PendingWrite uint16
	Readable     bool
	WasRead      bool
	Writable     bool
	Written      bool
	// Dynamic requests the owner's on-demand hook right after each read.
	Dynamic bool
}

// RO creates a read-only word with initial value.
func RO(value uint16) Word {
	return Word{Value: value, Readable: true}
}

// RW creates a readable and writable word with initial value.
func RW(value uint16) Word {
	return Word{Value: value, Readable: true, Writable: true}
}

// WO creates a write-only word.
func WO() Word {
	return Word{Writable: true}
}

// Reserved creates a word that's neither readable nor writable.
func Reserved() Word {
	return Word{}
}

// AsDynamic marks the word as dynamic.
func (w Word) AsDynamic() Word {
	w.Dynamic = true
	return w
}

// TakeWritten consumes a pending write.
func (w *Word) TakeWritten() (uint16, bool) {
	if !w.Writable || !w.Written {
		return 0, false
	}
	w.Written = false
	return w.PendingWrite, true
}

// TakeRead reports and clears WasRead.
func (w *Word) TakeRead() bool {
	if !w.WasRead {
		return false
	}
	w.WasRead = false
	return true
}
