package subbus

import "fmt"

// Driver owns a contiguous range [Low, High] of the address space and
// the cache words backing it.
type Driver struct {
	Name      string
	Low, High uint16
	Cache     []Word

	// OnReset is called by Bus.Reset, may be nil.
	OnReset func(*Driver)
	// OnPoll is called by Bus.Poll, may be nil.
	OnPoll func(*Driver)
	// OnDemand is called right after a Dynamic word is read, with the
	// offset of the word in Cache. May be nil.
	OnDemand func(drv *Driver, offset uint16)
}

// NewDriver creates a driver for the range starting at low, with one
// address per word.
func NewDriver(name string, low uint16, words ...Word) *Driver {
	if len(words) == 0 {
		panic(fmt.Sprintf("subbus: driver %q has no words", name))
	}
	return &Driver{
		Name:  name,
		Low:   low,
		High:  low + uint16(len(words)-1),
		Cache: words,
	}
}

// WithReset sets OnReset.
func (d *Driver) WithReset(fn func(*Driver)) *Driver {
	d.OnReset = fn
	return d
}

// WithPoll sets OnPoll.
func (d *Driver) WithPoll(fn func(*Driver)) *Driver {
	d.OnPoll = fn
	return d
}

// WithOnDemand sets OnDemand.
func (d *Driver) WithOnDemand(fn func(*Driver, uint16)) *Driver {
	d.OnDemand = fn
	return d
}

// Contains checks whether addr is in the range of the driver.
func (d *Driver) Contains(addr uint16) bool {
	return addr >= d.Low && addr <= d.High
}

// Word returns the cache word of addr, or nil if out of range.
func (d *Driver) Word(addr uint16) *Word {
	if !d.Contains(addr) {
		return nil
	}
	return &d.Cache[addr-d.Low]
}

// IsWritten consumes a value written to addr since the last call.
func (d *Driver) IsWritten(addr uint16) (uint16, bool) {
	if w := d.Word(addr); w != nil {
		return w.TakeWritten()
	}
	return 0, false
}

// Update stores a value acquired by the owner into a readable word.
// Unlike Bus.Write this changes Value directly and clears WasRead.
func (d *Driver) Update(addr uint16, value uint16) bool {
	w := d.Word(addr)
	if w == nil || !w.Readable {
		return false
	}
	w.Value, w.WasRead = value, false
	return true
}

func (d *Driver) String() string {
	return fmt.Sprintf("%s[%#04x-%#04x]", d.Name, d.Low, d.High)
}

func (d *Driver) validate() error {
	if d.High < d.Low {
		return fmt.Errorf("%w: %s high below low", ErrDriverRange, d)
	}
	if n := int(d.High-d.Low) + 1; len(d.Cache) != n {
		return fmt.Errorf("%w: %s has %d words, expects %d", ErrDriverRange, d, len(d.Cache), n)
	}
	return nil
}
