// Package nic discovers the network interfaces a request can be sent from.
package nic

import (
	"errors"
	"fmt"
	"iter"
	"net"
)

// ErrNoInterfaces is returned when discovery yields no usable interface.
var ErrNoInterfaces = errors.New("no network interfaces found")

// Interface describes one network interface candidate.
type Interface struct {
	Index        int
	Name         string
	HardwareAddr net.HardwareAddr
	MTU          int
	Flags        net.Flags
}

func (i Interface) String() string {
	if i.Name == "" {
		return fmt.Sprintf("nic#%d", i.Index)
	}
	return fmt.Sprintf("%s#%d", i.Name, i.Index)
}

// Source discovers interfaces.
type Source interface {
	Interfaces() ([]Interface, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() ([]Interface, error)

func (f SourceFunc) Interfaces() ([]Interface, error) {
	return f()
}

// StaticSource always yields the same interfaces.
type StaticSource []Interface

func (s StaticSource) Interfaces() ([]Interface, error) {
	out := make([]Interface, len(s))
	copy(out, s)
	return out, nil
}

// SystemSource discovers the interfaces of the host. Interfaces that are
// down or cannot carry IPv4 unicast are skipped; loopback only when
// IncludeLoopback is set.
type SystemSource struct {
	IncludeLoopback bool
}

func (s SystemSource) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))
	for i := range ifaces {
		if !s.usable(&ifaces[i]) {
			continue
		}
		out = append(out, fromNet(&ifaces[i]))
	}
	return out, nil
}

func (s SystemSource) usable(iface *net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return s.IncludeLoopback
	}
	return iface.Flags&(net.FlagBroadcast|net.FlagPointToPoint) != 0
}

func fromNet(iface *net.Interface) Interface {
	return Interface{
		Index:        iface.Index,
		Name:         iface.Name,
		HardwareAddr: iface.HardwareAddr,
		MTU:          iface.MTU,
		Flags:        iface.Flags,
	}
}

// Enumerator hands out cursors over the interfaces of a Source.
type Enumerator struct {
	source Source
}

// NewEnumerator creates an enumerator. A nil source means the host interfaces.
func NewEnumerator(source Source) *Enumerator {
	if source == nil {
		source = SystemSource{}
	}
	return &Enumerator{source: source}
}

// Cursor discovers the interfaces and returns a cursor positioned before the
// first one. Discovery happens once per cursor.
func (e *Enumerator) Cursor() (*Cursor, error) {
	items, err := e.source.Interfaces()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoInterfaces
	}
	return &Cursor{items: items}, nil
}

// All returns the discovered interfaces as a sequence.
func (e *Enumerator) All() (iter.Seq[Interface], error) {
	c, err := e.Cursor()
	if err != nil {
		return nil, err
	}
	return c.All(), nil
}

// Cursor walks a discovered interface list. It is not safe for concurrent use.
type Cursor struct {
	items []Interface
	pos   int
}

// Next yields the next interface, or false once the list is exhausted.
func (c *Cursor) Next() (Interface, bool) {
	if c.pos >= len(c.items) {
		return Interface{}, false
	}
	iface := c.items[c.pos]
	c.pos++
	return iface, true
}

// Reset rewinds the cursor to the first interface.
func (c *Cursor) Reset() {
	c.pos = 0
}

func (c *Cursor) Len() int {
	return len(c.items)
}

// Remaining returns how many interfaces Next will still yield.
func (c *Cursor) Remaining() int {
	return len(c.items) - c.pos
}

// All yields every interface from the current position onward without
// moving the cursor.
func (c *Cursor) All() iter.Seq[Interface] {
	start := c.pos
	return func(yield func(Interface) bool) {
		for _, iface := range c.items[start:] {
			if !yield(iface) {
				return
			}
		}
	}
}
