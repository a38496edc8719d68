package nic

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInterfaces = StaticSource{
	{Index: 1, Name: "eth0"},
	{Index: 2, Name: "eth1"},
	{Index: 3, Name: "wlan0"},
}

func names(c *Cursor) []string {
	var out []string
	for {
		iface, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, iface.Name)
	}
}

func TestCursorYieldsInDiscoveryOrder(t *testing.T) {
	c, err := NewEnumerator(testInterfaces).Cursor()
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"eth0", "eth1", "wlan0"}, names(c))

	_, ok := c.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Remaining())
}

func TestCursorReset(t *testing.T) {
	c, err := NewEnumerator(testInterfaces).Cursor()
	require.NoError(t, err)

	_, _ = c.Next()
	_, _ = c.Next()
	assert.Equal(t, 1, c.Remaining())

	c.Reset()
	assert.Equal(t, []string{"eth0", "eth1", "wlan0"}, names(c))
}

func TestCursorAllDoesNotAdvance(t *testing.T) {
	c, err := NewEnumerator(testInterfaces).Cursor()
	require.NoError(t, err)
	_, _ = c.Next()

	var seen []string
	for iface := range c.All() {
		seen = append(seen, iface.Name)
	}
	assert.Equal(t, []string{"eth1", "wlan0"}, seen)
	assert.Equal(t, 2, c.Remaining())

	var first string
	for iface := range c.All() {
		first = iface.Name
		break
	}
	assert.Equal(t, "eth1", first)
}

func TestEnumeratorEmptySource(t *testing.T) {
	_, err := NewEnumerator(StaticSource{}).Cursor()
	assert.ErrorIs(t, err, ErrNoInterfaces)

	_, err = NewEnumerator(StaticSource{}).All()
	assert.ErrorIs(t, err, ErrNoInterfaces)
}

func TestEnumeratorSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewEnumerator(SourceFunc(func() ([]Interface, error) { return nil, boom })).Cursor()
	assert.ErrorIs(t, err, boom)
}

func TestEnumeratorDiscoversPerCursor(t *testing.T) {
	calls := 0
	src := SourceFunc(func() ([]Interface, error) {
		calls++
		return []Interface{{Index: calls, Name: "eth0"}}, nil
	})
	e := NewEnumerator(src)

	c1, err := e.Cursor()
	require.NoError(t, err)
	c2, err := e.Cursor()
	require.NoError(t, err)

	a, _ := c1.Next()
	b, _ := c2.Next()
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, 2, b.Index)
}

func TestStaticSourceReturnsCopy(t *testing.T) {
	src := StaticSource{{Index: 1, Name: "eth0"}}
	got, err := src.Interfaces()
	require.NoError(t, err)
	got[0].Name = "changed"

	assert.Equal(t, "eth0", src[0].Name)
}

func TestSystemSourceUsable(t *testing.T) {
	tests := []struct {
		name     string
		flags    net.Flags
		loopback bool
		want     bool
	}{
		{name: "down", flags: net.FlagBroadcast, want: false},
		{name: "ethernet", flags: net.FlagUp | net.FlagBroadcast | net.FlagMulticast, want: true},
		{name: "point to point", flags: net.FlagUp | net.FlagPointToPoint, want: true},
		{name: "loopback excluded", flags: net.FlagUp | net.FlagLoopback, want: false},
		{name: "loopback included", flags: net.FlagUp | net.FlagLoopback, loopback: true, want: true},
		{name: "up without broadcast", flags: net.FlagUp, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SystemSource{IncludeLoopback: tt.loopback}
			assert.Equal(t, tt.want, s.usable(&net.Interface{Flags: tt.flags}))
		})
	}
}

func TestInterfaceString(t *testing.T) {
	assert.Equal(t, "eth0#2", Interface{Index: 2, Name: "eth0"}.String())
	assert.Equal(t, "nic#4", Interface{Index: 4}.String())
}
