package address

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/gaborage/go-netreq/nic"
)

// SystemPlatform reads addresses from the host network stack. Leases are
// owned by the operating system's DHCP client, so starting and stopping DHCP
// only records intent and the acquirer waits for the OS to configure the
// interface.
type SystemPlatform struct{}

var _ Platform = SystemPlatform{}

func (SystemPlatform) IPv4(_ context.Context, iface nic.Interface) (netip.Addr, error) {
	netIface, err := net.InterfaceByIndex(iface.Index)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("interface %s: %w", iface, err)
	}
	addrs, err := netIface.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("addresses of %s: %w", iface, err)
	}
	return firstUsableIPv4(addrs), nil
}

func (SystemPlatform) StartDHCP(context.Context, nic.Interface) error { return nil }

func (SystemPlatform) StopDHCP(context.Context, nic.Interface) error { return nil }

// firstUsableIPv4 skips link-local and unspecified addresses, which are what
// an interface carries while it still waits for a lease.
func firstUsableIPv4(addrs []net.Addr) netip.Addr {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if !addr.Is4() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			continue
		}
		return addr
	}
	return netip.Addr{}
}
