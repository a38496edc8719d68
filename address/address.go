// Package address makes sure a bound interface has a usable IPv4 address
// before a session is opened on it, starting DHCP and waiting a bounded time
// for a lease when it has none.
package address

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/nic"
	"github.com/gaborage/go-netreq/request"
	"github.com/gaborage/go-netreq/wait"
)

const DefaultPollInterval = time.Second

// Platform is the host facility that reports and configures interface addresses.
type Platform interface {
	// IPv4 returns the interface's current IPv4 address. An invalid address
	// means none is configured yet.
	IPv4(ctx context.Context, iface nic.Interface) (netip.Addr, error)
	StartDHCP(ctx context.Context, iface nic.Interface) error
	StopDHCP(ctx context.Context, iface nic.Interface) error
}

// Acquirer obtains addresses for the interface a request is bound to.
type Acquirer struct {
	platform     Platform
	waiter       wait.Waiter
	pollInterval time.Duration
	log          logger.Logger
}

// NewAcquirer creates an acquirer. A non-positive pollInterval means DefaultPollInterval.
func NewAcquirer(platform Platform, waiter wait.Waiter, pollInterval time.Duration, log logger.Logger) *Acquirer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Acquirer{
		platform:     platform,
		waiter:       waiter,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Acquire ensures req's bound interface has an IPv4 address, waiting at most
// bound for a DHCP lease. On success the address and a dialer bound to it
// are recorded on req.
func (a *Acquirer) Acquire(ctx context.Context, req *request.NetworkRequest, bound time.Duration) (netip.Addr, error) {
	iface := req.Nic.Interface
	log := a.log.WithContext(ctx)

	addr, err := a.platform.IPv4(ctx, iface)
	if err != nil {
		return netip.Addr{}, request.NewError(request.KindAddressAcquisitionFailed,
			fmt.Sprintf("failed to query address of %s", iface), err)
	}
	if addr.IsValid() {
		a.bind(req, addr)
		return addr, nil
	}

	if err := a.platform.StartDHCP(ctx, iface); err != nil {
		return netip.Addr{}, request.NewError(request.KindAddressAcquisitionFailed,
			fmt.Sprintf("failed to start DHCP on %s", iface), err)
	}
	req.Nic.DHCPRequested = true

	log.Debug().
		Str("nic", iface.String()).
		Dur("bound", bound).
		Msg("Waiting for DHCP lease")

	h := a.waiter.NewHandle(bound)
	req.Nic.Wait = h
	defer func() {
		h.Release()
		req.Nic.Wait = nil
	}()

	err = a.waiter.Until(ctx, h, a.pollInterval, func(ctx context.Context) (bool, error) {
		var pollErr error
		addr, pollErr = a.platform.IPv4(ctx, iface)
		if pollErr != nil {
			return false, pollErr
		}
		return addr.IsValid(), nil
	})
	switch {
	case err == nil:
	case errors.Is(err, wait.ErrTimeout):
		return netip.Addr{}, request.NewError(request.KindAddressAcquisitionTimeout,
			fmt.Sprintf("no DHCP lease on %s within %s", iface, bound), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return netip.Addr{}, request.NewError(request.KindCanceled, "address acquisition canceled", err)
	default:
		return netip.Addr{}, request.NewError(request.KindAddressAcquisitionFailed,
			fmt.Sprintf("failed to query address of %s", iface), err)
	}

	a.bind(req, addr)
	log.Info().
		Str("nic", iface.String()).
		Str("address", addr.String()).
		Msg("DHCP lease acquired")
	return addr, nil
}

// Release stops a DHCP exchange that never produced a lease. It is safe to
// call on a request that never started one.
func (a *Acquirer) Release(ctx context.Context, req *request.NetworkRequest) {
	if !req.Nic.DHCPRequested || req.Nic.IPv4.LocalAddress.IsValid() {
		return
	}
	iface := req.Nic.Interface
	if err := a.platform.StopDHCP(ctx, iface); err != nil {
		a.log.WithContext(ctx).Warn().
			Err(err).
			Str("nic", iface.String()).
			Msg("Failed to stop pending DHCP exchange")
	}
	req.Nic.DHCPRequested = false
}

func (a *Acquirer) bind(req *request.NetworkRequest, addr netip.Addr) {
	req.Nic.IPv4 = request.AccessPoint{LocalAddress: addr}
	req.Nic.Dialer = &net.Dialer{
		LocalAddr: &net.TCPAddr{IP: addr.AsSlice()},
	}
}
