package mocks

import (
	"context"
	"net/netip"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-netreq/nic"
	"github.com/gaborage/go-netreq/request"
)

// MockInterfaceSource provides a testify-based mock implementation of nic.Source.
//
// Example usage:
//
//	src := &mocks.MockInterfaceSource{}
//	src.On("Interfaces").Return([]nic.Interface{{Index: 1, Name: "eth0"}}, nil)
type MockInterfaceSource struct {
	mock.Mock
}

func (m *MockInterfaceSource) Interfaces() ([]nic.Interface, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]nic.Interface), args.Error(1)
}

// MockAddressPlatform provides a testify-based mock implementation of address.Platform.
//
// Example usage:
//
//	platform := &mocks.MockAddressPlatform{}
//	platform.On("IPv4", mock.Anything, mock.Anything).Return(netip.Addr{}, nil).Once()
//	platform.On("IPv4", mock.Anything, mock.Anything).Return(netip.MustParseAddr("10.0.0.5"), nil)
//	platform.On("StartDHCP", mock.Anything, mock.Anything).Return(nil)
type MockAddressPlatform struct {
	mock.Mock
}

func (m *MockAddressPlatform) IPv4(ctx context.Context, iface nic.Interface) (netip.Addr, error) {
	args := m.Called(ctx, iface)
	return args.Get(0).(netip.Addr), args.Error(1)
}

func (m *MockAddressPlatform) StartDHCP(ctx context.Context, iface nic.Interface) error {
	return m.Called(ctx, iface).Error(0)
}

func (m *MockAddressPlatform) StopDHCP(ctx context.Context, iface nic.Interface) error {
	return m.Called(ctx, iface).Error(0)
}

// MockProcessor provides a testify-based mock of the request processor entry points.
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, req *request.NetworkRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProcessor) ProcessWorkaround(ctx context.Context, req *request.NetworkRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// ExpectOutcome configures the primary entry point to fill in req as a
// finished run with the given outcome.
func (m *MockProcessor) ExpectOutcome(method string, outcome error, httpStatus int, body []byte) *mock.Call {
	return m.On(method, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*request.NetworkRequest)
			req.Status.Code = request.KindOf(outcome)
			req.Status.HTTPStatus = httpStatus
			req.Status.FinalURL = req.Request.URL
			req.Response.Body = body
		}).
		Return(string(request.KindOf(outcome)), outcome)
}
