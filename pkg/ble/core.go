package ble

import (
	"context"
	"time"

	"github.com/Krajiyah/ble-dht/pkg/util"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
)

type coreMethods interface {
	SetDefaultDevice(deviceID int, timeout time.Duration) error
	Stop() error
	AddService(*ble.Service) error
	AdvertiseNameAndServices(context.Context, string, ...ble.UUID) error
	Connect(context.Context, ble.AdvFilter) (ble.Client, error)
	Scan(context.Context, ble.AdvHandler, ble.AdvFilter) error
}

type realCoreMethods struct{}

func (bc *realCoreMethods) Connect(ctx context.Context, f ble.AdvFilter) (ble.Client, error) {
	var client ble.Client
	err := util.CatchErrs(func() error {
		c, e := ble.Connect(ctx, f)
		client = c
		return e
	})
	return client, err
}

func (bc *realCoreMethods) Scan(ctx context.Context, h ble.AdvHandler, f ble.AdvFilter) error {
	return util.CatchErrs(func() error {
		return ble.Scan(ctx, true, h, f)
	})
}

func (bc *realCoreMethods) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	return util.CatchErrs(func() error {
		return ble.AdvertiseNameAndServices(ctx, name, uuids...)
	})
}

func (bc *realCoreMethods) AddService(s *ble.Service) error {
	return util.CatchErrs(func() error {
		return ble.AddService(s)
	})
}

func (bc *realCoreMethods) Stop() error {
	return util.CatchErrs(ble.Stop)
}

func (bc *realCoreMethods) newLinuxDevice(deviceID int, timeout time.Duration) (ble.Device, error) {
	opts := []ble.Option{
		ble.OptDeviceID(deviceID),
		ble.OptDialerTimeout(timeout), // client to server timeout
	}
	return linux.NewDevice(opts...)
}

func (bc *realCoreMethods) SetDefaultDevice(deviceID int, timeout time.Duration) error {
	return util.CatchErrs(func() error {
		device, err := bc.newLinuxDevice(deviceID, timeout)
		if err != nil {
			return errors.Wrap(err, "newLinuxDevice issue")
		}
		ble.SetDefaultDevice(device)
		return nil
	})
}
