// Package device wires the register store and packet router into the
// superloop running on the device.
package device

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/nvreg/pkg/framework"
	"github.com/robotalks/nvreg/pkg/hal"
	"github.com/robotalks/nvreg/pkg/nvstore"
	"github.com/robotalks/nvreg/pkg/router"
)

// Port is the byte transport as seen by the loop.
// Poll must not block.
type Port interface {
	Poll() (byte, bool)
	Send([]byte) error
}

// Defaults.
const (
	DefaultBlinkInterval = time.Second
	// DefaultIntakeBudget bounds bytes consumed per iteration.
	DefaultIntakeBudget = 256
)

// Device owns the store, router and peripherals.
type Device struct {
	Store  *nvstore.Store
	Router *router.Router
	Port   Port
	LED    hal.Pin

	BlinkInterval time.Duration
	IntakeBudget  int
	// Halt is called on storage faults and must not return in production.
	Halt func(error)

	lastBlink time.Time
}

// New creates a Device.
func New(store *nvstore.Store, port Port, led hal.Pin) *Device {
	return &Device{
		Store:         store,
		Router:        router.New(),
		Port:          port,
		LED:           led,
		BlinkInterval: DefaultBlinkInterval,
		IntakeBudget:  DefaultIntakeBudget,
		Halt: func(err error) {
			glog.Fatalf("storage fault, halting: %v", err)
		},
	}
}

// AddToLoop implements framework.LoopAdder.
func (d *Device) AddToLoop(l *fx.Loop) {
	l.AddController(
		fx.ControlFunc(d.blink),
		fx.ControlFunc(d.intake),
		fx.ControlFunc(d.dispatch),
		fx.ControlFunc(d.transmit),
	)
}

func (d *Device) blink(cc fx.ControlContext) error {
	if d.LED == nil {
		return nil
	}
	now := cc.Time()
	if d.lastBlink.IsZero() {
		d.lastBlink = now
		return nil
	}
	if now.Sub(d.lastBlink) >= d.BlinkInterval {
		d.LED.Set(!d.LED.Get())
		d.lastBlink = now
	}
	return nil
}

func (d *Device) intake(cc fx.ControlContext) error {
	budget := d.IntakeBudget
	if budget <= 0 {
		budget = DefaultIntakeBudget
	}
	for i := 0; i < budget; i++ {
		b, ok := d.Port.Poll()
		if !ok {
			return nil
		}
		d.Router.ReceiveByte(b)
	}
	cc.TriggerNext()
	return nil
}

func (d *Device) dispatch(cc fx.ControlContext) error {
	for {
		rec, ok := d.Router.PopRx()
		if !ok {
			return nil
		}
		if err := d.handle(cc.Context(), rec); err != nil {
			if nvstore.IsFatal(err) {
				d.Halt(err)
			}
			return err
		}
	}
}

func (d *Device) transmit(cc fx.ControlContext) error {
	for {
		b, ok := d.Router.PopTx()
		if !ok {
			return nil
		}
		if err := d.Port.Send(b); err != nil {
			return err
		}
	}
}
