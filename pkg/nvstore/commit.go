package nvstore

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/jpillora/backoff"

	"github.com/robotalks/nvreg/pkg/hal"
	"github.com/robotalks/nvreg/pkg/regmap"
)

// Commit persists the Config region to the target bank by erasing,
// programming and verifying each word. The flash controller is locked
// again on return, whatever the outcome.
//
// ctx can only abort the commit before the flash is unlocked.
//
// A *VerifyError or ErrFlashTimeout is fatal, see IsFatal.
func (s *Store) Commit(ctx context.Context, target Bank) (err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	base := s.bankBase(target)
	glog.V(1).Infof("commit %s bank at 0x%08x", target, base)

	defer s.lockFlash()
	if err = s.waitIdle(ctx); err != nil {
		return err
	}
	s.unlockFlash()

	// Once erasing starts the bank is only consistent again after the last
	// word is verified, so cancellation is no longer honored. FlashTimeout
	// still bounds every wait.
	ctx = context.Background()

	for i := 0; i < regmap.ConfigCount; i++ {
		addr := base + uint32(i)*4
		cr := s.flash.ReadControl()
		s.flash.WriteControl(cr | hal.FlashCrPER)
		s.flash.WriteAddress(addr)
		s.flash.WriteControl(cr | hal.FlashCrPER | hal.FlashCrSTRT)
		if err = s.waitIdle(ctx); err != nil {
			return err
		}
		s.flash.WriteControl(s.flash.ReadControl() &^ hal.FlashCrPER)
	}

	for i := 0; i < regmap.ConfigCount; i++ {
		addr := base + uint32(i)*4
		val := s.regs[regmap.ConfigStart+i]
		s.flash.WriteControl(s.flash.ReadControl() | hal.FlashCrPG)
		s.flash.WriteHalfWord(addr, uint16(val>>16))
		if err = s.waitIdle(ctx); err != nil {
			return err
		}
		s.flash.WriteHalfWord(addr+2, uint16(val))
		if err = s.waitIdle(ctx); err != nil {
			return err
		}
		s.flash.WriteControl(s.flash.ReadControl() &^ hal.FlashCrPG)
		if got := s.flash.ReadWord(addr); got != val {
			return &VerifyError{Bank: target, Address: addr, Want: val, Got: got}
		}
	}
	glog.Infof("committed %d words to %s bank", regmap.ConfigCount, target)
	return nil
}

func (s *Store) unlockFlash() {
	s.flash.WriteKey(hal.FlashKey1)
	s.flash.WriteKey(hal.FlashKey2)
}

func (s *Store) lockFlash() {
	s.flash.WriteControl(s.flash.ReadControl() | hal.FlashCrLOCK)
}

// waitIdle polls BSY with growing pauses until clear or FlashTimeout.
func (s *Store) waitIdle(ctx context.Context) error {
	if s.flash.ReadStatus()&hal.FlashSrBSY == 0 {
		return nil
	}
	timeout := s.FlashTimeout
	if timeout <= 0 {
		timeout = DefaultFlashTimeout
	}
	deadline := time.Now().Add(timeout)
	b := &backoff.Backoff{
		Min:    time.Microsecond,
		Max:    10 * time.Millisecond,
		Factor: 2,
		Jitter: false,
	}
	for s.flash.ReadStatus()&hal.FlashSrBSY != 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return ErrFlashTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return nil
}
