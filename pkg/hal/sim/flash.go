// Package sim provides simulated peripherals for running the device on a host.
package sim

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/robotalks/nvreg/pkg/hal"
)

// Bank is a simulated flash region persisted as an image file.
type Bank struct {
	Name string
	Base uint32
	Size int
	Path string

	mem []byte
}

func (b *Bank) contains(addr uint32, n int) bool {
	return addr >= b.Base && int(addr-b.Base)+n <= b.Size
}

// Flash simulates an STM32F1-style flash controller over afero files.
// Words are stored big-endian: the half-word at the word address holds the
// high 16 bits.
type Flash struct {
	// BusyPolls is the number of status reads reporting BSY after an operation.
	BusyPolls int
	// Stuck keeps BSY set forever.
	Stuck bool

	fs     afero.Fs
	banks  []*Bank
	faults map[uint32]uint32
	lock   sync.Mutex

	cr       uint32
	sr       uint32
	ar       uint32
	keyStage int
	busy     int
}

// NewFlash creates a locked flash controller and loads bank images.
// Missing images start erased.
func NewFlash(fs afero.Fs, banks ...*Bank) (*Flash, error) {
	f := &Flash{
		fs:     fs,
		banks:  banks,
		faults: make(map[uint32]uint32),
		cr:     hal.FlashCrLOCK,
	}
	for _, b := range banks {
		if b.Size <= 0 || b.Size%4 != 0 {
			return nil, fmt.Errorf("bank %s: invalid size %d", b.Name, b.Size)
		}
		b.mem = make([]byte, b.Size)
		for i := range b.mem {
			b.mem[i] = 0xff
		}
		if b.Path == "" {
			continue
		}
		data, err := afero.ReadFile(fs, b.Path)
		if os.IsNotExist(err) {
			glog.V(1).Infof("flash bank %s: %s not found, starting erased", b.Name, b.Path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bank %s: %w", b.Name, err)
		}
		copy(b.mem, data)
	}
	return f, nil
}

// InjectFault makes reads of the word at addr return value XOR mask.
// A zero mask removes the fault.
func (f *Flash) InjectFault(addr, mask uint32) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if mask == 0 {
		delete(f.faults, addr)
	} else {
		f.faults[addr] = mask
	}
}

// Locked indicates the LOCK bit is set.
func (f *Flash) Locked() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.cr&hal.FlashCrLOCK != 0
}

// Fill writes words directly into a bank, bypassing the controller.
// It is used to provision images.
func (f *Flash) Fill(base uint32, words ...uint32) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	b := f.bankAt(base, len(words)*4)
	if b == nil {
		return fmt.Errorf("address 0x%08x not in any bank", base)
	}
	for i, w := range words {
		binary.BigEndian.PutUint32(b.mem[int(base-b.Base)+i*4:], w)
	}
	return f.persist(b)
}

// WriteKey implements hal.Flash.
func (f *Flash) WriteKey(key uint32) {
	f.lock.Lock()
	defer f.lock.Unlock()
	switch {
	case f.keyStage == 0 && key == hal.FlashKey1:
		f.keyStage = 1
	case f.keyStage == 1 && key == hal.FlashKey2:
		f.keyStage = 0
		f.cr &^= hal.FlashCrLOCK
	default:
		f.keyStage = 0
	}
}

// ReadControl implements hal.Flash.
func (f *Flash) ReadControl() uint32 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.cr
}

// WriteControl implements hal.Flash.
func (f *Flash) WriteControl(cr uint32) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.cr&hal.FlashCrLOCK != 0 {
		if cr&hal.FlashCrLOCK == 0 {
			glog.V(2).Info("flash: CR write ignored while locked")
		}
		return
	}
	if cr&hal.FlashCrSTRT != 0 && cr&hal.FlashCrPER != 0 {
		f.eraseWord(f.ar)
		cr &^= hal.FlashCrSTRT
	}
	f.cr = cr
}

// ReadStatus implements hal.Flash.
func (f *Flash) ReadStatus() uint32 {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.Stuck {
		return f.sr | hal.FlashSrBSY
	}
	if f.busy > 0 {
		f.busy--
		return f.sr | hal.FlashSrBSY
	}
	return f.sr
}

// WriteAddress implements hal.Flash.
func (f *Flash) WriteAddress(addr uint32) {
	f.lock.Lock()
	f.ar = addr
	f.lock.Unlock()
}

// ReadWord implements hal.Flash.
func (f *Flash) ReadWord(addr uint32) uint32 {
	f.lock.Lock()
	defer f.lock.Unlock()
	b := f.bankAt(addr, 4)
	if b == nil {
		return hal.FlashErased
	}
	return binary.BigEndian.Uint32(b.mem[addr-b.Base:]) ^ f.faults[addr]
}

// WriteHalfWord implements hal.Flash.
func (f *Flash) WriteHalfWord(addr uint32, v uint16) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.cr&hal.FlashCrLOCK != 0 || f.cr&hal.FlashCrPG == 0 {
		return
	}
	b := f.bankAt(addr, 2)
	if b == nil || addr%2 != 0 {
		f.sr |= hal.FlashSrPGERR
		return
	}
	off := addr - b.Base
	if binary.BigEndian.Uint16(b.mem[off:]) != 0xffff {
		f.sr |= hal.FlashSrPGERR
		return
	}
	binary.BigEndian.PutUint16(b.mem[off:], v)
	f.complete(b)
}

func (f *Flash) eraseWord(addr uint32) {
	addr &^= 3
	b := f.bankAt(addr, 4)
	if b == nil {
		f.sr |= hal.FlashSrPGERR
		return
	}
	off := addr - b.Base
	binary.BigEndian.PutUint32(b.mem[off:], hal.FlashErased)
	f.complete(b)
}

func (f *Flash) complete(b *Bank) {
	f.busy = f.BusyPolls
	f.sr |= hal.FlashSrEOP
	if err := f.persist(b); err != nil {
		glog.Errorf("flash bank %s: persist error: %v", b.Name, err)
	}
}

func (f *Flash) persist(b *Bank) error {
	if b.Path == "" {
		return nil
	}
	return afero.WriteFile(f.fs, b.Path, b.mem, 0644)
}

func (f *Flash) bankAt(addr uint32, n int) *Bank {
	for _, b := range f.banks {
		if b.contains(addr, n) {
			return b
		}
	}
	return nil
}
