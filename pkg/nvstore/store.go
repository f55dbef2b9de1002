// Package nvstore keeps the register file and mirrors the Config region
// to two flash banks.
package nvstore

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nvreg/pkg/hal"
	"github.com/robotalks/nvreg/pkg/regmap"
)

// Bank selects a flash bank.
type Bank int

const (
	// BankFactory holds shipped defaults.
	BankFactory Bank = iota
	// BankConfig holds the user committed copy.
	BankConfig
)

// String implements fmt.Stringer.
func (b Bank) String() string {
	switch b {
	case BankFactory:
		return "factory"
	case BankConfig:
		return "config"
	}
	return fmt.Sprintf("bank(%d)", int(b))
}

// Default bank locations.
const (
	DefaultFactoryBase uint32 = 0x0800E000
	DefaultConfigBase  uint32 = 0x0800F000

	// BankSize is the byte size of the Config region image.
	BankSize = regmap.ConfigCount * 4

	// DefaultFlashTimeout bounds each busy wait.
	DefaultFlashTimeout = time.Second
)

// Source tells where Load got the Config region from.
type Source int

const (
	// SourceDefaults means both banks were erased and registers are zero.
	SourceDefaults Source = iota
	// SourceFactory means the Config bank was erased.
	SourceFactory
	// SourceConfig means a committed configuration was found.
	SourceConfig
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceFactory:
		return "factory"
	case SourceConfig:
		return "config"
	}
	return "defaults"
}

// Store owns the register file and the flash controller.
type Store struct {
	FactoryBase  uint32
	ConfigBase   uint32
	FlashTimeout time.Duration

	flash hal.Flash
	regs  [regmap.RegisterCount]uint32
	lock  sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithBanks overrides bank base addresses.
func WithBanks(factory, config uint32) Option {
	return func(s *Store) {
		s.FactoryBase, s.ConfigBase = factory, config
	}
}

// WithFlashTimeout overrides the busy wait bound.
func WithFlashTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.FlashTimeout = d
	}
}

// New creates a Store taking over the flash controller.
// The register file starts zero-filled; call Load to populate it.
func New(flash hal.Flash, opts ...Option) *Store {
	s := &Store{
		FactoryBase:  DefaultFactoryBase,
		ConfigBase:   DefaultConfigBase,
		FlashTimeout: DefaultFlashTimeout,
		flash:        flash,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) bankBase(b Bank) uint32 {
	if b == BankFactory {
		return s.FactoryBase
	}
	return s.ConfigBase
}

// Load populates the Config region from the Config bank, falling back to
// the Factory bank and then to all zeros when a bank is erased.
func (s *Store) Load() Source {
	s.lock.Lock()
	defer s.lock.Unlock()
	src := SourceDefaults
	switch {
	case s.flash.ReadWord(s.ConfigBase) != hal.FlashErased:
		src = SourceConfig
		s.loadBank(BankConfig)
	case s.flash.ReadWord(s.FactoryBase) != hal.FlashErased:
		src = SourceFactory
		s.loadBank(BankFactory)
	default:
		s.regs = [regmap.RegisterCount]uint32{}
	}
	glog.V(1).Infof("registers loaded from %s", src)
	return src
}

func (s *Store) loadBank(b Bank) {
	base := s.bankBase(b)
	for i := 0; i < regmap.ConfigCount; i++ {
		s.regs[regmap.ConfigStart+i] = s.flash.ReadWord(base + uint32(i)*4)
	}
}

// ClearData zero-fills the Data region in memory.
func (s *Store) ClearData() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := 0; i < regmap.DataCount; i++ {
		s.regs[regmap.DataStart+i] = 0
	}
}

// Get reads a register.
func (s *Store) Get(addr int) (uint32, error) {
	if addr < 0 || addr >= regmap.RegisterCount {
		return 0, &AddressError{Address: addr}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.regs[addr], nil
}

// Set writes a register.
func (s *Store) Set(addr int, val uint32) error {
	if addr < 0 || addr >= regmap.RegisterCount {
		return &AddressError{Address: addr}
	}
	s.lock.Lock()
	s.regs[addr] = val
	s.lock.Unlock()
	return nil
}

// GetFloat32 reads a register as IEEE-754 bits.
func (s *Store) GetFloat32(addr int) (float32, error) {
	v, err := s.Get(addr)
	return math.Float32frombits(v), err
}

// SetFloat32 writes the IEEE-754 bits of val.
func (s *Store) SetFloat32(addr int, val float32) error {
	return s.Set(addr, math.Float32bits(val))
}

// Snapshot copies the whole register file.
func (s *Store) Snapshot() []uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	regs := make([]uint32, len(s.regs))
	copy(regs, s.regs[:])
	return regs
}
