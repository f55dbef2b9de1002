package nvstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/nvreg/pkg/hal"
	"github.com/robotalks/nvreg/pkg/hal/sim"
	"github.com/robotalks/nvreg/pkg/regmap"
)

func newTestFlash(t *testing.T) *sim.Flash {
	f, err := sim.NewFlash(afero.NewMemMapFs(),
		&sim.Bank{Name: "factory", Base: DefaultFactoryBase, Size: BankSize, Path: "/factory.bin"},
		&sim.Bank{Name: "config", Base: DefaultConfigBase, Size: BankSize, Path: "/config.bin"},
	)
	require.NoError(t, err)
	return f
}

func TestLoadDefaults(t *testing.T) {
	s := New(newTestFlash(t))
	require.NoError(t, s.Set(5, 42))
	require.NoError(t, s.Set(100, 7))
	require.Equal(t, SourceDefaults, s.Load())
	for _, v := range s.Snapshot() {
		require.Zero(t, v)
	}
}

func TestLoadFactoryFallback(t *testing.T) {
	f := newTestFlash(t)
	require.NoError(t, f.Fill(DefaultFactoryBase, 1, 2, 3))
	s := New(f)
	require.Equal(t, SourceFactory, s.Load())
	regs := s.Snapshot()
	require.Equal(t, []uint32{1, 2, 3}, regs[:3])
	require.Equal(t, hal.FlashErased, regs[3])
}

func TestLoadConfig(t *testing.T) {
	f := newTestFlash(t)
	require.NoError(t, f.Fill(DefaultFactoryBase, 1, 2, 3))
	require.NoError(t, f.Fill(DefaultConfigBase, 9, 8))
	require.NoError(t, f.Fill(DefaultConfigBase+(regmap.ConfigCount-1)*4, 0x77))
	s := New(f)
	require.NoError(t, s.Set(100, 5))
	require.Equal(t, SourceConfig, s.Load())
	v, err := s.Get(0)
	require.NoError(t, err)
	require.EqualValues(t, 9, v)
	v, err = s.Get(1)
	require.NoError(t, err)
	require.EqualValues(t, 8, v)
	v, err = s.Get(regmap.ConfigCount - 1)
	require.NoError(t, err)
	require.EqualValues(t, 0x77, v)
	v, err = s.Get(100)
	require.NoError(t, err)
	require.EqualValues(t, 5, v, "data region is not touched by a bank load")
}

func TestLoadIdempotent(t *testing.T) {
	for _, fill := range []func(f *sim.Flash) error{
		func(f *sim.Flash) error { return nil },
		func(f *sim.Flash) error { return f.Fill(DefaultFactoryBase, 1, 2) },
		func(f *sim.Flash) error { return f.Fill(DefaultConfigBase, 3, 4) },
	} {
		f := newTestFlash(t)
		require.NoError(t, fill(f))
		s := New(f)
		src := s.Load()
		first := s.Snapshot()
		require.Equal(t, src, s.Load())
		require.Equal(t, first, s.Snapshot())
	}
}

func TestClearData(t *testing.T) {
	s := New(newTestFlash(t))
	require.NoError(t, s.Set(10, 9))
	require.NoError(t, s.Set(100, 7))
	require.NoError(t, s.Set(regmap.CommandStart, 3))
	s.ClearData()
	v, err := s.Get(100)
	require.NoError(t, err)
	require.Zero(t, v)
	v, err = s.Get(10)
	require.NoError(t, err)
	require.EqualValues(t, 9, v)
	v, err = s.Get(regmap.CommandStart)
	require.NoError(t, err)
	require.EqualValues(t, 3, v)
}

func TestGetSetBounds(t *testing.T) {
	s := New(newTestFlash(t))
	for _, addr := range []int{-1, regmap.RegisterCount, 1000} {
		_, err := s.Get(addr)
		require.True(t, errors.Is(err, ErrOutOfRange))
		err = s.Set(addr, 1)
		require.Equal(t, &AddressError{Address: addr}, err)
	}
	require.NoError(t, s.Set(regmap.RegisterCount-1, 1))
	v, err := s.Get(regmap.RegisterCount - 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

func TestFloat32BitRoundTrip(t *testing.T) {
	s := New(newTestFlash(t))
	values := []float32{
		0, float32(math.Copysign(0, -1)), 1.5, -3.25, math.MaxFloat32, math.SmallestNonzeroFloat32,
		float32(math.Inf(1)), float32(math.Inf(-1)),
		math.Float32frombits(0x7fc00000), // quiet NaN
		math.Float32frombits(0x7f800001), // signaling NaN
		math.Float32frombits(0xffc12345), // negative NaN with payload
	}
	for _, v := range values {
		require.NoError(t, s.SetFloat32(20, v))
		got, err := s.GetFloat32(20)
		require.NoError(t, err)
		require.Equal(t, math.Float32bits(v), math.Float32bits(got))
		raw, err := s.Get(20)
		require.NoError(t, err)
		require.Equal(t, math.Float32bits(v), raw)
	}
}

func TestCommitAndReload(t *testing.T) {
	for _, target := range []Bank{BankConfig, BankFactory} {
		t.Run(target.String(), func(t *testing.T) {
			f := newTestFlash(t)
			f.BusyPolls = 3
			s := New(f)
			for i := 0; i < regmap.ConfigCount; i++ {
				require.NoError(t, s.Set(i, uint32(i)*0x01010101))
			}
			require.NoError(t, s.Set(regmap.ConfigCount-1, hal.FlashErased))
			require.NoError(t, s.Commit(context.Background(), target))
			require.True(t, f.Locked())

			// recommit over programmed words
			require.NoError(t, s.Set(3, 0xdeadbeef))
			require.NoError(t, s.Commit(context.Background(), target))

			reloaded := New(f)
			src := reloaded.Load()
			if target == BankConfig {
				// word0 is zero, which is not the erased sentinel
				require.Equal(t, SourceConfig, src)
			} else {
				require.Equal(t, SourceFactory, src)
			}
			require.Equal(t, s.Snapshot()[:regmap.ConfigCount], reloaded.Snapshot()[:regmap.ConfigCount])
		})
	}
}

func TestCommitVerifyFailure(t *testing.T) {
	f := newTestFlash(t)
	s := New(f)
	require.NoError(t, s.Set(2, 0x12345678))
	f.InjectFault(DefaultConfigBase+8, 0x100)
	err := s.Commit(context.Background(), BankConfig)
	require.Equal(t, &VerifyError{
		Bank:    BankConfig,
		Address: DefaultConfigBase + 8,
		Want:    0x12345678,
		Got:     0x12345778,
	}, err)
	require.True(t, IsFatal(err))
	require.True(t, f.Locked())
}

func TestCommitTimeout(t *testing.T) {
	f := newTestFlash(t)
	f.Stuck = true
	s := New(f, WithFlashTimeout(5*time.Millisecond))
	err := s.Commit(context.Background(), BankConfig)
	require.Equal(t, ErrFlashTimeout, err)
	require.True(t, IsFatal(err))
	require.True(t, f.Locked())
}

func TestCommitCanceled(t *testing.T) {
	f := newTestFlash(t)
	f.Stuck = true
	s := New(f, WithFlashTimeout(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Commit(ctx, BankConfig)
	require.Equal(t, context.Canceled, err)
	require.False(t, IsFatal(err))
	require.True(t, f.Locked())
}

// cancelingFlash cancels a context after a number of half-word writes.
type cancelingFlash struct {
	*sim.Flash
	after  int
	cancel context.CancelFunc
}

func (f *cancelingFlash) WriteHalfWord(addr uint32, v uint16) {
	f.Flash.WriteHalfWord(addr, v)
	if f.after--; f.after == 0 {
		f.cancel()
	}
}

func TestCommitCanceledWhileProgramming(t *testing.T) {
	f := newTestFlash(t)
	f.BusyPolls = 2
	s := New(f)
	for i := 0; i < regmap.ConfigCount; i++ {
		require.NoError(t, s.Set(i, uint32(100+i)))
	}
	require.NoError(t, s.Commit(context.Background(), BankConfig))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.flash = &cancelingFlash{Flash: f, after: 20, cancel: cancel}
	for i := 0; i < regmap.ConfigCount; i++ {
		require.NoError(t, s.Set(i, uint32(200+i)))
	}
	require.NoError(t, s.Commit(ctx, BankConfig))
	require.Error(t, ctx.Err())
	require.True(t, f.Locked())

	reloaded := New(f)
	require.Equal(t, SourceConfig, reloaded.Load())
	require.Equal(t, s.Snapshot()[:regmap.ConfigCount], reloaded.Snapshot()[:regmap.ConfigCount])
}

func TestWithBanks(t *testing.T) {
	s := New(newTestFlash(t), WithBanks(1, 2))
	require.EqualValues(t, 1, s.FactoryBase)
	require.EqualValues(t, 2, s.ConfigBase)
	require.Equal(t, "bank(5)", Bank(5).String())
	require.Equal(t, "defaults", SourceDefaults.String())
}
