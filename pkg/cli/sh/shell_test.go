package sh

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/nvreg/pkg/device"
	fx "github.com/robotalks/nvreg/pkg/framework"
	"github.com/robotalks/nvreg/pkg/hal/sim"
	"github.com/robotalks/nvreg/pkg/l0/comm"
	"github.com/robotalks/nvreg/pkg/nvstore"
)

// loopback runs a simulated device synchronously on every write.
type loopback struct {
	t     *testing.T
	dev   *device.Device
	loop  *fx.Loop
	in    []byte
	out   bytes.Buffer
	flash *sim.Flash
}

func newLoopback(t *testing.T) *loopback {
	flash, err := sim.NewFlash(afero.NewMemMapFs(),
		&sim.Bank{Name: "factory", Base: nvstore.DefaultFactoryBase, Size: nvstore.BankSize},
		&sim.Bank{Name: "config", Base: nvstore.DefaultConfigBase, Size: nvstore.BankSize},
	)
	require.NoError(t, err)
	lb := &loopback{t: t, flash: flash}
	store := nvstore.New(flash)
	store.Load()
	lb.dev = device.New(store, lb, nil)
	lb.dev.Halt = func(err error) { t.Fatalf("halted: %v", err) }
	lb.loop = fx.NewLoop().Add(lb.dev)
	return lb
}

// Poll implements device.Port.
func (lb *loopback) Poll() (byte, bool) {
	if len(lb.in) == 0 {
		return 0, false
	}
	b := lb.in[0]
	lb.in = lb.in[1:]
	return b, true
}

// Send implements device.Port.
func (lb *loopback) Send(b []byte) error {
	lb.out.Write(b)
	return nil
}

// Write implements io.Writer for the client side.
func (lb *loopback) Write(p []byte) (int, error) {
	lb.in = append(lb.in, p...)
	lb.loop.RunOnce(context.Background())
	return len(p), nil
}

// Read implements io.Reader for the client side.
func (lb *loopback) Read(p []byte) (int, error) {
	return lb.out.Read(p)
}

func TestShellDo(t *testing.T) {
	lb := newLoopback(t)
	s := &Shell{Client: comm.NewClient(lb)}

	_, err := s.Do(device.FlagWrite, 3, EncodeWords(1, 2, 3))
	require.NoError(t, err)
	reply, err := s.Do(0, 3, []byte{3})
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2, 3}, DecodeWords(reply.Payload()))

	_, err = s.Do(device.FlagCommit, 0, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, lb.flash.ReadWord(nvstore.DefaultConfigBase+12))

	_, err = s.Do(0, 70, nil)
	require.Equal(t, &comm.CommandError{Code: comm.UnknownAddress}, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x10")
	require.NoError(t, err)
	require.EqualValues(t, 16, addr)
	addr, err = ParseAddress("160")
	require.NoError(t, err)
	require.EqualValues(t, 160, addr)
	_, err = ParseAddress("256")
	require.Error(t, err)
	_, err = ParseAddress("x")
	require.Error(t, err)
}

func TestWords(t *testing.T) {
	b := EncodeWords(0x01020304, 0xffffffff)
	require.Equal(t, []byte{1, 2, 3, 4, 0xff, 0xff, 0xff, 0xff}, b)
	require.Equal(t, []uint32{0x01020304, 0xffffffff}, DecodeWords(b))
	require.Empty(t, DecodeWords([]byte{1, 2}))
}
