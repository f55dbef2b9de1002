package comm

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// echoDevice replies with a prepared response to each write.
type echoDevice struct {
	requests [][]byte
	reply    []byte
	in       bytes.Buffer
}

func (d *echoDevice) Write(p []byte) (int, error) {
	d.requests = append(d.requests, append([]byte(nil), p...))
	d.in.Write(d.reply)
	return len(p), nil
}

func (d *echoDevice) Read(p []byte) (int, error) {
	return d.in.Read(p)
}

func TestClientDo(t *testing.T) {
	reply, err := NewPacket(0x81, 10, []byte{0, 0, 0, 9})
	require.NoError(t, err)
	dev := &echoDevice{reply: reply.Bytes()}
	c := NewClient(dev)

	req, err := NewPacket(0, 10, nil)
	require.NoError(t, err)
	res, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, reply, res)
	require.Equal(t, [][]byte{req.Bytes()}, dev.requests)
}

func TestClientErrors(t *testing.T) {
	badSum := []byte{0x81, 10, 0, 0, 0}
	testCases := []struct {
		name  string
		reply []byte
		check func(t *testing.T, err error)
	}{
		{"unknown address", ErrorResponse(UnknownAddress), func(t *testing.T, err error) {
			require.Equal(t, &CommandError{Code: UnknownAddress}, err)
		}},
		{"bad checksum", ErrorResponse(BadChecksum), func(t *testing.T, err error) {
			require.Equal(t, &CommandError{Code: BadChecksum}, err)
		}},
		{"corrupted reply", badSum, func(t *testing.T, err error) {
			require.Equal(t, ErrBadReply, err)
		}},
		{"truncated", []byte{0x81, 10}, func(t *testing.T, err error) {
			require.Equal(t, io.ErrUnexpectedEOF, err)
		}},
		{"framing", []byte{0x81, 10, 200}, func(t *testing.T, err error) {
			require.Equal(t, ErrPayloadTooLong, err)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClient(&echoDevice{reply: tc.reply})
			req, err := NewPacket(0, 70, nil)
			require.NoError(t, err)
			_, err = c.Do(context.Background(), req)
			tc.check(t, err)
		})
	}
}

func TestClientCanceled(t *testing.T) {
	c := NewClient(&echoDevice{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := NewPacket(0, 1, nil)
	require.NoError(t, err)
	_, err = c.Do(ctx, req)
	require.Equal(t, context.Canceled, err)
}
