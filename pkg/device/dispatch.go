package device

import (
	"context"
	"encoding/binary"

	"github.com/golang/glog"

	"github.com/robotalks/nvreg/pkg/l0/comm"
	"github.com/robotalks/nvreg/pkg/nvstore"
	"github.com/robotalks/nvreg/pkg/regmap"
)

// Request flags.
const (
	// FlagWrite: payload holds big-endian words stored from the address on.
	FlagWrite byte = 0x01
	// FlagCommit: commit the Config region after the request is applied.
	FlagCommit byte = 0x02
	// FlagFactory: commit into the Factory bank instead of the Config bank.
	FlagFactory byte = 0x04
	// FlagClear: zero the Data region before the request is applied.
	FlagClear byte = 0x08
	// FlagReply marks packets sent by the device.
	FlagReply byte = 0x80
)

// MaxBatchWords is the maximum number of registers in one request.
const MaxBatchWords = comm.MaxPayload / 4

// handle applies one staged register access request and stages the reply.
// Requests are validated before any register changes; protocol problems
// are answered with error responses and only storage errors are returned.
func (d *Device) handle(ctx context.Context, rec []byte) error {
	var pkt comm.Packet
	if err := pkt.UnmarshalRecord(rec); err != nil {
		glog.Errorf("corrupted rx record: %v", err)
		return nil
	}

	if regmap.Classify(pkt.Address) == regmap.Command {
		glog.V(2).Infof("command %d acknowledged, flags=0x%02x", pkt.Address, pkt.Flags)
		return d.reply(&pkt, nil)
	}

	count, ok := batchSize(&pkt)
	if !ok {
		d.Router.RaiseError(comm.InvalidBatchSize)
		return nil
	}
	if pkt.Flags&FlagClear != 0 {
		d.Store.ClearData()
	}

	var payload []byte
	var err error
	if pkt.Flags&FlagWrite != 0 {
		err = d.write(&pkt, count)
	} else {
		payload, err = d.read(&pkt, count)
	}
	if err != nil {
		return err
	}

	if pkt.Flags&FlagCommit != 0 {
		target := nvstore.BankConfig
		if pkt.Flags&FlagFactory != 0 {
			target = nvstore.BankFactory
		}
		if err := d.Store.Commit(ctx, target); err != nil {
			return err
		}
	}
	return d.reply(&pkt, payload)
}

// batchSize validates the register range a request accesses and
// returns its word count.
func batchSize(pkt *comm.Packet) (int, bool) {
	count := 1
	if pkt.Flags&FlagWrite != 0 {
		if pkt.Len == 0 || pkt.Len%4 != 0 {
			return 0, false
		}
		count = int(pkt.Len) / 4
	} else {
		switch pkt.Len {
		case 0:
		case 1:
			count = int(pkt.Data[0])
		default:
			return 0, false
		}
	}
	if count < 1 || count > MaxBatchWords {
		return 0, false
	}
	_, ok := regmap.InRegion(pkt.Address, count)
	return count, ok
}

func (d *Device) write(pkt *comm.Packet, count int) error {
	data := pkt.Payload()
	for i := 0; i < count; i++ {
		if err := d.Store.Set(int(pkt.Address)+i, binary.BigEndian.Uint32(data[i*4:])); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) read(pkt *comm.Packet, count int) ([]byte, error) {
	out := make([]byte, count*4)
	for i := 0; i < count; i++ {
		val, err := d.Store.Get(int(pkt.Address) + i)
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint32(out[i*4:], val)
	}
	return out, nil
}

func (d *Device) reply(req *comm.Packet, payload []byte) error {
	resp, err := comm.NewPacket(req.Flags|FlagReply, req.Address, payload)
	if err != nil {
		return err
	}
	d.Router.Reply(resp.Bytes())
	return nil
}
