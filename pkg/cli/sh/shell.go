// Package sh provides the interactive register shell for hosts.
package sh

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/nvreg/pkg/device"
	"github.com/robotalks/nvreg/pkg/hal/uart"
	"github.com/robotalks/nvreg/pkg/l0/comm"
	"github.com/robotalks/nvreg/pkg/regmap"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Client *comm.Client
}

const shellKey = "$shell"

var (
	// flags

	evalOnly bool
	portName = "/dev/ttyUSB0"
	baud     = 115200
	timeout  = comm.DefaultTimeout

	// commands
	commands = []*ishell.Cmd{
		&GetCmd,
		&SetCmd,
		&GetFloatCmd,
		&SetFloatCmd,
		&CommitCmd,
		&ClearCmd,
	}
)

func init() {
	if val := os.Getenv("NVREG_PORT"); val != "" {
		portName = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&portName, "port", portName, "Serial port of the device.")
	flag.IntVar(&baud, "baud", baud, "Serial baud rate.")
	flag.DurationVar(&timeout, "timeout", timeout, "Reply timeout.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell over a client.
func New(client *comm.Client) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		Client:      client,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", portName))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Do sends a request and returns the reply.
func (s *Shell) Do(flags, addr byte, payload []byte) (*comm.Packet, error) {
	req, err := comm.NewPacket(flags, addr, payload)
	if err != nil {
		return nil, err
	}
	return s.Client.Do(context.Background(), req)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// ParseAddress parses a register address.
func ParseAddress(str string) (byte, error) {
	v, err := strconv.ParseUint(str, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("Invalid ADDR: %v", err)
	}
	return byte(v), nil
}

// EncodeWords encodes register values big-endian.
func EncodeWords(vals ...uint32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.BigEndian.PutUint32(b[i*4:], v)
	}
	return b
}

// DecodeWords decodes a read reply payload.
func DecodeWords(b []byte) []uint32 {
	vals := make([]uint32, len(b)/4)
	for i := range vals {
		vals[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return vals
}

func printWords(c *ishell.Context, addr byte, b []byte) {
	for i, v := range DecodeWords(b) {
		c.Printf("%3d: 0x%08x\n", int(addr)+i, v)
	}
}

var (
	// GetCmd reads registers.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "ADDR [COUNT]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ADDR required"))
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			var payload []byte
			if len(c.Args) > 1 {
				n, err := strconv.ParseUint(c.Args[1], 0, 8)
				if err != nil {
					c.Err(fmt.Errorf("Invalid COUNT: %v", err))
					return
				}
				payload = []byte{byte(n)}
			}
			reply, err := ShellFrom(c).Do(0, addr, payload)
			if err != nil {
				c.Err(err)
				return
			}
			printWords(c, addr, reply.Payload())
		},
	}

	// SetCmd writes registers.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "ADDR VALUE...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ADDR and VALUE required"))
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			vals := make([]uint32, 0, len(c.Args)-1)
			for _, arg := range c.Args[1:] {
				v, err := strconv.ParseUint(arg, 0, 32)
				if err != nil {
					c.Err(fmt.Errorf("Invalid VALUE: %v", err))
					return
				}
				vals = append(vals, uint32(v))
			}
			if _, err := ShellFrom(c).Do(device.FlagWrite, addr, EncodeWords(vals...)); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// GetFloatCmd reads a register as float.
	GetFloatCmd = ishell.Cmd{
		Name: "getf",
		Help: "ADDR",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ADDR required"))
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			reply, err := ShellFrom(c).Do(0, addr, nil)
			if err != nil {
				c.Err(err)
				return
			}
			for _, v := range DecodeWords(reply.Payload()) {
				c.Printf("%3d: %g\n", addr, math.Float32frombits(v))
			}
		},
	}

	// SetFloatCmd writes a register as float.
	SetFloatCmd = ishell.Cmd{
		Name: "setf",
		Help: "ADDR FLOAT",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ADDR and FLOAT required"))
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			val, err := strconv.ParseFloat(c.Args[1], 32)
			if err != nil {
				c.Err(fmt.Errorf("Invalid FLOAT: %v", err))
				return
			}
			payload := EncodeWords(math.Float32bits(float32(val)))
			if _, err := ShellFrom(c).Do(device.FlagWrite, addr, payload); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// CommitCmd persists the Config region.
	CommitCmd = ishell.Cmd{
		Name: "commit",
		Help: "[factory]",
		Func: func(c *ishell.Context) {
			flags := device.FlagCommit
			if len(c.Args) > 0 {
				if c.Args[0] != "factory" {
					c.Err(fmt.Errorf("unknown bank %q", c.Args[0]))
					return
				}
				flags |= device.FlagFactory
			}
			if _, err := ShellFrom(c).Do(flags, 0, nil); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// ClearCmd zeroes the Data region.
	ClearCmd = ishell.Cmd{
		Name: "clear",
		Help: "",
		Func: func(c *ishell.Context) {
			if _, err := ShellFrom(c).Do(device.FlagClear, regmap.DataStart, nil); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	cfg := uart.DefaultConfig(portName)
	cfg.Baud = baud
	port, err := uart.Open(cfg)
	if err != nil {
		log.Fatalf("open %s failed: %v", portName, err)
	}
	defer port.Close()
	client := comm.NewClient(port)
	client.Timeout = timeout
	New(client).Run(flag.Args()...)
}
