// Package regmap defines the register address space and its regions.
package regmap

import "fmt"

// Region address layout. All values are register addresses (word indexes).
const (
	ConfigStart = 0
	ConfigCount = 64

	DataStart = 80
	DataCount = 60

	CommandStart = 160
	CommandCount = 12

	// RegisterCount is the number of slots in the register file.
	// It covers the Command region so every classified address has a slot.
	RegisterCount = CommandStart + CommandCount
)

// Region identifies a partition of the register address space.
type Region int

// Regions in classification order.
const (
	Unknown Region = iota
	Config
	Data
	Command
)

var regionNames = [...]string{
	Unknown: "unknown",
	Config:  "config",
	Data:    "data",
	Command: "command",
}

// String implements fmt.Stringer.
func (r Region) String() string {
	if r < 0 || int(r) >= len(regionNames) {
		return fmt.Sprintf("region(%d)", int(r))
	}
	return regionNames[r]
}

// Persisted indicates the region is mirrored to flash.
func (r Region) Persisted() bool {
	return r == Config
}

// Bounds returns the first address and the number of registers in the region.
// Unknown has no bounds.
func (r Region) Bounds() (start, count int) {
	switch r {
	case Config:
		return ConfigStart, ConfigCount
	case Data:
		return DataStart, DataCount
	case Command:
		return CommandStart, CommandCount
	}
	return 0, 0
}

// Contains checks if addr falls inside the region.
func (r Region) Contains(addr int) bool {
	start, count := r.Bounds()
	return count > 0 && addr >= start && addr < start+count
}

// Classify maps an address to its region.
// Addresses in the gaps between regions are Unknown.
func Classify(addr byte) Region {
	a := int(addr)
	switch {
	case a >= ConfigStart && a < ConfigStart+ConfigCount:
		return Config
	case a >= DataStart && a < DataStart+DataCount:
		return Data
	case a >= CommandStart && a < CommandStart+CommandCount:
		return Command
	}
	return Unknown
}

// InRegion checks count consecutive registers starting at addr all belong to
// the same known region, and returns that region.
func InRegion(addr byte, count int) (Region, bool) {
	r := Classify(addr)
	if r == Unknown || count <= 0 {
		return r, false
	}
	return r, r.Contains(int(addr) + count - 1)
}
