package sim

import (
	"sync"

	"github.com/golang/glog"
)

// Pin is a simulated output which logs transitions.
type Pin struct {
	Name string

	high    bool
	toggles int
	lock    sync.Mutex
}

// Set implements hal.Pin.
func (p *Pin) Set(high bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.high != high {
		p.toggles++
		if glog.V(3) {
			glog.Infof("pin %s: %v", p.Name, high)
		}
	}
	p.high = high
}

// Get implements hal.Pin.
func (p *Pin) Get() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.high
}

// Toggles returns the number of level changes.
func (p *Pin) Toggles() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.toggles
}
