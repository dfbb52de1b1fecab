package rig

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Write is one register write observed by a MemoryPort.
type Write struct {
	Reg   int
	Value byte
}

// MemoryPort keeps registers in memory. It backs dry runs and tests.
type MemoryPort struct {
	mu     sync.Mutex
	regs   []byte
	log    []Write
	keep   int
	FailOn func(reg int) error // optional fault injection
}

// NewMemoryPort creates a port with n registers that remembers the last
// keep writes (0 keeps none).
func NewMemoryPort(n, keep int) *MemoryPort {
	return &MemoryPort{regs: make([]byte, n), keep: keep}
}

func (p *MemoryPort) WriteRegister(reg int, value byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailOn != nil {
		if err := p.FailOn(reg); err != nil {
			return err
		}
	}
	if reg < 0 || reg >= len(p.regs) {
		return fmt.Errorf("register %d outside [0,%d)", reg, len(p.regs))
	}
	p.regs[reg] = value
	if p.keep > 0 {
		p.log = append(p.log, Write{reg, value})
		if len(p.log) > p.keep {
			p.log = p.log[len(p.log)-p.keep:]
		}
	}
	return nil
}

// Register returns the current value of reg.
func (p *MemoryPort) Register(reg int) byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[reg]
}

// Writes returns the retained write history, oldest first.
func (p *MemoryPort) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Write, len(p.log))
	copy(out, p.log)
	return out
}

// DeviceNames are the digital I/O nodes of the PCI-DDA02/16 driver, in
// register order.
var DeviceNames = []string{"dio0_0A", "dio0_0B", "dio0_0C", "dio0_1A", "dio0_1B", "dio0_1C"}

// DevicePort writes registers to the DIO device nodes, one byte per write.
type DevicePort struct {
	fds []int
}

// OpenDevicePort opens every DIO node under dir for writing.
func OpenDevicePort(dir string) (*DevicePort, error) {
	p := &DevicePort{}
	for _, name := range DeviceNames {
		path := filepath.Join(dir, name)
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		p.fds = append(p.fds, fd)
	}
	return p, nil
}

func (p *DevicePort) WriteRegister(reg int, value byte) error {
	if reg < 0 || reg >= len(p.fds) {
		return fmt.Errorf("register %d outside [0,%d)", reg, len(p.fds))
	}
	n, err := unix.Write(p.fds[reg], []byte{value})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("short write on register %d", reg)
	}
	return nil
}

// Close releases every device node.
func (p *DevicePort) Close() error {
	var first error
	for _, fd := range p.fds {
		if err := unix.Close(fd); err != nil && first == nil {
			first = err
		}
	}
	p.fds = nil
	return first
}
