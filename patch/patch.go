// Package patch applies precondition-checked byte patches to executable
// memory of the current process.
package patch

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrSizeMismatch is returned by Site.Validate when the expected and
// replacement patterns differ in length.
var ErrSizeMismatch = errors.New("patch: expected and replacement lengths differ")

// ErrSpansMappings is returned by Memory.Protect for ranges that cross a
// region boundary, since only one previous protection can be restored.
var ErrSpansMappings = errors.New("patch: range spans several mappings")

// Base is the load address of a module image.
type Base uintptr

// Offset is relative to a Base.
type Offset uintptr

// Address is an absolute location in the process address space.
type Address uintptr

// At computes base+offset+adjust. The adjustment is signed.
func (b Base) At(offset Offset, adjust int) Address {
	addr := uintptr(b) + uintptr(offset)
	if adjust < 0 {
		addr -= uintptr(-adjust)
	} else {
		addr += uintptr(adjust)
	}
	return Address(addr)
}

func (a Address) String() string {
	return fmt.Sprintf("%#x", uintptr(a))
}

// Protection is a platform page protection value (PAGE_* on windows,
// PROT_* on unix).
type Protection uint32

// Memory is the raw access the Patcher needs. Read must not change page
// protection.
type Memory interface {
	Read(addr Address, n int) ([]byte, error)
	Protect(addr Address, size int, prot Protection) (Protection, error)
	Write(addr Address, data []byte) error
}

// Site describes one patch location relative to a named offset.
type Site struct {
	Name        string
	Adjust      int
	Expected    []byte
	Replacement []byte
}

func (s Site) Validate() error {
	if len(s.Expected) == 0 {
		return fmt.Errorf("patch: site %q has empty pattern", s.Name)
	}
	if len(s.Expected) != len(s.Replacement) {
		return fmt.Errorf("patch: site %q: %w", s.Name, ErrSizeMismatch)
	}
	return nil
}

// Target is the absolute address the site patches for the given base and
// offset.
func (s Site) Target(base Base, offset Offset) Address {
	return base.At(offset, s.Adjust)
}

// Patcher is the only code in this module that writes to foreign code.
type Patcher struct {
	mem Memory
	rwx Protection
	log *zap.Logger
}

// New returns a Patcher over mem. rwx is the protection set for the
// duration of the write.
func New(mem Memory, rwx Protection, log *zap.Logger) *Patcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Patcher{mem: mem, rwx: rwx, log: log}
}

// Apply overwrites the site's bytes if, and only if, the bytes currently at
// the target equal site.Expected. A mismatch is a normal outcome (another
// host version, already patched, patched by someone else) and reports
// false without touching memory.
func (p *Patcher) Apply(base Base, offset Offset, site Site) bool {
	if err := site.Validate(); err != nil {
		p.log.Warn("invalid patch site", zap.Error(err))
		return false
	}
	target := site.Target(base, offset)
	log := p.log.With(zap.String("site", site.Name), zap.Stringer("addr", target))

	current, err := p.mem.Read(target, len(site.Expected))
	if err != nil {
		log.Debug("patch site unreadable", zap.Error(err))
		return false
	}
	if !bytes.Equal(current, site.Expected) {
		log.Debug("patch site does not match", zap.Binary("found", current))
		return false
	}

	old, err := p.mem.Protect(target, len(site.Replacement), p.rwx)
	if err != nil {
		log.Warn("unprotect patch site", zap.Error(err))
		return false
	}
	werr := p.mem.Write(target, site.Replacement)
	if _, err := p.mem.Protect(target, len(site.Replacement), old); err != nil {
		log.Warn("restore patch site protection", zap.Error(err))
	}
	if werr != nil {
		log.Warn("write patch site", zap.Error(werr))
		return false
	}
	log.Info("patch applied")
	return true
}
