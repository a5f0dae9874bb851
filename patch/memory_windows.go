//go:build windows

package patch

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ExecuteReadWrite is the protection held while a site is written.
const ExecuteReadWrite Protection = windows.PAGE_EXECUTE_READWRITE

// ProcessMemory accesses the current process through VirtualQuery and
// VirtualProtect.
type ProcessMemory struct{}

func (ProcessMemory) Read(addr Address, n int) ([]byte, error) {
	if err := readable(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, bytesAt(addr, n))
	return out, nil
}

func (ProcessMemory) Protect(addr Address, size int, prot Protection) (Protection, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return 0, fmt.Errorf("patch: VirtualQuery %s: %w", addr, err)
	}
	// VirtualProtect reports the old protection of the first page only.
	if uintptr(addr)+uintptr(size) > mbi.BaseAddress+mbi.RegionSize {
		return 0, fmt.Errorf("%w: %s+%d", ErrSpansMappings, addr, size)
	}
	var old uint32
	if err := windows.VirtualProtect(uintptr(addr), uintptr(size), uint32(prot), &old); err != nil {
		return 0, fmt.Errorf("patch: VirtualProtect %s: %w", addr, err)
	}
	return Protection(old), nil
}

func (ProcessMemory) Write(addr Address, data []byte) error {
	copy(bytesAt(addr, len(data)), data)
	return nil
}

// readable refuses ranges that are not committed or are guard/no-access
// pages; dereferencing them would fault inside the host.
func readable(addr Address, n int) error {
	for cur, end := uintptr(addr), uintptr(addr)+uintptr(n); cur < end; {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(cur, &mbi, unsafe.Sizeof(mbi)); err != nil {
			return fmt.Errorf("patch: VirtualQuery %#x: %w", cur, err)
		}
		if mbi.State != windows.MEM_COMMIT {
			return fmt.Errorf("patch: %#x is not committed", cur)
		}
		if mbi.Protect&(windows.PAGE_NOACCESS|windows.PAGE_GUARD) != 0 || mbi.Protect == 0 {
			return fmt.Errorf("patch: %#x is not readable (protect %#x)", cur, mbi.Protect)
		}
		cur = mbi.BaseAddress + mbi.RegionSize
	}
	return nil
}

func bytesAt(addr Address, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Add(nil, uintptr(addr))), n)
}
