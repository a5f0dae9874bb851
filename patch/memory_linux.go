//go:build linux

package patch

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const ExecuteReadWrite Protection = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC

// ProcessMemory accesses the current process with mprotect. The previous
// protection is taken from /proc/self/maps since mprotect does not report
// it.
type ProcessMemory struct{}

func (ProcessMemory) Read(addr Address, n int) ([]byte, error) {
	for off := 0; off < n; {
		m, err := mappingAt(uintptr(addr) + uintptr(off))
		if err != nil {
			return nil, err
		}
		if m.prot&unix.PROT_READ == 0 {
			return nil, fmt.Errorf("patch: %s is not readable", addr)
		}
		off = int(m.end - uintptr(addr))
	}
	out := make([]byte, n)
	copy(out, bytesAt(addr, n))
	return out, nil
}

func (ProcessMemory) Protect(addr Address, size int, prot Protection) (Protection, error) {
	m, err := mappingAt(uintptr(addr))
	if err != nil {
		return 0, err
	}
	pageSize := uintptr(unix.Getpagesize())
	start := pageSize * (uintptr(addr) / pageSize)
	length := pageSize * ((uintptr(addr) + uintptr(size) + pageSize - 1 - start) / pageSize)
	// Only the protection of the mapping at addr is known; the range must
	// stay inside it.
	if start < m.start || start+length > m.end {
		return 0, fmt.Errorf("%w: %s+%d", ErrSpansMappings, addr, size)
	}
	if err := unix.Mprotect(unsafe.Slice((*byte)(unsafe.Add(nil, start)), length), int(prot)); err != nil {
		return 0, fmt.Errorf("patch: mprotect %s: %w", addr, err)
	}
	return m.prot, nil
}

func (ProcessMemory) Write(addr Address, data []byte) error {
	copy(bytesAt(addr, len(data)), data)
	return nil
}

type mapping struct {
	start, end uintptr
	prot       Protection
}

func mappingAt(addr uintptr) (mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return mapping{}, fmt.Errorf("patch: open maps: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m, ok := parseMapping(sc.Text())
		if ok && m.start <= addr && addr < m.end {
			return m, nil
		}
	}
	if err := sc.Err(); err != nil {
		return mapping{}, fmt.Errorf("patch: read maps: %w", err)
	}
	return mapping{}, fmt.Errorf("patch: %#x is not mapped", addr)
}

// parseMapping reads "start-end perms ..." lines.
func parseMapping(line string) (mapping, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return mapping{}, false
	}
	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return mapping{}, false
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return mapping{}, false
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return mapping{}, false
	}
	var prot Protection
	perms := fields[1]
	if len(perms) < 3 {
		return mapping{}, false
	}
	if perms[0] == 'r' {
		prot |= unix.PROT_READ
	}
	if perms[1] == 'w' {
		prot |= unix.PROT_WRITE
	}
	if perms[2] == 'x' {
		prot |= unix.PROT_EXEC
	}
	return mapping{start: uintptr(start), end: uintptr(end), prot: prot}, true
}

func bytesAt(addr Address, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Add(nil, uintptr(addr))), n)
}
