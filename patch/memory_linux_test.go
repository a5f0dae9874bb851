//go:build linux

package patch

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// mapCode returns an anonymous read+exec page that starts with code.
func mapCode(t *testing.T, code []byte) []byte {
	t.Helper()

	page, err := unix.Mmap(-1, 0, unix.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Munmap(page)
	})
	copy(page, code)
	require.NoError(t, unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC))
	return page
}

func TestProcessMemoryPatchRestoresProtection(t *testing.T) {
	page := mapCode(t, []byte{0xCC, 0x74, 0x30, 0xCC})
	base := Base(uintptr(unsafe.Pointer(&page[0])))

	before, err := mappingAt(uintptr(base))
	require.NoError(t, err)
	require.Equal(t, Protection(unix.PROT_READ|unix.PROT_EXEC), before.prot)

	p := New(ProcessMemory{}, ExecuteReadWrite, nil)
	require.True(t, p.Apply(base, 1, NoLogo))
	require.Equal(t, []byte{0xCC, 0x75, 0x30, 0xCC}, page[:4])

	after, err := mappingAt(uintptr(base))
	require.NoError(t, err)
	require.Equal(t, before.prot, after.prot)

	require.False(t, p.Apply(base, 1, NoLogo))
	require.Equal(t, []byte{0xCC, 0x75, 0x30, 0xCC}, page[:4])
}

func TestProcessMemoryMismatchIsNoop(t *testing.T) {
	page := mapCode(t, []byte{0x55, 0x48, 0x89, 0xE5})
	base := Base(uintptr(unsafe.Pointer(&page[0])))

	p := New(ProcessMemory{}, ExecuteReadWrite, nil)
	require.False(t, p.Apply(base, 0x24, FontPatch))
	require.Equal(t, []byte{0x55, 0x48, 0x89, 0xE5}, page[:4])

	require.True(t, p.Apply(base, 0x25, FontPatch))
	require.Equal(t, []byte{0x55, 0xC3, 0x89, 0xE5}, page[:4])
}

func TestProcessMemoryRejectsRangeAcrossMappings(t *testing.T) {
	pageSize := unix.Getpagesize()
	pages, err := unix.Mmap(-1, 0, 2*pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Munmap(pages)
	})
	pages[pageSize-1] = 0x74
	pages[pageSize] = 0x30
	require.NoError(t, unix.Mprotect(pages[:pageSize], unix.PROT_READ|unix.PROT_EXEC))
	require.NoError(t, unix.Mprotect(pages[pageSize:], unix.PROT_READ))

	first := uintptr(unsafe.Pointer(&pages[0]))
	second := uintptr(unsafe.Pointer(&pages[pageSize]))
	straddle := Address(second - 1)

	_, err = ProcessMemory{}.Protect(straddle, 2, ExecuteReadWrite)
	require.ErrorIs(t, err, ErrSpansMappings)

	p := New(ProcessMemory{}, ExecuteReadWrite, nil)
	require.False(t, p.Apply(Base(straddle), 0, NoLogo))

	m, err := mappingAt(first)
	require.NoError(t, err)
	require.Equal(t, Protection(unix.PROT_READ|unix.PROT_EXEC), m.prot)
	m, err = mappingAt(second)
	require.NoError(t, err)
	require.Equal(t, Protection(unix.PROT_READ), m.prot)
	require.Equal(t, []byte{0x74, 0x30}, pages[pageSize-1:pageSize+1])
}

func TestParseMapping(t *testing.T) {
	m, ok := parseMapping("7f1c2a5d1000-7f1c2a5f3000 r-xp 00000000 08:01 1234 /usr/lib/libc.so.6")
	require.True(t, ok)
	require.Equal(t, uintptr(0x7f1c2a5d1000), m.start)
	require.Equal(t, uintptr(0x7f1c2a5f3000), m.end)
	require.Equal(t, Protection(unix.PROT_READ|unix.PROT_EXEC), m.prot)

	_, ok = parseMapping("garbage")
	require.False(t, ok)
}
