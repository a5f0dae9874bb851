//go:build windows

package proxy

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// SystemLoader resolves libraries through the Windows loader.
type SystemLoader struct{}

func (SystemLoader) SystemDirectory() (string, error) {
	return windows.GetSystemDirectory()
}

func (SystemLoader) LoadLibrary(path string) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	return uintptr(h), err
}

func (SystemLoader) ProcAddress(module uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(module), name)
}

// Syscall calls fn with the native calling convention; the last-error value
// is not part of the DirectInput contract and is dropped.
func Syscall(fn uintptr, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(fn, args...)
	return r
}
