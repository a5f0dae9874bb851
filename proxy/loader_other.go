//go:build !windows

package proxy

import "errors"

var errUnsupported = errors.New("proxy: the system library is only available on windows")

type SystemLoader struct{}

func (SystemLoader) SystemDirectory() (string, error) {
	return "", errUnsupported
}

func (SystemLoader) LoadLibrary(path string) (uintptr, error) {
	_ = path
	return 0, errUnsupported
}

func (SystemLoader) ProcAddress(module uintptr, name string) (uintptr, error) {
	_, _ = module, name
	return 0, errUnsupported
}

func Syscall(fn uintptr, args ...uintptr) uintptr {
	_, _ = fn, args
	status := EFail
	return uintptr(uint32(status))
}
