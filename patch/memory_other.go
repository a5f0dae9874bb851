//go:build !windows && !linux

package patch

import "errors"

const ExecuteReadWrite Protection = 0

var errUnsupported = errors.New("patch: process memory is only supported on windows and linux")

type ProcessMemory struct{}

func (ProcessMemory) Read(addr Address, n int) ([]byte, error) {
	return nil, errUnsupported
}

func (ProcessMemory) Protect(addr Address, size int, prot Protection) (Protection, error) {
	return 0, errUnsupported
}

func (ProcessMemory) Write(addr Address, data []byte) error {
	return errUnsupported
}
