//go:build windows

package offsets

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// FileVersion reads the fixed file version resource of an executable.
func FileVersion(path string) (Version, error) {
	size, err := windows.GetFileVersionInfoSize(path, nil)
	if err != nil {
		return Version{}, fmt.Errorf("offsets: version info size of %s: %w", path, err)
	}
	buf := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafe.Pointer(&buf[0])); err != nil {
		return Version{}, fmt.Errorf("offsets: version info of %s: %w", path, err)
	}

	var (
		info *windows.VS_FIXEDFILEINFO
		n    uint32
	)
	if err := windows.VerQueryValue(unsafe.Pointer(&buf[0]), `\`, unsafe.Pointer(&info), &n); err != nil {
		return Version{}, fmt.Errorf("offsets: query fixed file info of %s: %w", path, err)
	}
	if info == nil || n < uint32(unsafe.Sizeof(*info)) {
		return Version{}, fmt.Errorf("offsets: %s has no fixed file info", path)
	}
	return Version{
		Major: uint16(info.FileVersionMS >> 16),
		Minor: uint16(info.FileVersionMS),
		Patch: uint16(info.FileVersionLS >> 16),
	}, nil
}
