//go:build !windows

package offsets

import "errors"

func FileVersion(path string) (Version, error) {
	_ = path
	return Version{}, errors.New("offsets: file version resources are only readable on windows")
}
