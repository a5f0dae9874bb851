//go:build !windows

package overlay

import "go.uber.org/zap"

type Library struct {
	path string
}

func NewLibrary(path, export string, log *zap.Logger) *Library {
	_, _ = export, log
	return &Library{path: path}
}

func (l *Library) Install(state State) error {
	_ = state
	return ErrUnsupported
}

func (l *Library) Close() error { return nil }
