// Package overlay is the boundary to the rendering hook subsystem.
package overlay

import (
	"errors"

	"github.com/practicetool/practiceloader/offsets"
)

var ErrUnsupported = errors.New("overlay: hook installation is only supported on windows")

const (
	DefaultLibrary = "practiceloader-overlay.dll"
	DefaultExport  = "InstallHooks"
)

// State is handed to the hook subsystem on installation. The subsystem owns
// it from then on.
type State struct {
	Module     uintptr
	Version    offsets.Version
	ConfigPath string
}

// Installer installs the rendering hook. Close releases whatever Install
// acquired and is safe to call when Install never ran.
type Installer interface {
	Install(state State) error
	Close() error
}
