// Package startup runs the one-shot activation sequence: the entry
// short-circuit patch followed by overlay hook installation.
package startup

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/practicetool/practiceloader/overlay"
)

type Options struct {
	// Patch applies the font patch and reports whether it was written.
	Patch func() bool
	// Eject detaches the loader after an unrecoverable failure.
	Eject  func(err error)
	Logger *zap.Logger
}

// Sequencer is invoked from a single call site and does not guard against
// re-entry.
type Sequencer struct {
	installer overlay.Installer
	patch     func() bool
	eject     func(error)
	log       *zap.Logger
}

func New(installer overlay.Installer, opts Options) *Sequencer {
	s := &Sequencer{
		installer: installer,
		patch:     opts.Patch,
		eject:     opts.Eject,
		log:       opts.Logger,
	}
	if s.patch == nil {
		s.patch = func() bool { return false }
	}
	if s.eject == nil {
		s.eject = func(error) {}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Start patches and installs the hook. A failed installation is logged,
// ejects the loader and is returned; it is never retried.
func (s *Sequencer) Start(state overlay.State) error {
	applied := s.patch()
	s.log.Info("starting", zap.Bool("font_patch", applied), zap.Stringer("version", state.Version))

	if err := s.installer.Install(state); err != nil {
		err = fmt.Errorf("startup: install hooks: %w", err)
		s.log.Error("couldn't apply hooks", zap.Error(err))
		s.eject(err)
		return err
	}
	return nil
}
