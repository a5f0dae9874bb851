// Package practiceloader runs inside the host process: it forwards the
// impersonated DirectInput entry point, patches the host image and brings
// up the overlay once activation is allowed.
package practiceloader

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/practicetool/practiceloader/config"
	"github.com/practicetool/practiceloader/gate"
	"github.com/practicetool/practiceloader/offsets"
	"github.com/practicetool/practiceloader/overlay"
	"github.com/practicetool/practiceloader/patch"
	"github.com/practicetool/practiceloader/proxy"
	"github.com/practicetool/practiceloader/startup"
)

// ProcessAttach is DLL_PROCESS_ATTACH.
const ProcessAttach uint32 = 1

// Host describes the process the loader lives in.
type Host interface {
	ImageBase() (patch.Base, error)
	ModulePath(module uintptr) (string, error)
	Version() (offsets.Version, error)
}

// Deps are the platform collaborators of a Runtime.
type Deps struct {
	Loader  proxy.Loader
	Call    proxy.CallFunc
	Memory  patch.Memory
	RWX     patch.Protection
	Key     gate.Key
	Clock   gate.Clock
	Host    Host
	Overlay overlay.Installer
	Logger  *zap.Logger
}

type hostImage struct {
	base    patch.Base
	version offsets.Version
	offsets offsets.Offsets
}

// Runtime is the process-wide loader state.
type Runtime struct {
	cfg       config.Config
	deps      Deps
	log       *zap.Logger
	table     offsets.Table
	proxy     *proxy.Proxy
	patcher   *patch.Patcher
	sequencer *startup.Sequencer
	image     func() (hostImage, error)

	attached atomic.Bool
	ejected  atomic.Bool
	tasks    sync.WaitGroup
}

func New(cfg config.Config, deps Deps) *Runtime {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runtime{
		cfg:   cfg,
		deps:  deps,
		log:   log,
		table: offsets.Default(),
	}
	if cfg.Offsets.File != "" {
		path := cfg.Resolve(cfg.Offsets.File)
		extra, err := offsets.LoadFile(path)
		if err != nil {
			log.Warn("ignoring offsets file", zap.String("path", path), zap.Error(err))
		} else {
			r.table = r.table.Merge(extra)
		}
	}

	r.image = sync.OnceValues(r.resolveImage)
	r.patcher = patch.New(deps.Memory, deps.RWX, log.Named("patch"))
	r.proxy = proxy.New(deps.Loader, deps.Call, proxy.Options{
		Library: cfg.Proxy.Library,
		Export:  cfg.Proxy.Export,
		// The splash screen runs before the gate can finish, so this patch
		// is tied to the host's first use of the proxy.
		OnResolve: func() { r.applySite(patch.NoLogo) },
		Logger:    log.Named("proxy"),
	})
	r.sequencer = startup.New(deps.Overlay, startup.Options{
		Patch:  func() bool { return r.applySite(patch.FontPatch) },
		Eject:  r.eject,
		Logger: log.Named("startup"),
	})
	return r
}

func (r *Runtime) resolveImage() (hostImage, error) {
	base, err := r.deps.Host.ImageBase()
	if err != nil {
		return hostImage{}, fmt.Errorf("practiceloader: host image base: %w", err)
	}
	version, err := r.deps.Host.Version()
	if err != nil {
		return hostImage{}, fmt.Errorf("practiceloader: host version: %w", err)
	}
	offs, err := r.table.Lookup(version)
	if err != nil {
		return hostImage{base: base, version: version}, err
	}
	r.log.Info("host image", zap.Stringer("version", version), zap.String("base", fmt.Sprintf("%#x", uintptr(base))))
	return hostImage{base: base, version: version, offsets: offs}, nil
}

func (r *Runtime) applySite(site patch.Site) bool {
	img, err := r.image()
	if err != nil {
		r.log.Warn("patch skipped", zap.String("site", site.Name), zap.Error(err))
		return false
	}
	if !img.offsets.Verified {
		r.log.Warn("patch skipped", zap.String("site", site.Name), zap.Stringer("version", img.version),
			zap.String("reason", "unverified offsets"))
		return false
	}
	off, ok := img.offsets.Site(site.Name)
	if !ok {
		r.log.Warn("patch skipped", zap.String("site", site.Name), zap.String("reason", "no offset"))
		return false
	}
	return r.patcher.Apply(img.base, off, site)
}

// DirectInput8Create forwards to the real library. Status codes pass
// through untouched; E_FAIL is returned only when the real library could
// not be resolved.
func (r *Runtime) DirectInput8Create(args proxy.Args) proxy.HRESULT {
	hr, _ := r.proxy.Forward(args)
	return hr
}

// DllMain handles a loader notification. Only the first process attach is
// acted upon; it returns without waiting for the gate or startup.
func (r *Runtime) DllMain(module uintptr, reason uint32) {
	if reason != ProcessAttach {
		return
	}
	if !r.attached.CompareAndSwap(false, true) {
		r.log.Warn("duplicate process attach ignored")
		return
	}
	if _, err := r.proxy.Resolve(); err != nil {
		r.eject(fmt.Errorf("practiceloader: %w", err))
		return
	}
	r.tasks.Add(1)
	go r.run(module)
}

func (r *Runtime) run(module uintptr) {
	defer r.tasks.Done()
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("startup task panicked", zap.Any("panic", v), zap.Stack("stack"))
		}
	}()

	identity := Direct
	path, err := r.deps.Host.ModulePath(module)
	if err != nil {
		r.log.Warn("module path unavailable", zap.Error(err))
	} else {
		identity = IdentityFromPath(path, r.cfg.Proxy.Library)
	}
	r.log.Info("attached", zap.Stringer("identity", identity), zap.String("path", path))

	if identity == Impersonated {
		g := gate.New(r.deps.Key, gate.Options{
			Window:   r.cfg.Gate.Window,
			Hold:     r.cfg.Gate.Hold,
			Interval: r.cfg.Gate.Interval,
			Clock:    r.deps.Clock,
			Logger:   r.log.Named("gate"),
		})
		if !g.Wait() {
			return
		}
	}
	r.start(module)
}

func (r *Runtime) start(module uintptr) {
	state := overlay.State{Module: module, ConfigPath: r.cfg.Path}
	// Version is zero only when the host version could not be read.
	img, err := r.image()
	state.Version = img.version
	if err != nil {
		r.log.Warn("host image unresolved", zap.Stringer("version", img.version), zap.Error(err))
	}
	_ = r.sequencer.Start(state)
}

// eject leaves the loader inert. A Go image cannot be unloaded from the
// host, so forwarding keeps working and nothing else runs.
func (r *Runtime) eject(err error) {
	if !r.ejected.CompareAndSwap(false, true) {
		return
	}
	r.log.Error("ejecting", zap.Error(err))
	if r.deps.Overlay != nil {
		if cerr := r.deps.Overlay.Close(); cerr != nil {
			r.log.Warn("release overlay", zap.Error(cerr))
		}
	}
	_ = r.log.Sync()
}

// Ejected reports whether an unrecoverable failure detached the loader.
func (r *Runtime) Ejected() bool {
	return r.ejected.Load()
}

// Wait blocks until the background startup task, if any, has finished.
func (r *Runtime) Wait() {
	r.tasks.Wait()
}
