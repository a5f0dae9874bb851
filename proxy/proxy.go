// Package proxy forwards the impersonated library's entry point to the
// genuine system library.
package proxy

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// HRESULT is the status code returned by the forwarded entry point.
type HRESULT int32

// EFail is returned when no real entry point is available to forward to.
const EFail HRESULT = -0x7fffbffb // 0x80004005

const (
	DefaultLibrary = "dinput8.dll"
	DefaultExport  = "DirectInput8Create"
)

// Args are the five DirectInput8Create arguments, passed through as raw
// words.
type Args struct {
	Instance uintptr
	Version  uint32
	IID      uintptr
	Out      uintptr
	Outer    uintptr
}

// Loader is the OS surface needed to resolve the real library.
type Loader interface {
	SystemDirectory() (string, error)
	LoadLibrary(path string) (uintptr, error)
	ProcAddress(module uintptr, name string) (uintptr, error)
}

// CallFunc invokes a foreign function pointer with the platform calling
// convention.
type CallFunc func(fn uintptr, args ...uintptr) uintptr

type Options struct {
	Library string
	Export  string
	// OnResolve runs once, after the first successful resolution.
	OnResolve func()
	Logger    *zap.Logger
}

// Proxy holds the once-resolved real entry point.
type Proxy struct {
	library string
	export  string
	loader  Loader
	call    CallFunc
	log     *zap.Logger
	resolve func() (uintptr, error)
}

func New(loader Loader, call CallFunc, opts Options) *Proxy {
	p := &Proxy{
		library: opts.Library,
		export:  opts.Export,
		loader:  loader,
		call:    call,
		log:     opts.Logger,
	}
	if p.library == "" {
		p.library = DefaultLibrary
	}
	if p.export == "" {
		p.export = DefaultExport
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	onResolve := opts.OnResolve
	p.resolve = sync.OnceValues(func() (uintptr, error) {
		fn, err := p.load()
		if err != nil {
			p.log.Error("resolve real library", zap.String("library", p.library), zap.Error(err))
			return 0, err
		}
		p.log.Info("real library resolved", zap.String("export", p.export), zap.String("fn", fmt.Sprintf("%#x", fn)))
		if onResolve != nil {
			onResolve()
		}
		return fn, nil
	})
	return p
}

func (p *Proxy) load() (uintptr, error) {
	dir, err := p.loader.SystemDirectory()
	if err != nil {
		return 0, fmt.Errorf("proxy: system directory: %w", err)
	}
	dir = strings.TrimRight(dir, `\/`)
	if dir == "" {
		return 0, errors.New("proxy: system directory is empty")
	}
	path := dir + `\` + p.library

	module, err := p.loader.LoadLibrary(path)
	if err != nil {
		return 0, fmt.Errorf("proxy: load %s: %w", path, err)
	}
	fn, err := p.loader.ProcAddress(module, p.export)
	if err != nil {
		return 0, fmt.Errorf("proxy: resolve export %q: %w", p.export, err)
	}
	if fn == 0 {
		return 0, fmt.Errorf("proxy: export %q resolved to nil", p.export)
	}
	return fn, nil
}

// Resolve loads the real library on first use and returns the memoised
// entry point (or error) afterwards.
func (p *Proxy) Resolve() (uintptr, error) {
	return p.resolve()
}

// Forward calls the real entry point with args unchanged.
func (p *Proxy) Forward(args Args) (HRESULT, error) {
	fn, err := p.resolve()
	if err != nil {
		return EFail, err
	}
	r := p.call(fn, args.Instance, uintptr(args.Version), args.IID, args.Out, args.Outer)
	return HRESULT(int32(r)), nil
}
