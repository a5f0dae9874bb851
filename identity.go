package practiceloader

import "strings"

// Identity is how the loader was brought into the process.
type Identity int

const (
	// Direct is an explicit load under any other file name, e.g. by an
	// injector.
	Direct Identity = iota
	// Impersonated is a load under the system library's file name by the
	// host's own import resolution.
	Impersonated
)

func (i Identity) String() string {
	if i == Impersonated {
		return "impersonated"
	}
	return "direct"
}

// IdentityFromPath compares the file name of path with library, ignoring
// case. Both separators are accepted so the result does not depend on the
// build platform.
func IdentityFromPath(path, library string) Identity {
	name := path[strings.LastIndexAny(path, `\/`)+1:]
	if name != "" && strings.EqualFold(name, library) {
		return Impersonated
	}
	return Direct
}
