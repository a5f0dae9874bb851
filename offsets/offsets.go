// Package offsets maps host executable versions to the RVAs of the patch
// sites.
package offsets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/practicetool/practiceloader/patch"
)

// ErrUnknownVersion is returned by Lookup for versions missing from the
// table.
var ErrUnknownVersion = errors.New("offsets: unknown host version")

//go:embed offsets.yaml
var embedded []byte

// Version is the host executable's file version.
type Version struct {
	Major, Minor, Patch uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// ParseVersion accepts "major.minor.patch"; missing trailing components
// are zero.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Version{}, fmt.Errorf("offsets: invalid version %q", s)
	}
	var nums [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Version{}, fmt.Errorf("offsets: invalid version %q: %w", s, err)
		}
		nums[i] = uint16(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Offsets holds the named RVAs for one host version. Only verified entries
// are ever written to a live host.
type Offsets struct {
	NoLogo    patch.Offset `yaml:"no_logo"`
	FontPatch patch.Offset `yaml:"font_patch"`
	Verified  bool         `yaml:"verified"`
}

// Site returns the offset a patch site is anchored to.
func (o Offsets) Site(name string) (patch.Offset, bool) {
	switch name {
	case patch.NoLogo.Name:
		return o.NoLogo, o.NoLogo != 0
	case patch.FontPatch.Name:
		return o.FontPatch, o.FontPatch != 0
	}
	return 0, false
}

type Table map[Version]Offsets

type tableFile struct {
	Versions map[string]entry `yaml:"versions"`
}

// entry is an Offsets as written in YAML, where verified defaults to true.
type entry struct {
	NoLogo    patch.Offset `yaml:"no_logo"`
	FontPatch patch.Offset `yaml:"font_patch"`
	Verified  *bool        `yaml:"verified"`
}

// Parse decodes a YAML table. Entries are verified unless they say
// otherwise.
func Parse(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("offsets: decode table: %w", err)
	}
	t := make(Table, len(f.Versions))
	for k, e := range f.Versions {
		v, err := ParseVersion(k)
		if err != nil {
			return nil, err
		}
		t[v] = Offsets{
			NoLogo:    e.NoLogo,
			FontPatch: e.FontPatch,
			Verified:  e.Verified == nil || *e.Verified,
		}
	}
	return t, nil
}

// LoadFile reads a YAML table from disk.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("offsets: read table: %w", err)
	}
	return Parse(data)
}

// Default returns the table shipped with the module. Its entries have not
// been checked against released host binaries and are marked unverified;
// they are a starting point for `practiceloader inspect`.
func Default() Table {
	t, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return t
}

// Merge returns a new table with other's entries taking precedence.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t)+len(other))
	for v, o := range t {
		out[v] = o
	}
	for v, o := range other {
		out[v] = o
	}
	return out
}

func (t Table) Lookup(v Version) (Offsets, error) {
	o, ok := t[v]
	if !ok {
		return Offsets{}, fmt.Errorf("%w %s", ErrUnknownVersion, v)
	}
	return o, nil
}

// Versions lists the table's versions in ascending order.
func (t Table) Versions() []Version {
	out := make([]Version, 0, len(t))
	for v := range t {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
