// Package inspect reports the state of each patch site in a host executable
// on disk.
package inspect

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Binject/debug/pe"
	"golang.org/x/arch/x86/x86asm"

	"github.com/practicetool/practiceloader/offsets"
	"github.com/practicetool/practiceloader/patch"
)

// window is how many bytes are read per site for disassembly.
const window = 16

type Status int

const (
	// Pending sites still hold the original bytes.
	Pending Status = iota
	// Applied sites already hold the replacement bytes.
	Applied
	// Mismatch sites hold neither; usually a wrong offset table entry.
	Mismatch
	// Unmapped sites fall outside every section.
	Unmapped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Mismatch:
		return "mismatch"
	case Unmapped:
		return "unmapped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Finding struct {
	Site        patch.Site
	RVA         uint32
	Section     string
	FileOffset  uint32
	Bytes       []byte
	Status      Status
	Instruction string
}

// Classify compares code at a site with its patterns.
func Classify(code []byte, site patch.Site) Status {
	n := len(site.Expected)
	if len(code) < n {
		return Mismatch
	}
	switch {
	case bytes.Equal(code[:n], site.Expected):
		return Pending
	case bytes.Equal(code[:n], site.Replacement):
		return Applied
	}
	return Mismatch
}

// Decode disassembles the first instruction of code as 64-bit x86 in Intel
// syntax. pc is the instruction's RVA, used for relative targets.
func Decode(code []byte, pc uint64) (x86asm.Inst, string, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return x86asm.Inst{}, "", fmt.Errorf("inspect: decode at %#x: %w", pc, err)
	}
	return inst, x86asm.IntelSyntax(inst, pc, nil), nil
}

type section struct {
	name        string
	virtualAddr uint32
	virtualSize uint32
	rawOffset   uint32
	rawSize     uint32
	data        func() ([]byte, error)
}

// locate finds the section holding rva and the file offset of rva.
func locate(sections []section, rva uint32) (section, uint32, bool) {
	for _, s := range sections {
		size := s.virtualSize
		if s.rawSize > size {
			size = s.rawSize
		}
		if rva >= s.virtualAddr && rva-s.virtualAddr < size {
			return s, s.rawOffset + (rva - s.virtualAddr), true
		}
	}
	return section{}, 0, false
}

// File inspects every patch site of the executable at path against offs.
func File(path string, offs offsets.Offsets) ([]Finding, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inspect: open %s: %w", path, err)
	}
	defer f.Close()

	sections := make([]section, 0, len(f.Sections))
	for _, s := range f.Sections {
		s := s
		sections = append(sections, section{
			name:        s.Name,
			virtualAddr: s.VirtualAddress,
			virtualSize: s.VirtualSize,
			rawOffset:   s.Offset,
			rawSize:     s.Size,
			data:        s.Data,
		})
	}
	return sites(sections, offs)
}

func sites(sections []section, offs offsets.Offsets) ([]Finding, error) {
	var findings []Finding
	for _, site := range patch.Sites() {
		off, ok := offs.Site(site.Name)
		if !ok {
			return nil, fmt.Errorf("inspect: no offset for site %q", site.Name)
		}
		rva := uint32(patch.Base(0).At(off, site.Adjust))
		finding := Finding{Site: site, RVA: rva, Status: Unmapped}

		sec, fileOff, ok := locate(sections, rva)
		if !ok {
			findings = append(findings, finding)
			continue
		}
		data, err := sec.data()
		if err != nil {
			return nil, fmt.Errorf("inspect: read section %s: %w", sec.name, err)
		}
		start := int(rva - sec.virtualAddr)
		if start >= len(data) {
			// Inside the virtual size but past the raw data: zero filled.
			finding.Section = sec.name
			finding.Status = Mismatch
			findings = append(findings, finding)
			continue
		}
		end := start + window
		if end > len(data) {
			end = len(data)
		}
		finding.Section = sec.name
		finding.FileOffset = fileOff
		finding.Bytes = append([]byte(nil), data[start:end]...)
		finding.Status = Classify(finding.Bytes, site)
		if _, text, err := Decode(finding.Bytes, uint64(rva)); err == nil {
			finding.Instruction = text
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

var errNoSites = errors.New("inspect: no sites")

// Summary reduces findings to a single status: Pending only if every site
// is pending, Applied only if every site is applied.
func Summary(findings []Finding) (Status, error) {
	if len(findings) == 0 {
		return Mismatch, errNoSites
	}
	first := findings[0].Status
	for _, f := range findings[1:] {
		if f.Status != first {
			return Mismatch, nil
		}
	}
	return first, nil
}
