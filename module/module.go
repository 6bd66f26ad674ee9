// Package module resolves the host executable loaded in the current process:
// its base address, named segments, product version and runtime flavor.
package module

import "github.com/joshuapare/addrkit/version"

// Module describes a resolved host executable.
type Module struct {
	Name     string
	FilePath string
	Base     uintptr
	Version  version.Version
	Runtime  version.Runtime
	// SegmentErr holds the header error that prevented segment loading, if any.
	SegmentErr error

	segments [SegmentCount]Segment
}

// Segment returns the named segment, or the zero Segment if it was not found.
func (m Module) Segment(name SegmentName) Segment {
	if name < 0 || name >= SegmentCount {
		return Segment{}
	}
	return m.segments[name]
}

// Segments returns all segments in SegmentName order.
func (m Module) Segments() [SegmentCount]Segment { return m.segments }
