package module

// SegmentName indexes the segments recorded for a module.
type SegmentName int

const (
	Textx SegmentName = iota // executable .text
	Idata
	Rdata
	Data
	Pdata
	Tls
	Textw // writable .text
	Gfids

	// SegmentCount is the number of recorded segments.
	SegmentCount
)

var segmentNames = [SegmentCount]string{
	Textx: "textx",
	Idata: "idata",
	Rdata: "rdata",
	Data:  "data",
	Pdata: "pdata",
	Tls:   "tls",
	Textw: "textw",
	Gfids: "gfids",
}

func (n SegmentName) String() string {
	if n < 0 || n >= SegmentCount {
		return "unknown"
	}
	return segmentNames[n]
}

// SegmentNames lists every segment in index order.
func SegmentNames() []SegmentName {
	out := make([]SegmentName, SegmentCount)
	for i := range out {
		out[i] = SegmentName(i)
	}
	return out
}

// Segment is a section of the loaded image. The zero value means the
// section was not present.
type Segment struct {
	ProxyBase uintptr
	Address   uintptr
	Size      uint32
}

// Offset returns the segment's distance from the module base.
func (s Segment) Offset() uintptr { return s.Address - s.ProxyBase }

// Present reports whether the section was found.
func (s Segment) Present() bool { return s.Address != 0 || s.Size != 0 }
