package iddb

import (
	"cmp"
	"slices"
)

// OffsetIndex answers offset to id lookups. It owns its entries.
type OffsetIndex struct {
	byOffset []Mapping
}

// NewOffsetIndex sorts table by offset in place and indexes it.
func NewOffsetIndex(table []Mapping) *OffsetIndex {
	slices.SortStableFunc(table, func(a, b Mapping) int { return cmp.Compare(a.Offset, b.Offset) })
	return &OffsetIndex{byOffset: table}
}

// ID returns the id recorded at offset.
func (x *OffsetIndex) ID(offset uint64) (uint64, bool) {
	i, ok := slices.BinarySearchFunc(x.byOffset, offset, func(m Mapping, off uint64) int {
		return cmp.Compare(m.Offset, off)
	})
	if !ok {
		return 0, false
	}
	return x.byOffset[i].ID, true
}

// Len returns the number of entries.
func (x *OffsetIndex) Len() int { return len(x.byOffset) }
