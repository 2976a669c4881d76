package sourcemap

import "sort"

// MainBlock identifies the shader source itself in a SegmentMap. Included
// chunks are identified by their chunk key.
const MainBlock = ""

// Segment maps a range of generated text onto a range of one source block.
// An identity segment was copied verbatim, so offsets inside it map one to
// one. Any other segment (a macro expansion) maps every offset inside it to
// the start of its original range.
type Segment struct {
	GenStart  int
	GenEnd    int
	Block     string
	OrigStart int
	OrigEnd   int
	Identity  bool
}

// Location is an offset inside a named source block.
type Location struct {
	Block  string
	Offset int
}

// SegmentMap is an ordered, non-overlapping list of segments covering a
// generated text.
type SegmentMap struct {
	segments []Segment
}

// Copy records that gen[genStart:genStart+n] is block[origStart:origStart+n].
// Adjacent identity runs of the same block are coalesced.
func (m *SegmentMap) Copy(genStart int, block string, origStart, n int) {
	if n <= 0 {
		return
	}
	if k := len(m.segments); k > 0 {
		last := &m.segments[k-1]
		if last.Identity && last.Block == block && last.GenEnd == genStart && last.OrigEnd == origStart {
			last.GenEnd += n
			last.OrigEnd += n
			return
		}
	}
	m.segments = append(m.segments, Segment{
		GenStart: genStart, GenEnd: genStart + n,
		Block: block, OrigStart: origStart, OrigEnd: origStart + n,
		Identity: true,
	})
}

// Replace records that gen[genStart:genEnd] was produced from
// block[origStart:origEnd] by substitution.
func (m *SegmentMap) Replace(genStart, genEnd int, block string, origStart, origEnd int) {
	if genEnd <= genStart {
		return
	}
	m.segments = append(m.segments, Segment{
		GenStart: genStart, GenEnd: genEnd,
		Block: block, OrigStart: origStart, OrigEnd: origEnd,
	})
}

// Splice appends every segment of other shifted by delta generated bytes.
func (m *SegmentMap) Splice(other *SegmentMap, delta int) {
	if other == nil {
		return
	}
	for _, s := range other.segments {
		s.GenStart += delta
		s.GenEnd += delta
		m.segments = append(m.segments, s)
	}
}

// Segments returns the recorded segments in generated order.
func (m *SegmentMap) Segments() []Segment {
	return m.segments
}

// Lookup translates a generated offset to its source block and offset.
// Offsets past the last segment map to the end of the last segment.
func (m *SegmentMap) Lookup(offset int) (Location, bool) {
	if len(m.segments) == 0 {
		return Location{Block: MainBlock, Offset: offset}, false
	}

	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].GenEnd > offset
	})
	if i == len(m.segments) {
		last := m.segments[i-1]
		return Location{Block: last.Block, Offset: last.OrigEnd}, true
	}

	s := m.segments[i]
	if offset < s.GenStart {
		// In a gap, attribute to the start of the next segment.
		return Location{Block: s.Block, Offset: s.OrigStart}, true
	}
	if s.Identity {
		return Location{Block: s.Block, Offset: s.OrigStart + offset - s.GenStart}, true
	}
	return Location{Block: s.Block, Offset: s.OrigStart}, true
}
