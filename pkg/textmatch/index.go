package textmatch

import (
	"fmt"
	"strings"
)

// Node is one text-bearing node of a page text layer, in document order.
type Node struct {
	ID   string
	Text string
}

// Span is a [Start,End) byte range inside the page concatenation.
type Span struct {
	Start int
	End   int
}

// Index holds the raw and normalized concatenations of a page's text nodes,
// built once per re-anchoring pass. The normalized form has every whitespace
// run collapsed to a single space; normToRaw maps each normalized byte back
// to the raw byte it came from (a collapsed space maps to the first byte of
// the run, which makes the reverse mapping approximate by design).
type Index struct {
	Raw        string
	Normalized string

	nodes     []Node
	rawSpans  []Span
	normToRaw []int
}

// NewIndex concatenates the given nodes and precomputes the offset mapping.
func NewIndex(nodes []Node) *Index {
	ix := &Index{nodes: nodes}

	var raw strings.Builder
	for _, n := range nodes {
		start := raw.Len()
		raw.WriteString(n.Text)
		ix.rawSpans = append(ix.rawSpans, Span{Start: start, End: raw.Len()})
	}
	ix.Raw = raw.String()

	var norm strings.Builder
	inRun := false
	for pos, r := range ix.Raw {
		if isSpace(r) {
			if !inRun && norm.Len() > 0 {
				norm.WriteByte(' ')
				ix.normToRaw = append(ix.normToRaw, pos)
			}
			inRun = true
			continue
		}
		inRun = false
		n := norm.Len()
		norm.WriteRune(r)
		for i := 0; i < norm.Len()-n; i++ {
			ix.normToRaw = append(ix.normToRaw, pos+i)
		}
	}
	ix.Normalized = norm.String()
	return ix
}

// Match locates a note's stored text inside an indexed page.
type Match struct {
	// Exact is false when only the degraded significant-word search hit.
	Exact bool
	// Text is the normalized string that was actually found.
	Text string
	// Start and End are byte offsets into Index.Normalized.
	Start int
	End   int
	// Node-level coordinates of the raw span, for decoration placement.
	StartNode   int
	StartOffset int
	EndNode     int
	EndOffset   int
	// RawStart and RawEnd bound the matched span in Index.Raw.
	RawStart int
	RawEnd   int
}

// Search looks for the note's selected text in the page. The exact normalized
// substring is tried first; failing that, the first three significant words.
// ok is false when neither form is present, which is not an error: the note
// simply stays unanchored for this pass.
func (ix *Index) Search(selectedText string) (*Match, bool) {
	query := Normalize(selectedText)
	if query == "" {
		return nil, false
	}

	start := strings.Index(ix.Normalized, query)
	exact := true
	if start < 0 {
		query = significantPrefix(query)
		if query == "" {
			return nil, false
		}
		start = strings.Index(ix.Normalized, query)
		exact = false
	}
	if start < 0 {
		return nil, false
	}

	m := &Match{
		Exact: exact,
		Text:  query,
		Start: start,
		End:   start + len(query),
	}
	if err := ix.resolve(m); err != nil {
		return nil, false
	}
	return m, true
}

// resolve maps normalized match offsets back to raw node coordinates.
func (ix *Index) resolve(m *Match) error {
	if m.Start >= len(ix.normToRaw) || m.End > len(ix.normToRaw) || m.End <= m.Start {
		return fmt.Errorf("match [%d,%d) outside normalized text of %d bytes", m.Start, m.End, len(ix.normToRaw))
	}
	m.RawStart = ix.normToRaw[m.Start]
	m.RawEnd = ix.normToRaw[m.End-1] + 1

	startNode, ok := ix.nodeAt(m.RawStart)
	if !ok {
		return fmt.Errorf("raw offset %d outside every node span", m.RawStart)
	}
	endNode, ok := ix.nodeAt(m.RawEnd - 1)
	if !ok {
		return fmt.Errorf("raw offset %d outside every node span", m.RawEnd-1)
	}

	m.StartNode = startNode
	m.StartOffset = m.RawStart - ix.rawSpans[startNode].Start
	m.EndNode = endNode
	m.EndOffset = m.RawEnd - ix.rawSpans[endNode].Start
	return nil
}

// RawSlice returns the raw page text covered by the match.
func (ix *Index) RawSlice(m *Match) string {
	return ix.Raw[m.RawStart:m.RawEnd]
}

func (ix *Index) nodeAt(rawOffset int) (int, bool) {
	for i, sp := range ix.rawSpans {
		if rawOffset >= sp.Start && rawOffset < sp.End {
			return i, true
		}
	}
	return 0, false
}
