// Package window implements the score accumulator (C5): an ordered
// mapping keyed by chromosome -> position -> ref-allele holding
// per-variant score vectors and optional weights, with prefix-erase
// support so the coordinator can flush completed genes. Grounded on
// original_source/src/qgs.cc's
// std::map<size_t, std::map<size_t, std::map<string, Scores>>>.
package window

import "sort"

// Entry is one variant's contribution to the window: a per-subject
// score vector (empty until both sides deep-read and score
// successfully), an INFO-derived weight (1 when unweighted), and the
// "sampleID/referenceID" pairing string used for --output-variants.
type Entry struct {
	Scores []float64
	Weight float64
	ID     string
}

// Window is the coordinator's bounded in-memory score accumulator.
type Window struct {
	chrs map[int]map[int]map[string]*Entry
}

func New() *Window {
	return &Window{chrs: map[int]map[int]map[string]*Entry{}}
}

func (w *Window) posMap(chr int) map[int]map[string]*Entry {
	m, ok := w.chrs[chr]
	if !ok {
		m = map[int]map[string]*Entry{}
		w.chrs[chr] = m
	}
	return m
}

// EnsureShallow records a variant as "seen" at (chr, pos, ref) with an
// empty score vector if it isn't already present, the way the
// coordinator does the moment either stream yields a shallow locus.
func (w *Window) EnsureShallow(chr, pos int, ref string) {
	pm := w.posMap(chr)
	refs, ok := pm[pos]
	if !ok {
		refs = map[string]*Entry{}
		pm[pos] = refs
	}
	if _, ok := refs[ref]; !ok {
		refs[ref] = &Entry{Weight: 1}
	}
}

// DropShallow removes an entry, used by allele reconciliation when a
// flip is detected and the stale pre-flip ref key must be discarded so
// the deep result lands under the canonical orientation.
func (w *Window) DropShallow(chr, pos int, ref string) {
	if refs, ok := w.chrs[chr][pos]; ok {
		delete(refs, ref)
	}
}

// SetScores stores the scored vector and pairing id for a
// successfully matched, deep-read, filter-passing variant.
func (w *Window) SetScores(chr, pos int, ref string, scores []float64, id string) {
	w.EnsureShallow(chr, pos, ref)
	e := w.chrs[chr][pos][ref]
	e.Scores = scores
	e.ID = id
}

// SetWeight overwrites the entry's weight (default 1) after a
// successful --weight-by lookup.
func (w *Window) SetWeight(chr, pos int, ref string, weight float64) {
	if e, ok := w.chrs[chr][pos][ref]; ok {
		for i := range e.Scores {
			e.Scores[i] *= weight
		}
		e.Weight = weight
	}
}

// PrefixErase drops every position-keyed entry on chr strictly before
// start, the way the coordinator advances past a gene's start once
// it's done flushing.
func (w *Window) PrefixErase(chr, start int) {
	pm, ok := w.chrs[chr]
	if !ok {
		return
	}
	for pos := range pm {
		if pos < start {
			delete(pm, pos)
		}
	}
}

// VariantEntry is one (pos, ref) pairing returned by Range, in
// position order, for gene aggregation.
type VariantEntry struct {
	Pos   int
	Ref   string
	Entry *Entry
}

// Range returns every entry on chr with start <= pos <= stop, ordered
// by position then ref-allele, for deterministic gene emission.
func (w *Window) Range(chr, start, stop int) []VariantEntry {
	pm, ok := w.chrs[chr]
	if !ok {
		return nil
	}
	var positions []int
	for pos := range pm {
		if pos >= start && pos <= stop {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	var out []VariantEntry
	for _, pos := range positions {
		refs := make([]string, 0, len(pm[pos]))
		for ref := range pm[pos] {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		for _, ref := range refs {
			out = append(out, VariantEntry{Pos: pos, Ref: ref, Entry: pm[pos][ref]})
		}
	}
	return out
}

// NumLociInMemory reports the total number of distinct (pos, ref)
// entries currently held across all chromosomes, for trace logging.
func (w *Window) NumLociInMemory() int {
	n := 0
	for _, pm := range w.chrs {
		for _, refs := range pm {
			n += len(refs)
		}
	}
	return n
}
