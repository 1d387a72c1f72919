// Package filter implements the predicate pipeline (C8): gene
// attribute filtering, chromosome restriction, a variant
// include/exclude set, and the MAF floor.
package filter

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/machine2learn/qgs/internal/geneio"
)

// GeneAttrs is an AND-composed set of key=value constraints on a
// gene's attribute map; all must match for the gene to pass.
type GeneAttrs map[string]string

// Pass reports whether region satisfies every key=value constraint.
func (f GeneAttrs) Pass(r *geneio.Region) bool {
	for k, v := range f {
		if r.Attr[k] != v {
			return false
		}
	}
	return true
}

// Chromosome restricts the gene and variant streams to a single
// chromosome. Zero means "no restriction".
type Chromosome struct {
	Target int
}

// SkipGene reports whether a gene with this chr should be skipped
// because it lies before the target chromosome.
func (c Chromosome) SkipGene(chr int) bool {
	return c.Target != 0 && c.Target > chr
}

// StopGene reports whether the gene stream should terminate because
// we've moved past the target chromosome.
func (c Chromosome) StopGene(chr int) bool {
	return c.Target != 0 && c.Target < chr
}

// SNPSet backs the variant include/exclude filter: a mapping of
// id-or-"chr:pos" to inclusion. Include-mode skips non-members;
// exclude-mode skips members. Include wins if both files are given
// (mirrors the CLI contract in spec §6).
type SNPSet struct {
	members map[string]bool
	include bool
}

// LoadSNPSet reads a whitespace-separated list of ids from r.
func LoadSNPSet(r io.Reader, include bool) (*SNPSet, error) {
	set := &SNPSet{members: map[string]bool{}, include: include}
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		set.members[sc.Text()] = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Empty reports whether no include/exclude filter is configured.
func (s *SNPSet) Empty() bool {
	return s == nil
}

// Skip reports whether a variant identified by id (or "chr:pos"
// fallback) should be skipped under this filter.
func (s *SNPSet) Skip(id string, chr, pos int) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[id]
	if !ok {
		_, ok = s.members[strconv.Itoa(chr)+":"+strconv.Itoa(pos)]
	}
	if s.include {
		return !ok
	}
	return ok
}

// MAFFloor is the shared minor-allele-frequency threshold both sides
// of a locus pair must clear after flip-normalisation.
type MAFFloor struct {
	Limit float64
}

func (m MAFFloor) Pass(maf float64) bool {
	return maf >= m.Limit
}

// ParseGTFFilter turns CLI "key=value" pairs into a GeneAttrs set.
func ParseGTFFilter(pairs []string) GeneAttrs {
	f := GeneAttrs{}
	for _, p := range pairs {
		if i := strings.IndexByte(p, '='); i >= 0 {
			f[p[:i]] = p[i+1:]
		}
	}
	return f
}
