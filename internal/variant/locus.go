// Package variant implements the polymorphic variant reader (C2): a
// common Locus/Reader surface over VCF text, PLINK BED, and PLINK
// dosage inputs. Grounded on original_source/src/snpreader.h and the
// three concrete *reader.cc files.
package variant

import (
	"strconv"
	"strings"
)

// Locus is one row of a genotype file, in either of two states:
// shallow (metadata only) or deep (Data populated). Re-deep-reading a
// locus without an intervening shallow read is a documented precondition
// violation; readers report it as a "duplicate position" skip rather
// than panicking.
type Locus struct {
	Chr    int
	Pos    int
	ID     string
	Ref    string
	Alt    string // comma-joined
	AltList []string
	InfoStr string
	Info    map[string]string
	Format  string
	MAF     float64
	Flip    bool
	Data    []float64 // per-subject dosage, empty until deep-read
}

// Clear resets the per-match-attempt fields the coordinator mutates
// when a pairing is rejected, mirroring SNPreader::Locus::clear().
func (l *Locus) Clear() {
	l.MAF = 0
	l.Flip = false
	l.AltList = nil
	l.Data = nil
}

// ParseAlt splits Alt on commas into AltList, the way parse_alt() does
// on demand rather than eagerly on every line.
func (l *Locus) ParseAlt() {
	l.AltList = nil
	if l.Alt == "" {
		return
	}
	l.AltList = strings.Split(l.Alt, ",")
}

// ParseInfo lazily parses the VCF INFO column into key/value pairs,
// only invoked when a --weight-by field is requested.
func (l *Locus) ParseInfo() {
	if l.Info != nil {
		return
	}
	l.Info = map[string]string{}
	for _, kv := range strings.Split(l.InfoStr, ";") {
		p := strings.IndexByte(kv, '=')
		if p <= 0 {
			continue
		}
		l.Info[kv[:p]] = kv[p+1:]
	}
}

// SwitchAltRef marks the locus as orientation-flipped and swaps the
// first alt allele with ref, so downstream comparisons see the
// reconciled orientation.
func (l *Locus) SwitchAltRef() {
	l.Flip = true
	if len(l.AltList) > 0 {
		l.AltList[0], l.Ref = l.Ref, l.AltList[0]
	}
}

// FoldMAF applies the universal "always report the minor allele
// frequency" rule every reader performs after deep-read.
func FoldMAF(maf float64) float64 {
	if maf > 0.5 {
		return 1 - maf
	}
	return maf
}

// Key returns the "chr:pos" fallback identifier, the same form the SNP
// include/exclude filter matches when a variant's id is not listed.
func (l *Locus) Key() string {
	return strconv.Itoa(l.Chr) + ":" + strconv.Itoa(l.Pos)
}

// Reader is the common surface all three concrete variant formats
// implement. NextShallow/DeepRead form a small state machine: a
// DeepRead not preceded by a fresh NextShallow must fail rather than
// re-parse stale data.
type Reader interface {
	NextShallow(l *Locus) bool
	DeepRead(l *Locus) bool
	NumSubjects() int
	SubjectID(i int) string
	Close() error
}
