// Package geneio streams gene/region records (C1) from a GTF-like gene
// database: 9 tab/space-separated fields followed by free-form
// "key value" attribute pairs, values optionally "..."-quoted with a
// trailing semicolon. Grounded on original_source/src/genblock.h.
package geneio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/machine2learn/qgs/internal/chrom"
)

// Region is one gene/feature block: a chromosome, a 1-based inclusive
// [Start, Stop] interval, a strand, and a free-form attribute map.
type Region struct {
	Chr       int
	Start     int
	Stop      int
	Strand    byte // '+', '-', or '?'
	Source    string
	Type      string
	Score     byte
	Phase     byte
	Attr      map[string]string
}

// GeneName returns attr["gene_name"], defaulting to "chr:start-stop".
func (r *Region) GeneName() string {
	if v, ok := r.Attr["gene_name"]; ok {
		return v
	}
	return r.defaultName()
}

// GeneID returns attr["gene_id"], defaulting to "chr:start-stop".
func (r *Region) GeneID() string {
	if v, ok := r.Attr["gene_id"]; ok {
		return v
	}
	return r.defaultName()
}

func (r *Region) defaultName() string {
	return strconv.Itoa(r.Chr) + ":" + strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.Stop)
}

// Reader streams Region values from a gene database, skipping comment
// lines ("##...") and malformed lines. Malformed lines are skipped
// silently: neither the reader nor its caller logs a warning for them.
type Reader struct {
	scanner  *bufio.Scanner
	lastChr  int
	lastStrt int
	haveLast bool
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: sc}
}

// Next reads the next non-comment, parseable Region. It returns
// (nil, nil) at EOF. A non-nil error is fatal: the gene stream is
// required to be monotonic non-decreasing in (chr, start); violating
// that order aborts the run rather than silently producing wrong
// flushes downstream (resolves the ambiguity noted in spec §9).
func (r *Reader) Next() (*Region, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		region, ok := parseLine(line)
		if !ok {
			continue // malformed gene line: skipped without a warning
		}
		if r.haveLast && (region.Chr < r.lastChr || (region.Chr == r.lastChr && region.Start < r.lastStrt)) {
			return nil, fmt.Errorf("gene file is not sorted: %s:%d-%d follows %d:%d", region.GeneID(), region.Start, region.Stop, r.lastChr, r.lastStrt)
		}
		r.lastChr, r.lastStrt, r.haveLast = region.Chr, region.Start, true
		return region, nil
	}
	return nil, r.scanner.Err()
}

func parseLine(line string) (*Region, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, false
	}
	chr, ok := chrom.Parse(fields[0])
	if !ok {
		return nil, false
	}
	start, err1 := strconv.Atoi(fields[3])
	stop, err2 := strconv.Atoi(fields[4])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	r := &Region{
		Chr:    chr,
		Source: fields[1],
		Type:   fields[2],
		Start:  start,
		Stop:   stop,
		Attr:   map[string]string{},
	}
	if len(fields[5]) > 0 {
		r.Score = fields[5][0]
	} else {
		r.Score = '?'
	}
	if len(fields[6]) > 0 {
		r.Strand = fields[6][0]
	} else {
		r.Strand = '?'
	}
	if len(fields[7]) > 0 {
		r.Phase = fields[7][0]
	} else {
		r.Phase = '?'
	}

	r.Attr["chr"] = fields[0]
	r.Attr["source"] = r.Source
	r.Attr["type"] = r.Type

	rest := fields[8:]
	for i := 0; i+1 < len(rest); i += 2 {
		key, val := rest[i], rest[i+1]
		if len(val) > 3 && val[0] == '"' && val[len(val)-2] == '"' && val[len(val)-1] == ';' {
			val = val[1 : len(val)-2]
		}
		r.Attr[key] = val
	}

	return r, true
}
