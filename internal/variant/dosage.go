package variant

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/machine2learn/qgs/internal/gzfile"
	"github.com/machine2learn/qgs/internal/qlog"
)

// dosageReader parses PLINK dosage files (optionally several,
// concatenated in natural-sort order) with a sibling .map file per
// file. The encoding (direct dosage vs. 1/2/3-value genotype
// probabilities) is inferred from the first data line's maximum
// value. Grounded on original_source/src/plinkdosagereader.cc.
type dosageReader struct {
	fnames  []string
	filenr  int
	fname   string
	rc      io.ReadCloser
	dosage  *bufio.Scanner
	maprc   io.ReadCloser
	mapfile *bufio.Scanner

	samples   []string
	lineNr    int
	max       float64
	maxKnown  bool

	// current dosage-file line, split lazily
	curFields []string
	pending   bool
}

func OpenDosage(paths []string) (*dosageReader, error) {
	sorted := append([]string(nil), paths...)
	naturalSort(sorted)
	r := &dosageReader{fnames: sorted, filenr: -1, max: -1}
	if !r.openNext() {
		qlog.Fatalf("cannot open input files: empty list")
	}
	return r, nil
}

func (r *dosageReader) openNext() bool {
	r.filenr++
	if r.filenr >= len(r.fnames) {
		return false
	}
	r.lineNr = 0
	r.fname = r.fnames[r.filenr]

	rc, err := gzfile.Open(r.fname)
	if err != nil {
		qlog.Fatalf("cannot open input file `%s` for reading: %v", r.fname, err)
	}
	r.rc = rc
	r.dosage = bufio.NewScanner(rc)
	r.dosage.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	mapPath := gzfile.FindSibling(r.fname, "map")
	if mapPath == "" {
		qlog.Fatalf("cannot find map file of `%s`", r.fname)
	}
	maprc, err := gzfile.Open(mapPath)
	if err != nil {
		qlog.Fatalf("cannot find map file of `%s`: %v", r.fname, err)
	}
	r.maprc = maprc
	r.mapfile = bufio.NewScanner(maprc)
	r.mapfile.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !r.parseHeader() {
		qlog.Warningf("input file `%s` does not have proper header: skipping file", r.fname)
		return r.openNext()
	}
	return true
}

func (r *dosageReader) parseHeader() bool {
	if !r.dosage.Scan() {
		return false
	}
	fields := strings.Fields(r.dosage.Text())
	if len(fields) < 3 || fields[0] != "SNP" || fields[1] != "A1" || fields[2] != "A2" {
		return false
	}
	var sample []string
	rest := fields[3:]
	for i := 0; i+1 < len(rest); i += 2 {
		sample = append(sample, rest[i]+"_"+rest[i+1])
	}
	if r.samples == nil {
		if len(sample) == 0 {
			qlog.Fatalf("file `%s` does not have any samples", r.fname)
		}
		r.samples = sample
	} else if !sameSamples(sample, r.samples) {
		qlog.Fatalf("file `%s` has different subjects than previous file: can't proceed", r.fname)
	}
	qlog.Verbosef("opened file `%s`. read mode: plink dosage. found %d subjects.", r.fname, len(r.samples))
	return true
}

func sameSamples(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *dosageReader) NumSubjects() int       { return len(r.samples) }
func (r *dosageReader) SubjectID(i int) string { return r.samples[i] }

func (r *dosageReader) Close() error {
	r.rc.Close()
	return r.maprc.Close()
}

func (r *dosageReader) NextShallow(l *Locus) bool {
	r.lineNr++
	for {
		if !r.mapfile.Scan() {
			if err := r.mapfile.Err(); err != nil {
				qlog.Warningf("cannot read line from map file: %v", err)
				return false
			}
			if r.openNext() {
				continue
			}
			return false
		}
		break
	}
	fields := strings.Fields(r.mapfile.Text())
	if len(fields) < 4 {
		qlog.Warningf("can't parse line from map file `%s`", r.fname)
		return false
	}
	chr, err1 := strconv.Atoi(fields[0])
	pos, err2 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil {
		qlog.Warningf("can't parse line from map file `%s`", r.fname)
		return false
	}

	prevChr, prevPos := l.Chr, l.Pos
	if prevChr > chr || (prevChr == chr && prevPos > pos) {
		qlog.Fatalf("file `%s` line %d has wrong locus order", r.fname, r.lineNr)
	}

	l.Chr = chr
	l.ID = fields[1]
	l.Pos = pos
	l.Flip = false
	l.AltList = nil
	l.Info = nil
	l.Data = nil

	if !r.dosage.Scan() {
		qlog.Warningf("can't read line from dosage file `%s`", r.fname)
		return false
	}
	fields = strings.Fields(r.dosage.Text())
	if len(fields) < 3 {
		qlog.Warningf("can't parse line from dosage file `%s`", r.fname)
		return false
	}
	id, ref, alt := fields[0], fields[1], fields[2]
	if id != l.ID {
		qlog.Warningf("dosage and map file out of sync on map line %d: read snps %s (dosage) and %s (map)", r.lineNr, id, l.ID)
		l.Chr, l.Pos = 0, 0
		return false
	}
	l.Ref, l.Alt = ref, alt
	r.curFields = fields[3:]
	r.pending = true
	return true
}

func (r *dosageReader) DeepRead(l *Locus) bool {
	if !r.pending {
		qlog.Verbosef("duplicate position %d:%d in file `%s`: ignoring all but first", l.Chr, l.Pos, r.fname)
		return false
	}
	r.pending = false
	data := make([]float64, 0, len(r.curFields))
	max := 0.0
	for _, tok := range r.curFields {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return false
		}
		if f > max {
			max = f
		}
		data = append(data, f)
	}

	if !r.maxKnown {
		r.max = max
		r.maxKnown = true
		qlog.Tracef("first dosage line contains max dosage of %v: assuming a 0-%d dosage scale", r.max, map[bool]int{true: 2, false: 0}[r.max > 1])
	}
	if r.max <= 1 && max > 1 {
		qlog.Fatalf("reading locus %s we discovered our initial guess of 0-1 dosages was incorrect; rerun with dosage specified", l.ID)
	}

	n := len(data)
	switch {
	case n == len(r.samples):
		if r.max <= 1 {
			for i := range data {
				data[i] *= 2
			}
		}
		if l.Flip {
			for i := range data {
				data[i] = 2 - data[i]
			}
		}
		l.Data = data
		l.MAF = FoldMAF(sumFloats(data) / (float64(len(r.samples)) * 2))
		return true

	case n == len(r.samples)*2:
		if r.max > 1 {
			qlog.Fatalf("dosage file `%s` contains probabilities but has value %v > 1 on line %d", r.fname, r.max, r.lineNr)
		}
		out := make([]float64, 0, len(r.samples))
		for i := 0; i < n; i += 2 {
			a1, a2 := data[i], data[i+1]
			a3 := 1 - (a1 + a2)
			if a3 < 0 {
				qlog.Fatalf("dosage file `%s` contains probabilities %v + %v > 1 on line %d", r.fname, a1, a2, r.lineNr)
			}
			if l.Flip {
				a1, a3 = a3, a1
			}
			val := a2 + 2*a3
			if val < 0 || val > 2 {
				qlog.Fatalf("dosage file `%s` contains probabilities %v + %v > 1 on line %d", r.fname, a1, a2, r.lineNr)
			}
			out = append(out, val)
		}
		l.Data = out
		l.MAF = FoldMAF(sumFloats(out) / (float64(len(r.samples)) * 2))
		return true

	case n == len(r.samples)*3:
		out := make([]float64, 0, len(r.samples))
		for i := 0; i < n; i += 3 {
			a1, a2, a3 := data[i], data[i+1], data[i+2]
			if l.Flip {
				a1, a3 = a3, a1
			}
			val := a2 + 2*a3
			if val < 0 || val > 2 {
				qlog.Fatalf("dosage file `%s` contains probabilities %v, %v, %v on line %d", r.fname, a1, a2, a3, r.lineNr)
			}
			out = append(out, val)
		}
		l.Data = out
		l.MAF = FoldMAF(sumFloats(out) / (float64(len(r.samples)) * 2))
		return true
	}
	return false
}

func sumFloats(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func naturalSort(ss []string) {
	sort.Slice(ss, func(i, j int) bool { return naturalLess(ss[i], ss[j]) })
}

// naturalLess compares strings the way PLINK dosage file chunks are
// expected to be concatenated: numeric runs compare by value, not
// lexicographically, so "file2" sorts before "file10".
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			starti, startj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[starti:i], "0")
			nb := strings.TrimLeft(b[startj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

var _ Reader = (*dosageReader)(nil)
