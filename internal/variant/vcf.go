package variant

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/machine2learn/qgs/internal/chrom"
	"github.com/machine2learn/qgs/internal/gzfile"
	"github.com/machine2learn/qgs/internal/qlog"
)

// vcfReader parses VCF 4.x text, preferring the DS (dosage) format
// tag over GT (hard calls) unless --hard-calls forces GT, and
// switching to a per-record "hybrid" parser when the file carries a
// "##source=PLINK" header line, because PLINK's own VCF writer is
// known to produce irregular per-subject fields. Grounded on
// original_source/src/vcfreader.cc.
type vcfReader struct {
	rc            io.ReadCloser
	sc            *bufio.Scanner
	fname         string
	format        string // "GT", "DS", or "PLINK"
	hardCalls     bool
	allowMissings bool
	samples       []string

	pending       bool
	curFormat     string
	subjectFields []string
}

func OpenVCF(path string, hardCalls, allowMissings bool) (*vcfReader, error) {
	rc, err := gzfile.Open(path)
	if err != nil {
		qlog.Fatalf("cannot open input file `%s` for reading: %v", path, err)
	}
	r := &vcfReader{
		rc:            rc,
		fname:         path,
		hardCalls:     hardCalls,
		allowMissings: allowMissings,
	}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	r.sc = sc
	if err := r.parseHeader(); err != nil {
		qlog.Fatalf("%v", err)
	}
	return r, nil
}

func (r *vcfReader) parseHeader() error {
	foundFormatTag := false
	var header []string
	for r.sc.Scan() {
		line := r.sc.Text()
		if strings.HasPrefix(line, "##source=PLINK") {
			qlog.Warningf("file `%s` was created by PLINK; PLINK's VCF output is "+
				"known-irregular, using work-around parser (--hard-calls and "+
				"--allow-missings are ignored for this file)", r.fname)
			r.format = "PLINK"
			continue
		}
		if strings.HasPrefix(line, "##FORMAT=") {
			foundFormatTag = true
			if r.format != "PLINK" && !r.hardCalls && strings.Contains(line, "ID=DS") {
				r.format = "DS"
			} else if r.format == "" && strings.Contains(line, "ID=GT") {
				r.format = "GT"
			}
			continue
		}
		if !strings.HasPrefix(line, "#CHROM") {
			continue
		}
		header = strings.Fields(line)
		break
	}
	if err := r.sc.Err(); err != nil {
		return err
	}
	if len(header) < 10 {
		return fmt.Errorf("no samples found in file `%s`: can't use input file", r.fname)
	}
	r.samples = header[9:]
	qlog.Verbosef("opened file `%s`. read mode: %s. found %d subjects.", r.fname, r.format, len(r.samples))
	if r.format == "" {
		if !foundFormatTag {
			return fmt.Errorf("VCF file `%s` does not contain a FORMAT tag in the header", r.fname)
		}
		return fmt.Errorf("no supported data format found in file `%s`: can't use input file", r.fname)
	}
	return nil
}

func (r *vcfReader) NumSubjects() int        { return len(r.samples) }
func (r *vcfReader) SubjectID(i int) string  { return r.samples[i] }
func (r *vcfReader) Close() error            { return r.rc.Close() }

func (r *vcfReader) NextShallow(l *Locus) bool {
	for r.sc.Scan() {
		line := r.sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		chr, ok := chrom.Parse(fields[0])
		if !ok {
			continue
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		l.Chr = chr
		l.Pos = pos
		l.ID = fields[2]
		l.Ref = strings.ToUpper(fields[3])
		l.Alt = strings.ToUpper(fields[4])
		l.InfoStr = fields[7]
		l.Format = fields[8]
		l.Flip = false
		l.Info = nil
		l.AltList = nil
		l.Data = nil
		if len(fields) > 9 {
			r.subjectFields = fields[9:]
		} else {
			r.subjectFields = nil
		}
		r.pending = true
		return true
	}
	return false
}

func (r *vcfReader) DeepRead(l *Locus) bool {
	if !r.pending {
		qlog.Verbosef("in file `%s` locus %d:%d appears to be duplicated; skipping", r.fname, l.Chr, l.Pos)
		return false
	}
	r.pending = false
	switch r.format {
	case "PLINK":
		return r.readPlinkHybrid(l)
	case "GT":
		return r.readGT(l)
	case "DS":
		return r.readDS(l)
	}
	return false
}

func fieldIndex(format, key string) int {
	for i, p := range strings.Split(format, ":") {
		if p == key {
			return i
		}
	}
	return -1
}

func splitAlleles(gt string) []string {
	return strings.FieldsFunc(gt, func(r rune) bool { return r == '|' || r == '/' })
}

func (r *vcfReader) readGT(l *Locus) bool {
	gtIdx := fieldIndex(l.Format, "GT")
	if gtIdx < 0 {
		return false
	}
	if len(r.subjectFields) != len(r.samples) {
		qlog.Warningf("read %d individuals, expected %d: skipping locus %d:%d", len(r.subjectFields), len(r.samples), l.Chr, l.Pos)
		return false
	}
	data := make([]float64, len(r.samples))
	dsSum := 0.0
	maleHaploid := 0
	for i, tok := range r.subjectFields {
		sub := strings.Split(tok, ":")
		if gtIdx >= len(sub) {
			qlog.Warningf("subject %s has incomplete data for locus %d:%d; skipping", r.samples[i], l.Chr, l.Pos)
			return false
		}
		alleles := splitAlleles(sub[gtIdx])
		if len(alleles) == 1 {
			if l.Chr <= 22 {
				qlog.Warningf("subject %s has incomplete data for locus %d:%d; skipping", r.samples[i], l.Chr, l.Pos)
				return false
			}
			maleHaploid++
		} else if len(alleles) != 2 {
			qlog.Warningf("subject %s has incomplete data for locus %d:%d; skipping", r.samples[i], l.Chr, l.Pos)
			return false
		}
		missing := false
		count := 0.0
		for _, a := range alleles {
			if a == "." {
				missing = true
				continue
			}
			v, err := strconv.Atoi(a)
			if err != nil {
				qlog.Warningf("unexpected character in file `%s`: %q", r.fname, a)
				continue
			}
			if (v == 1 && !l.Flip) || (v == 0 && l.Flip) {
				count++
				dsSum++
			}
		}
		if missing {
			if !r.allowMissings {
				return false
			}
			data[i] = math.NaN()
			continue
		}
		data[i] = count
	}
	denom := float64(len(r.samples))*2 - float64(maleHaploid)
	l.MAF = FoldMAF(dsSum / denom)
	l.Data = data
	return true
}

func (r *vcfReader) readDS(l *Locus) bool {
	dsIdx := fieldIndex(l.Format, "DS")
	if dsIdx < 0 {
		qlog.Warningf("in file %s for %d:%d no DS info found", r.fname, l.Chr, l.Pos)
		return false
	}
	if len(r.subjectFields) != len(r.samples) {
		qlog.Warningf("read %d individuals, expected %d: skipping locus", len(r.subjectFields), len(r.samples))
		return false
	}
	data := make([]float64, len(r.samples))
	sum := 0.0
	for i, tok := range r.subjectFields {
		sub := strings.Split(tok, ":")
		if dsIdx >= len(sub) {
			qlog.Warningf("failed to read locus %d:%d: something is wrong with the VCF file", l.Chr, l.Pos)
			return false
		}
		v, err := strconv.ParseFloat(sub[dsIdx], 64)
		if err != nil {
			qlog.Warningf("failed to read locus %d:%d: something is wrong with the VCF file", l.Chr, l.Pos)
			return false
		}
		if l.Flip {
			v = 2 - v
		}
		data[i] = v
		sum += v
	}
	l.MAF = FoldMAF(sum / (float64(len(r.samples)) * 2))
	l.Data = data
	return true
}

func (r *vcfReader) readPlinkHybrid(l *Locus) bool {
	format := strings.Split(l.Format, ":")
	if len(r.subjectFields) != len(r.samples) {
		qlog.Warningf("read %d individuals, expected %d: skipping locus", len(r.subjectFields), len(r.samples))
		return false
	}
	data := make([]float64, len(r.samples))
	sum := 0.0
	for i, tok := range r.subjectFields {
		parts := strings.Split(tok, ":")
		geno := make(map[string]string, len(parts))
		for j, p := range parts {
			if j < len(format) {
				geno[format[j]] = p
			}
		}
		val, ok := 0.0, false
		if ds, present := geno["DS"]; present {
			if v, err := strconv.ParseFloat(ds, 64); err == nil {
				val, ok = v, true
			} else {
				qlog.Debugf("failed to read locus %d:%d (ds); trying GT", l.Chr, l.Pos)
			}
		}
		if !ok {
			if gt, present := geno["GT"]; present && len(gt) >= 3 {
				g1, g2 := int(gt[0]-'0'), int(gt[2]-'0')
				if g1 >= 0 && g1 <= 1 && g2 >= 0 && g2 <= 1 {
					val, ok = float64(g1+g2), true
				}
			}
		}
		if !ok {
			qlog.Warningf("failed to read locus %d:%d (gt): something is wrong with the VCF file", l.Chr, l.Pos)
			return false
		}
		if l.Flip {
			val = 2 - val
		}
		data[i] = val
		sum += val
	}
	l.MAF = FoldMAF(sum / (float64(len(r.samples)) * 2))
	l.Data = data
	return true
}

var _ Reader = (*vcfReader)(nil)
