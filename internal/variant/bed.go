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

var bedMagic = [3]byte{0x6c, 0x1b, 0x01}

// bedReader parses PLINK's binary variant-major .bed format together
// with its sibling .bim (variant list) and .fam (subject list) files.
// Grounded on original_source/src/plinkbedreader.cc.
type bedReader struct {
	bedrc io.ReadCloser
	bed   *bufio.Reader
	bimrc io.ReadCloser
	bim   *bufio.Scanner
	famrc io.ReadCloser

	fname          string
	allowMissings  bool
	samples        []string
	bytesPerLocus  int
	numPosRead     int
}

func OpenBED(path string, allowMissings bool) (*bedReader, error) {
	bedrc, err := gzfile.Open(path)
	if err != nil {
		qlog.Fatalf("cannot open input file `%s` for reading: %v", path, err)
	}

	bimPath := gzfile.FindSibling(path, "bim")
	if bimPath == "" {
		qlog.Fatalf("cannot find bim file of `%s`", path)
	}
	bimrc, err := gzfile.Open(bimPath)
	if err != nil {
		qlog.Fatalf("cannot find bim file of `%s`: %v", path, err)
	}

	famPath := gzfile.FindSibling(path, "fam")
	if famPath == "" {
		qlog.Fatalf("cannot find fam file of `%s`", path)
	}
	famrc, err := gzfile.Open(famPath)
	if err != nil {
		qlog.Fatalf("cannot find fam file of `%s`: %v", path, err)
	}

	r := &bedReader{
		bedrc:         bedrc,
		bed:           bufio.NewReaderSize(bedrc, 1<<20),
		bimrc:         bimrc,
		bim:           bufio.NewScanner(bimrc),
		famrc:         famrc,
		fname:         path,
		allowMissings: allowMissings,
	}

	var magic [3]byte
	if _, err := io.ReadFull(r.bed, magic[:]); err != nil || magic != bedMagic {
		qlog.Fatalf("input file `%s` not recognised as PLINK BED format, or in id-major format", path)
	}

	if err := r.readFam(); err != nil {
		qlog.Fatalf("unable to parse fam file for `%s`: %v", path, err)
	}

	r.bytesPerLocus = len(r.samples) / 4
	if len(r.samples)%4 != 0 {
		r.bytesPerLocus++
	}
	qlog.Verbosef("opened file `%s`. read mode: plink bed. found %d subjects.", path, len(r.samples))
	return r, nil
}

func (r *bedReader) readFam() error {
	sc := bufio.NewScanner(r.famrc)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			return fmt.Errorf("cannot parse %q as subject", sc.Text())
		}
		r.samples = append(r.samples, fields[0]+"_"+fields[1])
	}
	return sc.Err()
}

func (r *bedReader) NumSubjects() int       { return len(r.samples) }
func (r *bedReader) SubjectID(i int) string { return r.samples[i] }

func (r *bedReader) Close() error {
	r.bedrc.Close()
	r.bimrc.Close()
	return r.famrc.Close()
}

func (r *bedReader) NextShallow(l *Locus) bool {
	for r.bim.Scan() {
		line := r.bim.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		chr, ok := chrom.Parse(fields[0])
		if !ok {
			continue
		}
		pos, err := strconv.Atoi(fields[3])
		if err != nil {
			continue
		}
		r.numPosRead++
		l.Chr = chr
		l.ID = fields[1]
		l.Pos = pos
		l.Ref = fields[4]
		l.Alt = fields[5]
		l.Flip = false
		l.AltList = nil
		l.Info = nil
		l.Data = nil
		return true
	}
	return false
}

func (r *bedReader) DeepRead(l *Locus) bool {
	if r.numPosRead == 0 {
		qlog.Verbosef("duplicate position %d:%d in file `%s`: ignoring all but first", l.Chr, l.Pos, r.fname)
		return false
	}
	if r.numPosRead > 1 {
		if _, err := io.CopyN(io.Discard, r.bed, int64(r.bytesPerLocus)*int64(r.numPosRead-1)); err != nil {
			qlog.Warningf("plink bed read error: %v", err)
			r.numPosRead = 0
			return false
		}
	}
	r.numPosRead = 0

	buf := make([]byte, r.bytesPerLocus)
	n, err := io.ReadFull(r.bed, buf)
	if err != nil || n != r.bytesPerLocus {
		qlog.Warningf("plink bed read error: %v", err)
		return false
	}

	homRef, homAlt := 0.0, 2.0
	if l.Flip {
		homRef, homAlt = 2.0, 0.0
	}
	dosages := [4]float64{homRef, math.NaN(), 1, homAlt}

	data := make([]float64, len(r.samples))
	sampleIdx := 0
	total := 0.0
	for _, b := range buf {
		for offset := 0; offset != 4; offset++ {
			val := (b >> (offset * 2)) & 0x03
			d := dosages[val]
			if val == 0x01 {
				if !r.allowMissings {
					return false
				}
				data[sampleIdx] = math.NaN()
			} else {
				data[sampleIdx] = d
				total += d
			}
			sampleIdx++
			if sampleIdx == len(r.samples) {
				break
			}
		}
		if sampleIdx == len(r.samples) {
			break
		}
	}

	l.MAF = FoldMAF(total / (float64(len(r.samples)) * 2))
	l.Data = data
	return true
}

var _ Reader = (*bedReader)(nil)
