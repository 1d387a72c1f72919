package coordinator

import (
	"math"
	"strings"
	"testing"

	"github.com/machine2learn/qgs/internal/filter"
	"github.com/machine2learn/qgs/internal/geneio"
	"github.com/machine2learn/qgs/internal/variant"
)

// fakeRecord is one variant a fakeReader will yield: shallow metadata
// plus the deep-read payload released on the following DeepRead call.
type fakeRecord struct {
	Chr, Pos int
	ID, Ref, Alt string
	MAF      float64
	InfoStr  string
	Data     []float64
}

// fakeReader is a minimal variant.Reader test double driven entirely by
// a canned record list, modelling the shallow/deep state machine real
// readers implement (a DeepRead not preceded by a fresh NextShallow
// fails, same as the "duplicate position" contract in vcf.go/bed.go).
type fakeReader struct {
	records  []fakeRecord
	pos      int
	curIdx   int
	subjects []string
}

func newFakeReader(subjects []string, records ...fakeRecord) *fakeReader {
	return &fakeReader{records: records, curIdx: -1, subjects: subjects}
}

func (f *fakeReader) NextShallow(l *variant.Locus) bool {
	if f.pos >= len(f.records) {
		return false
	}
	r := f.records[f.pos]
	l.Chr, l.Pos, l.ID, l.Ref, l.Alt = r.Chr, r.Pos, r.ID, r.Ref, r.Alt
	l.InfoStr = r.InfoStr
	l.Info = nil
	l.Flip = false
	l.Data = nil
	l.MAF = 0
	l.ParseAlt()
	f.curIdx = f.pos
	f.pos++
	return true
}

func (f *fakeReader) DeepRead(l *variant.Locus) bool {
	if f.curIdx < 0 {
		return false
	}
	r := f.records[f.curIdx]
	f.curIdx = -1
	l.MAF = r.MAF
	l.Data = append([]float64(nil), r.Data...)
	return true
}

func (f *fakeReader) NumSubjects() int        { return len(f.subjects) }
func (f *fakeReader) SubjectID(i int) string  { return f.subjects[i] }
func (f *fakeReader) Close() error            { return nil }

type recordingEmitter struct {
	results []GeneResult
}

func (e *recordingEmitter) Emit(r GeneResult) error {
	e.results = append(e.results, r)
	return nil
}

func newGeneReader(t *testing.T, lines string) *geneio.Reader {
	t.Helper()
	return geneio.NewReader(strings.NewReader(lines))
}

func defaultOptions() Options {
	return Options{MAFLimit: 0}
}

func TestSingleVariantUnweightedNormalization(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 100 200 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1", "S2"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0, 2},
	})
	reference := newFakeReader([]string{"R1", "R2", "R3"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{0, 1, 2},
	})

	c := New(genes, sample, reference, defaultOptions())
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 1 {
		t.Fatalf("expected exactly one gene result, got %d", len(em.results))
	}
	res := em.results[0]
	want := []float64{0.5, 0.5}
	for i := range want {
		if res.Values[i] != want[i] {
			t.Errorf("Values[%d] = %v, want %v", i, res.Values[i], want[i])
		}
	}
	if res.NSample != 2 || res.NRef != 3 || res.NumLoci != 1 || res.TotalNumLoci != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}
}

func TestMAFFloorExcludesLocusAndSuppressesEmission(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 100 200 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "s1", Ref: "A", Alt: "G", MAF: 0.01, Data: []float64{0},
	})
	reference := newFakeReader([]string{"R1"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "r1", Ref: "A", Alt: "G", MAF: 0.01, Data: []float64{1},
	})

	opts := defaultOptions()
	opts.MAFLimit = 0.05
	c := New(genes, sample, reference, opts)
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 0 {
		t.Fatalf("expected the gene to be suppressed (no scoreable loci), got %+v", em.results)
	}
}

func TestChromosomeRestrictionSkipsOtherChromosomes(t *testing.T) {
	genes := newGeneReader(t, ""+
		"1 src gene 100 200 . + . gene_id \"G1\";\n"+
		"2 src gene 100 200 . + . gene_id \"G2\";\n",
	)
	sample := newFakeReader([]string{"S1"},
		fakeRecord{Chr: 1, Pos: 150, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0}},
		fakeRecord{Chr: 2, Pos: 150, ID: "s2", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{2}},
	)
	reference := newFakeReader([]string{"R1"},
		fakeRecord{Chr: 1, Pos: 150, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{1}},
		fakeRecord{Chr: 2, Pos: 150, ID: "r2", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{1}},
	)

	opts := defaultOptions()
	opts.Chr = filter.Chromosome{Target: 2}
	c := New(genes, sample, reference, opts)
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 1 {
		t.Fatalf("expected only the chr2 gene to be emitted, got %d results", len(em.results))
	}
	if em.results[0].Chr != 2 {
		t.Errorf("expected chr2 result, got chr %d", em.results[0].Chr)
	}
}

func TestSNPFilterExcludeSuppressesMatchedLocus(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 100 200 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0},
	})
	reference := newFakeReader([]string{"R1"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{1},
	})

	excl, err := filter.LoadSNPSet(strings.NewReader("s1\n"), false)
	if err != nil {
		t.Fatal(err)
	}
	opts := defaultOptions()
	opts.SNPFilter = excl
	c := New(genes, sample, reference, opts)
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 0 {
		t.Fatalf("expected excluded SNP to suppress the gene's only locus, got %+v", em.results)
	}
}

func TestWeightByAffectsPerSubjectAggregation(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 100 300 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1", "S2"},
		fakeRecord{Chr: 1, Pos: 150, ID: "sA", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0, 2}},
		fakeRecord{Chr: 1, Pos: 250, ID: "sB", Ref: "A", Alt: "G", MAF: 0.5, InfoStr: "W=3", Data: []float64{0, 2}},
	)
	reference := newFakeReader([]string{"R1"},
		fakeRecord{Chr: 1, Pos: 150, ID: "rA", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{0}},
		fakeRecord{Chr: 1, Pos: 250, ID: "rB", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{2}},
	)

	opts := defaultOptions()
	opts.WeightBy = "W"
	c := New(genes, sample, reference, opts)
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 1 {
		t.Fatalf("expected one gene result, got %d", len(em.results))
	}
	want := []float64{0.75, 0.25}
	got := em.results[0].Values
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Values[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFillMissingsReplacesNaNAndCountsFills(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 100 200 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1", "S2"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{math.NaN(), 1},
	})
	reference := newFakeReader([]string{"R1", "R2"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{0, 1},
	})

	opts := defaultOptions()
	opts.FillMissings = true
	c := New(genes, sample, reference, opts)
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 1 {
		t.Fatalf("expected one gene result, got %d", len(em.results))
	}
	want := []float64{0.25, 0.25}
	got := em.results[0].Values
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Values[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if c.FillCount() != 1 {
		t.Errorf("FillCount() = %d, want 1", c.FillCount())
	}
}

func TestOutputVariantsCollectsPairingIDs(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 100 200 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0},
	})
	reference := newFakeReader([]string{"R1"}, fakeRecord{
		Chr: 1, Pos: 150, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{1},
	})

	opts := defaultOptions()
	opts.OutputVariants = true
	c := New(genes, sample, reference, opts)
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 1 {
		t.Fatalf("expected one gene result, got %d", len(em.results))
	}
	if len(em.results[0].UsedVariants) != 1 || em.results[0].UsedVariants[0] != "s1/r1" {
		t.Errorf("expected UsedVariants [\"s1/r1\"], got %v", em.results[0].UsedVariants)
	}
}

func TestFlankedBoundsSymmetricPlusStrand(t *testing.T) {
	g := &geneio.Region{Chr: 1, Start: 10000, Stop: 20000, Strand: '+'}
	start, stop := flankedBounds(g, 5, 5)
	if start != 5000 || stop != 25000 {
		t.Errorf("flankedBounds() = (%d, %d), want (5000, 25000)", start, stop)
	}
}

func TestFlankedBoundsMinusStrandSwapsRoles(t *testing.T) {
	g := &geneio.Region{Chr: 1, Start: 10000, Stop: 20000, Strand: '-'}
	start, stop := flankedBounds(g, 5, 5)
	if start != 5000 || stop != 25000 {
		t.Errorf("flankedBounds() on minus strand with symmetric flank = (%d, %d), want (5000, 25000)", start, stop)
	}

	start, stop = flankedBounds(g, 2, 5)
	if start != 5000 || stop != 22000 {
		t.Errorf("minus-strand flankedBounds(pre=2,post=5) = (%d, %d), want (5000, 22000) since post-flank extends upstream and pre-flank extends downstream on this strand", start, stop)
	}
}

func TestOverlappingGenesBothEmitSharedWindowEntry(t *testing.T) {
	genes := newGeneReader(t, ""+
		"1 src gene 100 200 . + . gene_id \"G1\";\n"+
		"1 src gene 150 250 . + . gene_id \"G2\";\n",
	)
	sample := newFakeReader([]string{"S1", "S2"}, fakeRecord{
		Chr: 1, Pos: 175, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0, 2},
	})
	reference := newFakeReader([]string{"R1", "R2", "R3"}, fakeRecord{
		Chr: 1, Pos: 175, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{0, 1, 2},
	})

	c := New(genes, sample, reference, defaultOptions())
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 2 {
		t.Fatalf("expected both overlapping genes to emit the shared variant, got %d results", len(em.results))
	}
	for i, res := range em.results {
		if res.NumLoci != 1 || res.TotalNumLoci != 1 {
			t.Errorf("result %d: NumLoci=%d TotalNumLoci=%d, want 1/1", i, res.NumLoci, res.TotalNumLoci)
		}
		want := []float64{0.5, 0.5}
		for j := range want {
			if res.Values[j] != want[j] {
				t.Errorf("result %d Values[%d] = %v, want %v", i, j, res.Values[j], want[j])
			}
		}
	}
}

func TestDuplicatePositionInSampleStreamDoesNotInflateTotals(t *testing.T) {
	genes := newGeneReader(t, "1 src gene 50 150 . + . gene_id \"G1\";\n")
	sample := newFakeReader([]string{"S1", "S2"},
		fakeRecord{Chr: 1, Pos: 100, ID: "s1", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{0, 2}},
		fakeRecord{Chr: 1, Pos: 100, ID: "s1dup", Ref: "A", Alt: "G", MAF: 0.5, Data: []float64{1, 1}},
	)
	reference := newFakeReader([]string{"R1", "R2", "R3"}, fakeRecord{
		Chr: 1, Pos: 100, ID: "r1", Ref: "A", Alt: "G", MAF: 0.4, Data: []float64{0, 1, 2},
	})

	c := New(genes, sample, reference, defaultOptions())
	em := &recordingEmitter{}
	if err := c.Run(em); err != nil {
		t.Fatal(err)
	}
	if len(em.results) != 1 {
		t.Fatalf("expected one gene result, got %d", len(em.results))
	}
	res := em.results[0]
	if res.NumLoci != 1 || res.TotalNumLoci != 1 {
		t.Errorf("duplicate sample row inflated totals: NumLoci=%d TotalNumLoci=%d, want 1/1", res.NumLoci, res.TotalNumLoci)
	}
	want := []float64{0.5, 0.5}
	for i := range want {
		if res.Values[i] != want[i] {
			t.Errorf("Values[%d] = %v, want %v (duplicate row must not contribute)", i, res.Values[i], want[i])
		}
	}
}

func TestFlankedBoundsClampsAtZero(t *testing.T) {
	g := &geneio.Region{Chr: 1, Start: 1000, Stop: 2000, Strand: '+'}
	start, _ := flankedBounds(g, 5, 0)
	if start != 0 {
		t.Errorf("expected start clamped to 0, got %d", start)
	}
}
