// Package coordinator implements the streaming coordinator (C6): the
// three-way merge join over a gene stream and two variant streams
// (sample cohort, reference panel) that drives allele reconciliation,
// filtering, scoring, and gene emission. Grounded on the main
// processing loop in original_source/src/qgs.cc.
package coordinator

import (
	"math"
	"strconv"

	"github.com/machine2learn/qgs/internal/filter"
	"github.com/machine2learn/qgs/internal/geneio"
	"github.com/machine2learn/qgs/internal/reconcile"
	"github.com/machine2learn/qgs/internal/score"
	"github.com/machine2learn/qgs/internal/variant"
	"github.com/machine2learn/qgs/internal/window"
)

// sentinel stands in for an exhausted reader's cursor: always
// lexicographically after every real (chr, pos) pair.
const sentinel = math.MaxInt32

// Options configures one coordinator run; every field corresponds to
// a resolved CLI flag.
type Options struct {
	PreFlankKb, PostFlankKb int
	MAFLimit                float64
	GTFFilter               filter.GeneAttrs
	Chr                     filter.Chromosome
	SNPFilter               *filter.SNPSet
	AllowMissings           bool
	FillMissings            bool
	WeightBy                string
	OutputVariants          bool
}

// GeneResult is one finished gene aggregate, ready for the output
// formatter (C7).
type GeneResult struct {
	Gene         *geneio.Region
	Chr          int
	Start, Stop  int
	NSample      int
	NRef         int
	NumLoci      int
	TotalNumLoci int
	Values       []float64
	UsedVariants []string
}

// Emitter receives finished gene rows in stream order.
type Emitter interface {
	Emit(GeneResult) error
}

// Coordinator owns the score window and both variant readers, driving
// them alongside a gene source to produce one GeneResult per emitted
// gene.
type Coordinator struct {
	genes     *geneio.Reader
	sample    variant.Reader
	reference variant.Reader
	opts      Options
	win       *window.Window
	mafFloor  filter.MAFFloor

	sampleLoc variant.Locus
	refLoc    variant.Locus

	sampleChr, samplePos int
	refChr, refPos       int

	fillCount int
}

func New(genes *geneio.Reader, sample, reference variant.Reader, opts Options) *Coordinator {
	return &Coordinator{
		genes:     genes,
		sample:    sample,
		reference: reference,
		opts:      opts,
		win:       window.New(),
		mafFloor:  filter.MAFFloor{Limit: opts.MAFLimit},
	}
}

// Run streams every gene through the coordinator, calling emit.Emit
// for each gene that produces a non-empty aggregate.
func (c *Coordinator) Run(emit Emitter) error {
	for {
		gene, err := c.genes.Next()
		if err != nil {
			return err
		}
		if gene == nil {
			return nil
		}
		if c.opts.Chr.StopGene(gene.Chr) {
			return nil
		}
		if c.opts.Chr.SkipGene(gene.Chr) {
			continue
		}
		if !c.opts.GTFFilter.Pass(gene) {
			continue
		}

		start, stop := flankedBounds(gene, c.opts.PreFlankKb, c.opts.PostFlankKb)
		c.advanceThroughGene(gene.Chr, start, stop)

		if res := c.emitGene(gene, start, stop); res != nil {
			if err := emit.Emit(*res); err != nil {
				return err
			}
		}
	}
}

// flankedBounds applies the strand-aware flanking rule: on the minus
// strand pre/post swap roles since "upstream" runs in the opposite
// genomic direction.
func flankedBounds(g *geneio.Region, preKb, postKb int) (start, stop int) {
	pre, post := preKb*1000, postKb*1000
	if g.Strand == '-' {
		start, stop = g.Start-post, g.Stop+pre
	} else {
		start, stop = g.Start-pre, g.Stop+post
	}
	if start < 0 {
		start = 0
	}
	return start, stop
}

// behindIsReference reports whether the reference cursor is the one
// lexicographically behind (or tied with) the sample cursor, in which
// case it is the side pulled next. Ties favour the reference side.
func (c *Coordinator) behindIsReference() bool {
	if c.refChr != c.sampleChr {
		return c.refChr < c.sampleChr
	}
	return c.refPos <= c.samplePos
}

func (c *Coordinator) pullSample() {
	if !c.sample.NextShallow(&c.sampleLoc) {
		c.sampleChr, c.samplePos = sentinel, sentinel
		return
	}
	c.sampleChr, c.samplePos = c.sampleLoc.Chr, c.sampleLoc.Pos
	c.win.EnsureShallow(c.sampleLoc.Chr, c.sampleLoc.Pos, c.sampleLoc.Ref)
}

func (c *Coordinator) pullReference() {
	if !c.reference.NextShallow(&c.refLoc) {
		c.refChr, c.refPos = sentinel, sentinel
		return
	}
	c.refChr, c.refPos = c.refLoc.Chr, c.refLoc.Pos
	c.win.EnsureShallow(c.refLoc.Chr, c.refLoc.Pos, c.refLoc.Ref)
}

// advanceThroughGene runs the inner merge loop for one gene's flanked
// window: pull from whichever cursor is behind, and whenever the two
// coincide on (chr, pos), run the filter/reconcile/score pipeline.
// Returns once both cursors have moved strictly past [start, stop].
func (c *Coordinator) advanceThroughGene(chr, start, stop int) {
	for {
		samplePast := c.sampleChr > chr || (c.sampleChr == chr && c.samplePos > stop)
		refPast := c.refChr > chr || (c.refChr == chr && c.refPos > stop)
		if samplePast && refPast {
			return
		}

		if c.behindIsReference() {
			c.pullReference()
		} else {
			c.pullSample()
		}

		if c.sampleChr == sentinel || c.sampleChr != c.refChr || c.samplePos != c.refPos {
			continue
		}
		c.processCoincidence(chr, start, stop)
	}
}

// processCoincidence handles one (chr, pos) where both cursors agree:
// variant filtering, gene-window bounds, allele reconciliation, deep
// reads, MAF floor, missing-value handling, and scoring.
func (c *Coordinator) processCoincidence(chr, start, stop int) {
	s, r := &c.sampleLoc, &c.refLoc

	if c.opts.SNPFilter.Skip(s.ID, s.Chr, s.Pos) {
		return
	}
	if s.Chr != chr || s.Pos < start || s.Pos > stop {
		return
	}

	if !reconcile.Reconcile(s, r, c.win) {
		s.Clear()
		r.Clear()
		return
	}

	sOK := c.sample.DeepRead(s)
	rOK := c.reference.DeepRead(r)
	if !sOK || !rOK || !c.mafFloor.Pass(s.MAF) || !c.mafFloor.Pass(r.MAF) {
		s.Clear()
		r.Clear()
		return
	}

	if c.opts.FillMissings {
		fillValue := 0.0
		if s.Flip {
			fillValue = 2
		}
		for i, v := range s.Data {
			if math.IsNaN(v) {
				s.Data[i] = fillValue
				c.fillCount++
			}
		}
	}

	scores := score.Score(s, r)
	c.win.SetScores(s.Chr, s.Pos, s.Ref, scores, s.ID+"/"+r.ID)

	if c.opts.WeightBy != "" {
		s.ParseInfo()
		if raw, ok := s.Info[c.opts.WeightBy]; ok {
			if w, err := strconv.ParseFloat(raw, 64); err == nil {
				c.win.SetWeight(s.Chr, s.Pos, s.Ref, w)
			}
		}
	}
}

const weightEpsilon = 1e-5

// emitGene prefix-erases the window up to the gene's start, aggregates
// every remaining entry within [start, stop], and returns nil when the
// gene has nothing scoreable to report.
func (c *Coordinator) emitGene(g *geneio.Region, start, stop int) *GeneResult {
	c.win.PrefixErase(g.Chr, start)
	entries := c.win.Range(g.Chr, start, stop)

	nSample := c.sample.NumSubjects()
	nRef := float64(c.reference.NumSubjects())

	total := make([]float64, nSample)
	numUsed := 0
	var correction, addition float64
	var usedVariants []string

	for _, e := range entries {
		if len(e.Entry.Scores) == 0 {
			continue
		}
		numUsed++
		w := e.Entry.Weight
		correction += 2 * math.Max(0, w)
		addition += 2 * math.Max(0, -w)
		for i, v := range e.Entry.Scores {
			if math.IsNaN(total[i]) {
				continue
			}
			if math.IsNaN(v) {
				total[i] = math.NaN()
				continue
			}
			total[i] += v
		}
		if c.opts.OutputVariants {
			usedVariants = append(usedVariants, e.Entry.ID)
		}
	}

	if numUsed == 0 || (correction < weightEpsilon && addition < weightEpsilon) {
		return nil
	}

	denom := (correction + addition) * nRef
	values := make([]float64, nSample)
	for i, t := range total {
		if math.IsNaN(t) {
			values[i] = math.NaN()
			continue
		}
		values[i] = (t + addition*nRef) / denom
	}

	return &GeneResult{
		Gene:         g,
		Chr:          g.Chr,
		Start:        g.Start,
		Stop:         g.Stop,
		NSample:      nSample,
		NRef:         int(nRef),
		NumLoci:      numUsed,
		TotalNumLoci: len(entries),
		Values:       values,
		UsedVariants: usedVariants,
	}
}

// FillCount reports how many missing sample dosages were replaced
// under --fill-missings, for end-of-run verbose logging.
func (c *Coordinator) FillCount() int { return c.fillCount }
