// Package output implements the delimited text formatter (C7): one
// header row followed by one row per emitted gene. Grounded on
// original_source/src/qgs.cc's output-writing tail end, following the
// teacher's preference for a thin io.Writer-based formatter over a
// templating library.
package output

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/machine2learn/qgs/internal/coordinator"
)

// Writer formats GeneResult values as delimited text rows and
// implements coordinator.Emitter.
type Writer struct {
	w              *bufio.Writer
	delimiter      string
	subjectIDs     []string
	outputVariants bool
}

func New(w io.Writer, delimiter byte, subjectIDs []string, outputVariants bool) *Writer {
	return &Writer{
		w:              bufio.NewWriter(w),
		delimiter:      string(delimiter),
		subjectIDs:     subjectIDs,
		outputVariants: outputVariants,
	}
}

// WriteHeader writes the fixed column names followed by one column
// per subject, in reader order.
func (o *Writer) WriteHeader() error {
	cols := []string{"gene_name", "gene_id", "chr", "start", "stop", "Nsample", "Nref", "num_loci", "total_num_loci"}
	cols = append(cols, o.subjectIDs...)
	_, err := o.w.WriteString(strings.Join(cols, o.delimiter) + "\n")
	return err
}

// Emit writes one gene's row. Under --output-variants the num_loci
// cell becomes a "|"-joined list of sampleID/referenceID pairs instead
// of a count.
func (o *Writer) Emit(res coordinator.GeneResult) error {
	numLociCell := strconv.Itoa(res.NumLoci)
	if o.outputVariants {
		numLociCell = strings.Join(res.UsedVariants, "|")
	}

	cells := []string{
		res.Gene.GeneName(),
		res.Gene.GeneID(),
		strconv.Itoa(res.Chr),
		strconv.Itoa(res.Start),
		strconv.Itoa(res.Stop),
		strconv.Itoa(res.NSample),
		strconv.Itoa(res.NRef),
		numLociCell,
		strconv.Itoa(res.TotalNumLoci),
	}
	for _, v := range res.Values {
		cells = append(cells, formatCell(v))
	}
	_, err := o.w.WriteString(strings.Join(cells, o.delimiter) + "\n")
	return err
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Flush must be called once after the last Emit to push buffered
// output to the underlying writer.
func (o *Writer) Flush() error {
	return o.w.Flush()
}
