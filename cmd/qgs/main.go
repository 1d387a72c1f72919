// Command qgs computes per-gene quantitative genetic scores from a
// cohort of sample genotypes against a reference panel. Grounded on
// original_source/src/qgs.cc's main() and the teacher's single-binary
// RunCommand(prog, args, stdin, stdout, stderr) int convention.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/machine2learn/qgs/internal/config"
	"github.com/machine2learn/qgs/internal/coordinator"
	"github.com/machine2learn/qgs/internal/filter"
	"github.com/machine2learn/qgs/internal/geneio"
	"github.com/machine2learn/qgs/internal/gzfile"
	"github.com/machine2learn/qgs/internal/output"
	"github.com/machine2learn/qgs/internal/qlog"
	"github.com/machine2learn/qgs/internal/variant"
)

const version = "1.0.0"

func main() {
	os.Exit(run("qgs", os.Args[1:], os.Stdout, os.Stderr))
}

func run(prog string, args []string, stdout, stderr io.Writer) int {
	qlog.Init()

	cfg, code := config.Parse(args, stderr, qlog.Warningf)
	if cfg.Help {
		fmt.Fprintf(stdout, "Usage: %s --sample FILE [--sample FILE...] --reference FILE --genes FILE --out FILE [options]\n", prog)
		return 0
	}
	if cfg.Version {
		fmt.Fprintf(stdout, "%s %s\n", prog, version)
		return 0
	}
	if code >= 0 {
		return code
	}

	switch {
	case cfg.Trace:
		qlog.SetLevel(qlog.Trace)
	case cfg.Debug:
		qlog.SetLevel(qlog.Debug)
	case cfg.Verbose:
		qlog.SetLevel(qlog.Verbose)
	}

	geneFile, err := gzfile.Open(cfg.GenesPath)
	if err != nil {
		qlog.Warningf("cannot open gene file `%s` for reading: %v", cfg.GenesPath, err)
		return 1
	}
	defer geneFile.Close()
	genes := geneio.NewReader(geneFile)

	sampleFormat := resolveFormat(cfg.SampleFormat, cfg.Format)
	referenceFormat := resolveFormat(cfg.ReferenceFormat, cfg.Format)

	sample, err := variant.Open(cfg.SamplePaths, sampleFormat, cfg.HardCalls, cfg.AllowMissings)
	if err != nil {
		qlog.Warningf("cannot open sample file(s): %v", err)
		return 1
	}
	defer sample.Close()

	reference, err := variant.Open([]string{cfg.ReferencePath}, referenceFormat, cfg.HardCalls, false)
	if err != nil {
		qlog.Warningf("cannot open reference file `%s`: %v", cfg.ReferencePath, err)
		return 1
	}
	defer reference.Close()

	snpFilter, err := loadSNPFilter(cfg)
	if err != nil {
		qlog.Warningf("%v", err)
		return 1
	}

	outFile, err := gzfile.Create(cfg.OutPath)
	if err != nil {
		qlog.Warningf("cannot open output file `%s` for writing: %v", cfg.OutPath, err)
		return 1
	}
	defer outFile.Close()

	subjectIDs := make([]string, sample.NumSubjects())
	for i := range subjectIDs {
		subjectIDs[i] = sample.SubjectID(i)
	}

	delimiter := byte(',')
	if cfg.Delimiter != "" {
		delimiter = cfg.Delimiter[0]
	}
	qlog.Verbosef("outputting subject ids and header.")
	writer := output.New(outFile, delimiter, subjectIDs, cfg.OutputVariants)
	if err := writer.WriteHeader(); err != nil {
		qlog.Warningf("failed to write to `%s`: %v", cfg.OutPath, err)
		return 1
	}

	opts := coordinator.Options{
		PreFlankKb:     cfg.ResolvedPreFlank(),
		PostFlankKb:    cfg.ResolvedPostFlank(),
		MAFLimit:       cfg.MAF,
		GTFFilter:      filter.ParseGTFFilter(cfg.GTFFilter),
		Chr:            filter.Chromosome{Target: cfg.Chr},
		SNPFilter:      snpFilter,
		AllowMissings:  cfg.AllowMissings,
		FillMissings:   cfg.FillMissings,
		WeightBy:       cfg.WeightBy,
		OutputVariants: cfg.OutputVariants,
	}
	coord := coordinator.New(genes, sample, reference, opts)

	if err := coord.Run(writer); err != nil {
		qlog.Warningf("%v", err)
		return 1
	}
	if err := writer.Flush(); err != nil {
		qlog.Warningf("failed to write to `%s`: %v", cfg.OutPath, err)
		return 1
	}
	qlog.Verbosef("filled %d missing sample dosages.", coord.FillCount())
	return 0
}

func resolveFormat(override, fallback string) variant.Format {
	if override != "" {
		return variant.Format(override)
	}
	return variant.Format(fallback)
}

func loadSNPFilter(cfg *config.Config) (*filter.SNPSet, error) {
	path, include := cfg.IncludeSNPs, true
	if path == "" {
		path, include = cfg.ExcludeSNPs, false
	}
	if path == "" {
		return nil, nil
	}
	f, err := gzfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open snp filter file `%s`: %w", path, err)
	}
	defer f.Close()
	return filter.LoadSNPSet(f, include)
}
