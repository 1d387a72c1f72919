// Package config implements CLI flag parsing for qgs, following the
// teacher's flag.NewFlagSet("", flag.ContinueOnError) convention
// (see original_source/src/qgs.cc's boost::program_options table,
// translated to Go's flag idiom the way arvados-lightning's
// subcommands do it).
package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Config holds every resolved CLI flag for one qgs invocation.
type Config struct {
	SamplePaths   []string
	ReferencePath string
	GenesPath     string
	OutPath       string

	Flank, PreFlank, PostFlank int
	MAF                        float64
	GTFFilter                  []string
	IncludeSNPs, ExcludeSNPs   string
	Chr                        int

	HardCalls      bool
	AllowMissings  bool
	FillMissings   bool
	WeightBy       string
	Delimiter      string
	OutputVariants bool

	Format          string
	SampleFormat    string
	ReferenceFormat string

	Verbose, Debug, Trace bool
	Help, Version         bool
}

// ResolvedPreFlank and ResolvedPostFlank fall back to Flank when the
// asymmetric override wasn't given, matching the "--flank K is
// equivalent to --pre-flank K --post-flank K" law.
func (c *Config) ResolvedPreFlank() int {
	if c.PreFlank != 0 {
		return c.PreFlank
	}
	return c.Flank
}

func (c *Config) ResolvedPostFlank() int {
	if c.PostFlank != 0 {
		return c.PostFlank
	}
	return c.Flank
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// knownFlags and boolFlags drive the unknown-flag warn-and-strip
// pre-pass: unrecognised flags are dropped with a warning instead of
// aborting the run, per the recoverable error class.
var boolFlags = map[string]bool{
	"hard-calls": true, "allow-missings": true, "fill-missings": true,
	"output-variants": true, "verbose": true, "debug": true, "trace": true,
	"help": true, "version": true,
}

var knownFlags = map[string]bool{
	"sample": true, "reference": true, "genes": true, "out": true,
	"flank": true, "pre-flank": true, "post-flank": true, "maf": true,
	"gtf-filter": true, "include-snps": true, "exclude-snps": true, "chr": true,
	"hard-calls": true, "allow-missings": true, "fill-missings": true,
	"weight-by": true, "delimiter": true, "output-variants": true,
	"format": true, "sample-format": true, "reference-format": true,
	"verbose": true, "debug": true, "trace": true, "help": true, "version": true,
}

// stripUnknownFlags drops any --flag not present in knownFlags,
// warning via warnf for each one dropped. An unknown flag without an
// inline "=value" also takes the following argument with it unless
// that argument itself starts with "-".
func stripUnknownFlags(args []string, warnf func(string, ...interface{})) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			out = append(out, a)
			continue
		}
		name := strings.TrimLeft(a, "-")
		hasInlineValue := false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
			hasInlineValue = true
		}
		if knownFlags[name] {
			out = append(out, a)
			continue
		}
		warnf("unknown flag %q: ignoring", a)
		if !hasInlineValue && !boolFlags[name] && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++ // also drop the value that would have belonged to it
		}
	}
	return out
}

// Parse parses args into a Config. The returned exitCode is -1 when
// parsing succeeded and the caller should proceed; any other value
// (0 for --help/--version, 2 for a flag error) should be returned
// from main immediately.
func Parse(args []string, stderr io.Writer, warnf func(string, ...interface{})) (*Config, int) {
	args = stripUnknownFlags(args, warnf)

	cfg := &Config{}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var samples stringList
	var gtfFilter stringList
	flags.Var(&samples, "sample", "cohort variant `file` (repeatable)")
	flags.Var(&gtfFilter, "gtf-filter", "gene attribute constraint `key=value` (repeatable)")
	flags.StringVar(&cfg.ReferencePath, "reference", "", "reference panel variant `file`")
	flags.StringVar(&cfg.GenesPath, "genes", "", "gene database `file`")
	flags.StringVar(&cfg.OutPath, "out", "", "output `file`")
	flags.IntVar(&cfg.Flank, "flank", 0, "symmetric flank in `kb`")
	flags.IntVar(&cfg.PreFlank, "pre-flank", 0, "upstream flank in `kb`, overrides --flank")
	flags.IntVar(&cfg.PostFlank, "post-flank", 0, "downstream flank in `kb`, overrides --flank")
	flags.Float64Var(&cfg.MAF, "maf", 0.01, "minor allele frequency threshold")
	flags.StringVar(&cfg.IncludeSNPs, "include-snps", "", "whitespace-separated id `file` to include")
	flags.StringVar(&cfg.ExcludeSNPs, "exclude-snps", "", "whitespace-separated id `file` to exclude")
	flags.IntVar(&cfg.Chr, "chr", 0, "restrict to one chromosome")
	flags.BoolVar(&cfg.HardCalls, "hard-calls", false, "force GT over DS in VCF input")
	flags.BoolVar(&cfg.AllowMissings, "allow-missings", false, "output NaN for missing cells instead of skipping the locus")
	flags.BoolVar(&cfg.FillMissings, "fill-missings", false, "replace missing sample dosages (implies --allow-missings)")
	flags.StringVar(&cfg.WeightBy, "weight-by", "", "VCF INFO `field` used as per-variant weight")
	flags.StringVar(&cfg.Delimiter, "delimiter", ",", "output column `delimiter`")
	flags.BoolVar(&cfg.OutputVariants, "output-variants", false, "replace the used-variant count with a |-joined id list")
	flags.StringVar(&cfg.Format, "format", "auto", "input `format` applied to both sample and reference: auto, vcf, bed, or dosage")
	flags.StringVar(&cfg.SampleFormat, "sample-format", "", "override --format for the cohort file(s)")
	flags.StringVar(&cfg.ReferenceFormat, "reference-format", "", "override --format for the reference file")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "raise logging verbosity")
	flags.BoolVar(&cfg.Debug, "debug", false, "raise logging verbosity further")
	flags.BoolVar(&cfg.Trace, "trace", false, "raise logging verbosity to maximum")
	flags.BoolVar(&cfg.Help, "help", false, "print usage and exit")
	flags.BoolVar(&cfg.Version, "version", false, "print version and exit")

	if err := flags.Parse(args); err == flag.ErrHelp {
		return cfg, 0
	} else if err != nil {
		return cfg, 2
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(stderr, "errant command line arguments after parsed flags: %v\n", flags.Args())
		return cfg, 2
	}

	cfg.SamplePaths = []string(samples)
	cfg.GTFFilter = []string(gtfFilter)
	if cfg.FillMissings {
		cfg.AllowMissings = true
	}
	if cfg.Help || cfg.Version {
		return cfg, 0
	}
	if len(cfg.SamplePaths) == 0 || cfg.ReferencePath == "" || cfg.GenesPath == "" || cfg.OutPath == "" {
		fmt.Fprintln(stderr, "--sample, --reference, --genes and --out are all required")
		return cfg, 2
	}
	return cfg, -1
}
