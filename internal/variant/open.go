package variant

import "strings"

// Format names the three supported on-disk variant encodings. "auto"
// selects by file extension, resolving the "file extension or
// explicit config" ambiguity in spec §4.1.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatVCF    Format = "vcf"
	FormatBED    Format = "bed"
	FormatDosage Format = "dosage"
)

func detect(path string) Format {
	p := strings.TrimSuffix(path, ".gz")
	switch {
	case strings.HasSuffix(p, ".bed"):
		return FormatBED
	case strings.HasSuffix(p, ".vcf"):
		return FormatVCF
	default:
		return FormatDosage
	}
}

// Open opens one or more cohort/reference variant files as a single
// Reader. Multiple paths are only meaningful for the PLINK dosage
// format (natural-sort concatenation); VCF and BED read only the first
// path and ignore any others.
func Open(paths []string, format Format, hardCalls, allowMissings bool) (Reader, error) {
	f := format
	if f == FormatAuto || f == "" {
		f = detect(paths[0])
	}
	switch f {
	case FormatVCF:
		return OpenVCF(paths[0], hardCalls, allowMissings)
	case FormatBED:
		return OpenBED(paths[0], allowMissings)
	case FormatDosage:
		return OpenDosage(paths)
	}
	return OpenVCF(paths[0], hardCalls, allowMissings)
}
