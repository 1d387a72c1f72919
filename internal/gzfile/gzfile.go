// Package gzfile opens input files that may or may not be gzip
// compressed, auto-detecting on the ".gz" suffix the way the teacher's
// importer.tileFasta does with pgzip.
package gzfile

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Open returns a ReadCloser for path, transparently unwrapping gzip
// when path ends in ".gz". The returned Close releases both the gzip
// reader (if any) and the underlying file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var rc io.ReadCloser = f
	rc = ioutil.NopCloser(bufio.NewReaderSize(rc, 1<<20))
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(rc)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &closeBoth{Reader: gz, gz: gz, f: f}, nil
	}
	return &closeBoth{Reader: rc, f: f}, nil
}

type closeBoth struct {
	io.Reader
	gz *pgzip.Reader
	f  *os.File
}

func (c *closeBoth) Close() error {
	if c.gz != nil {
		c.gz.Close()
	}
	return c.f.Close()
}

// Create opens path for writing, truncating any existing file, as a
// plain (uncompressed) writer — output files are one delimited text
// row per gene, never gzip per §6.
func Create(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
}

// FindSibling looks for a companion file with the given extension
// next to base, trying base+"."+ext, base+"."+ext+".gz", and then
// progressively stripping base's own trailing extensions and retrying
// — the same fallback search as the original C++ reader's find_file.
func FindSibling(base, ext string) string {
	fbase := base
	candidates := []string{fbase + "." + ext, fbase + "." + ext + ".gz"}
	for n := 0; n != 2; n++ {
		pos := strings.LastIndexByte(fbase, '.')
		if pos < 0 {
			break
		}
		fbase = fbase[:pos]
		candidates = append(candidates, fbase+"."+ext, fbase+"."+ext+".gz")
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
