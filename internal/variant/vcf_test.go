package variant

import (
	"io/ioutil"
	"math"
	"path/filepath"
	"testing"

	"gopkg.in/check.v1"
)

func TestVCF(t *testing.T) { check.TestingT(t) }

type vcfSuite struct{}

var _ = check.Suite(&vcfSuite{})

func writeFile(c *check.C, dir, name, content string) string {
	path := filepath.Join(dir, name)
	c.Assert(ioutil.WriteFile(path, []byte(content), 0644), check.IsNil)
	return path
}

func (s *vcfSuite) TestDSMode(c *check.C) {
	dir := c.MkDir()
	path := writeFile(c, dir, "ds.vcf",
		"##fileformat=VCFv4.2\n"+
			"##FORMAT=<ID=DS,Number=1,Type=Float>\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\tS3\n"+
			"1\t100\trs1\ta\tg\t.\t.\t.\tDS\t0\t1\t2\n")
	r, err := OpenVCF(path, false, false)
	c.Assert(err, check.IsNil)
	defer r.Close()
	c.Check(r.NumSubjects(), check.Equals, 3)

	var l Locus
	c.Assert(r.NextShallow(&l), check.Equals, true)
	c.Check(l.Chr, check.Equals, 1)
	c.Check(l.Pos, check.Equals, 100)
	c.Check(l.Ref, check.Equals, "A")
	c.Check(l.Alt, check.Equals, "G")

	c.Assert(r.DeepRead(&l), check.Equals, true)
	c.Check(l.Data, check.DeepEquals, []float64{0, 1, 2})
	c.Check(l.MAF, check.Equals, 0.5)

	// deep-reading again without a fresh shallow pull is a duplicate.
	c.Check(r.DeepRead(&l), check.Equals, false)
}

func (s *vcfSuite) TestGTMode(c *check.C) {
	dir := c.MkDir()
	path := writeFile(c, dir, "gt.vcf",
		"##fileformat=VCFv4.2\n"+
			"##FORMAT=<ID=GT,Number=1,Type=String>\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\tS3\n"+
			"1\t100\trs1\tA\tG\t.\t.\t.\tGT\t0/0\t0/1\t1/1\n")
	r, err := OpenVCF(path, false, false)
	c.Assert(err, check.IsNil)
	defer r.Close()

	var l Locus
	c.Assert(r.NextShallow(&l), check.Equals, true)
	c.Assert(r.DeepRead(&l), check.Equals, true)
	c.Check(l.Data, check.DeepEquals, []float64{0, 1, 2})
}

func (s *vcfSuite) TestGTMissingRejectedWithoutAllowMissings(c *check.C) {
	dir := c.MkDir()
	path := writeFile(c, dir, "gt.vcf",
		"##fileformat=VCFv4.2\n"+
			"##FORMAT=<ID=GT,Number=1,Type=String>\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n"+
			"1\t100\trs1\tA\tG\t.\t.\t.\tGT\t./.\t0/1\n")
	r, err := OpenVCF(path, false, false)
	c.Assert(err, check.IsNil)
	defer r.Close()

	var l Locus
	c.Assert(r.NextShallow(&l), check.Equals, true)
	c.Check(r.DeepRead(&l), check.Equals, false)
}

func (s *vcfSuite) TestGTMissingAllowed(c *check.C) {
	dir := c.MkDir()
	path := writeFile(c, dir, "gt.vcf",
		"##fileformat=VCFv4.2\n"+
			"##FORMAT=<ID=GT,Number=1,Type=String>\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n"+
			"1\t100\trs1\tA\tG\t.\t.\t.\tGT\t./.\t0/1\n")
	r, err := OpenVCF(path, false, true)
	c.Assert(err, check.IsNil)
	defer r.Close()

	var l Locus
	c.Assert(r.NextShallow(&l), check.Equals, true)
	c.Assert(r.DeepRead(&l), check.Equals, true)
	c.Check(math.IsNaN(l.Data[0]), check.Equals, true)
	c.Check(l.Data[1], check.Equals, 1.0)
}

func (s *vcfSuite) TestHardCallsForcesGT(c *check.C) {
	dir := c.MkDir()
	path := writeFile(c, dir, "both.vcf",
		"##fileformat=VCFv4.2\n"+
			"##FORMAT=<ID=DS,Number=1,Type=Float>\n"+
			"##FORMAT=<ID=GT,Number=1,Type=String>\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n"+
			"1\t100\trs1\tA\tG\t.\t.\t.\tGT:DS\t0/1:1.4\t1/1:1.9\n")
	r, err := OpenVCF(path, true, false)
	c.Assert(err, check.IsNil)
	defer r.Close()

	var l Locus
	c.Assert(r.NextShallow(&l), check.Equals, true)
	c.Assert(r.DeepRead(&l), check.Equals, true)
	c.Check(l.Data, check.DeepEquals, []float64{1, 2})
}

func (s *vcfSuite) TestFlipSwapsDosage(c *check.C) {
	dir := c.MkDir()
	path := writeFile(c, dir, "ds.vcf",
		"##fileformat=VCFv4.2\n"+
			"##FORMAT=<ID=DS,Number=1,Type=Float>\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n"+
			"1\t100\trs1\tA\tG\t.\t.\t.\tDS\t0.3\n")
	r, err := OpenVCF(path, false, false)
	c.Assert(err, check.IsNil)
	defer r.Close()

	var l Locus
	c.Assert(r.NextShallow(&l), check.Equals, true)
	l.Flip = true
	c.Assert(r.DeepRead(&l), check.Equals, true)
	c.Check(l.Data[0], check.Equals, 1.7)
}
