package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biogo/biogo/io/featio/gff"
	"github.com/biogo/biogo/seq"
)

// Region is a scored genomic interval with 1-based inclusive coordinates.
type Region struct {
	Chrom string
	Start int
	End   int
	Score float64
	Attrs [][2]string
}

// WriteGFF writes regions as GFF features of the given type.
func WriteGFF(path, source, feature string, regions []Region) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := bufio.NewWriter(f)

	out := gff.NewWriter(buf, 60, true)
	out.Precision = 4
	for _, r := range regions {
		score := r.Score
		attrs := make(gff.Attributes, 0, len(r.Attrs))
		for _, a := range r.Attrs {
			attrs = append(attrs, gff.Attribute{Tag: a[0], Value: a[1]})
		}
		start := r.Start - 1
		if start < 0 {
			start = 0
		}
		if _, err := out.Write(&gff.Feature{
			SeqName:        r.Chrom,
			Source:         source,
			Feature:        feature,
			FeatStart:      start,
			FeatEnd:        r.End,
			FeatScore:      &score,
			FeatStrand:     seq.None,
			FeatFrame:      gff.NoFrame,
			FeatAttributes: attrs,
		}); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return buf.Flush()
}
