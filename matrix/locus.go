package matrix

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Locus struct {
	ID    string
	Chrom string
	Start int
	End   int
	Genes []string
	Index string
}

var chromRe = regexp.MustCompile(`chr([^_]+)`)

// ParseLocus splits CGI_chr<N>_<start>_<end>[_<gene>...][_<index>]. A trailing
// all-digit token after the coordinates is the CGI index.
func ParseLocus(id string) (Locus, error) {
	id = strings.TrimSpace(id)
	parts := strings.Split(id, "_")
	if len(parts) > 0 && parts[0] == "CGI" {
		parts = parts[1:]
	}
	l := Locus{ID: id}
	if len(parts) > 3 && isDigits(parts[len(parts)-1]) {
		l.Index = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "chr") {
		return l, fmt.Errorf("malformed locus identifier %q", id)
	}
	start, err := strconv.Atoi(parts[1])
	if err != nil {
		return l, fmt.Errorf("malformed start in %q: %w", id, err)
	}
	end, err := strconv.Atoi(parts[2])
	if err != nil {
		return l, fmt.Errorf("malformed end in %q: %w", id, err)
	}
	l.Chrom, l.Start, l.End = parts[0], start, end
	for _, g := range parts[3:] {
		if g != "" {
			l.Genes = append(l.Genes, g)
		}
	}
	return l, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MapID is the chr:start-end key used by the gene map.
func (l Locus) MapID() string {
	return fmt.Sprintf("%s:%d-%d", l.Chrom, l.Start, l.End)
}

func (l Locus) Midpoint() float64 {
	return float64(l.Start+l.End) / 2
}

// Chromosome returns the chromosome name without its chr prefix, or "".
func Chromosome(id string) string {
	m := chromRe.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	return m[1]
}

// ChromosomeOrder is 1..22, X, Y.
func ChromosomeOrder() []string {
	order := make([]string, 0, 24)
	for i := 1; i <= 22; i++ {
		order = append(order, strconv.Itoa(i))
	}
	return append(order, "X", "Y")
}
