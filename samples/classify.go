package samples

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Timepoint string

const (
	Healthy       Timepoint = "Healthy"
	Baseline      Timepoint = "Baseline"
	OnTreatment   Timepoint = "On-Treatment"
	PostTreatment Timepoint = "Post-Treatment"

	OffTx = "Off-Tx"
)

var Order = []Timepoint{Healthy, Baseline, OnTreatment, PostTreatment}

var ErrAmbiguousPatient = errors.New("ambiguous patient id")

var (
	offTxRe = regexp.MustCompile(`(?i)off[-_]?tx`)
	cycleRe = regexp.MustCompile(`C(\d+)`)
)

// Rank is the position of t in Order, or len(Order) for unknown labels.
func (t Timepoint) Rank() int {
	for i, o := range Order {
		if o == t {
			return i
		}
	}
	return len(Order)
}

// Classify maps a sample name to a timepoint. The first matching rule wins and
// every name yields a timepoint.
func Classify(name string) Timepoint {
	switch {
	case strings.Contains(name, "INNOV"):
		return Healthy
	case strings.Contains(name, "Baseline"):
		return Baseline
	case offTxRe.MatchString(name):
		return PostTreatment
	default:
		return OnTreatment
	}
}

// ClassifyDetailed keeps treatment cycles apart: C<n> tokens become "C<n>" and
// Off-tx becomes "Off-Tx".
func ClassifyDetailed(name string) string {
	switch {
	case strings.Contains(name, "INNOV"):
		return string(Healthy)
	case strings.Contains(name, "Baseline"):
		return string(Baseline)
	case offTxRe.MatchString(name):
		return OffTx
	}
	if n, ok := cycle(name); ok {
		return "C" + strconv.Itoa(n)
	}
	return string(OnTreatment)
}

// cycle finds the first C followed by one or two digits and no further digit.
func cycle(name string) (int, bool) {
	for _, m := range cycleRe.FindAllStringSubmatch(name, -1) {
		if len(m[1]) > 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func DetailedOrder(label string) int {
	switch label {
	case string(Healthy):
		return -2
	case string(Baseline):
		return -1
	case OffTx:
		return 99
	}
	if strings.HasPrefix(label, "C") {
		if n, err := strconv.Atoi(label[1:]); err == nil {
			return n
		}
	}
	return 98
}

// ---------------------------------------- Patients ---------------------------------------- //

type PatientMatcher struct {
	ids []string
}

func NewPatientMatcher(ids []string) *PatientMatcher {
	seen := make(map[string]bool)
	var clean []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		clean = append(clean, id)
	}
	return &PatientMatcher{ids: clean}
}

func (pm *PatientMatcher) IDs() []string {
	return append([]string(nil), pm.ids...)
}

// Match resolves the patient whose id occurs in sample. When several ids occur,
// ids bounded by separators win over bare substrings, then the longest id wins.
// A remaining tie is reported as ErrAmbiguousPatient.
func (pm *PatientMatcher) Match(sample string) (string, bool, error) {
	var candidates []string
	for _, id := range pm.ids {
		if strings.Contains(sample, id) {
			candidates = append(candidates, id)
		}
	}
	switch len(candidates) {
	case 0:
		return "", false, nil
	case 1:
		return candidates[0], true, nil
	}

	var bounded []string
	for _, id := range candidates {
		if onBoundary(sample, id) {
			bounded = append(bounded, id)
		}
	}
	if len(bounded) > 0 {
		candidates = bounded
	}
	if len(candidates) == 1 {
		return candidates[0], true, nil
	}

	longest := 0
	for _, id := range candidates {
		if len(id) > longest {
			longest = len(id)
		}
	}
	var best []string
	for _, id := range candidates {
		if len(id) == longest {
			best = append(best, id)
		}
	}
	if len(best) == 1 {
		return best[0], true, nil
	}
	return "", false, fmt.Errorf("%w: sample %s matches %s", ErrAmbiguousPatient, sample, strings.Join(best, ", "))
}

func onBoundary(s, id string) bool {
	for start := 0; start < len(s); {
		i := strings.Index(s[start:], id)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(id)
		if (i == 0 || isSep(s[i-1])) && (end == len(s) || isSep(s[end])) {
			return true
		}
		start = i + 1
	}
	return false
}

func isSep(b byte) bool {
	return b == '_' || b == '-' || b == '.' || b == ' '
}

// CheckInjective returns every sample that more than one patient id resolves to.
func (pm *PatientMatcher) CheckInjective(sampleNames []string) error {
	var errs []error
	for _, s := range sampleNames {
		if _, _, err := pm.Match(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AssignPatientID derives a patient id from the sample name alone.
func AssignPatientID(name string) (string, bool) {
	if strings.Contains(name, "INNOV") {
		return "", false
	}
	var base string
	switch {
	case strings.HasPrefix(name, "LOI") && strings.Count(name, "_") >= 2:
		base = strings.Split(name, "_")[1]
	case strings.Contains(name, "_"):
		base = strings.Split(name, "_")[0]
	default:
		return "", false
	}
	if i := strings.Index(base, "-MVS"); i >= 0 {
		base = base[:i]
	}
	return base, base != ""
}

func ExtractReplicate(name string) string {
	parts := strings.Split(name, "_")
	switch {
	case len(parts) > 2:
		return strings.Join(parts[2:], "_")
	case len(parts) == 2 && parts[1] != "Baseline" && parts[1] != "Off-tx":
		return parts[1]
	}
	return ""
}

// ---------------------------------------- Metadata ---------------------------------------- //

type Meta struct {
	Sample    string
	Patient   string
	Timepoint Timepoint
	Detailed  string
	Replicate string
}

type Key struct {
	Patient   string
	Timepoint string
}

func (k Key) String() string {
	return k.Patient + "|" + k.Timepoint
}

// BuildMetadata classifies every sample. A nil matcher falls back to
// AssignPatientID. Samples without a patient keep an empty Patient.
func BuildMetadata(sampleNames []string, pm *PatientMatcher) ([]Meta, error) {
	metas := make([]Meta, 0, len(sampleNames))
	var errs []error
	for _, s := range sampleNames {
		m := Meta{
			Sample:    s,
			Timepoint: Classify(s),
			Detailed:  ClassifyDetailed(s),
			Replicate: ExtractReplicate(s),
		}
		if pm != nil {
			pid, ok, err := pm.Match(s)
			if err != nil {
				errs = append(errs, err)
			} else if ok {
				m.Patient = pid
			}
		} else if pid, ok := AssignPatientID(s); ok {
			m.Patient = pid
		}
		metas = append(metas, m)
	}
	return metas, errors.Join(errs...)
}

// Valid drops samples without a patient and, unless keepHealthy, Healthy samples.
func Valid(metas []Meta, keepHealthy bool) []Meta {
	var out []Meta
	for _, m := range metas {
		if m.Timepoint == Healthy {
			if keepHealthy {
				out = append(out, m)
			}
			continue
		}
		if m.Patient == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Patients returns the distinct patients of metas in first-seen order.
func Patients(metas []Meta) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range metas {
		if m.Patient == "" || seen[m.Patient] {
			continue
		}
		seen[m.Patient] = true
		out = append(out, m.Patient)
	}
	return out
}
