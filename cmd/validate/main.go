// Command validate checks a JSON-lines file of monthly metric records before
// it is replayed into the ingestion topic. It runs the same parsing and
// validation the pipeline does, then looks for problems the pipeline would
// accept silently: duplicate keys, gaps in a district's months and districts
// with no data at all.
//
// Usage:
//
//	go run ./cmd/validate -in data/mock/metrics.jsonl
//	go run ./cmd/validate -in metrics.jsonl -districts districts.json -strict
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
)

// maxLine caps a single JSON record.
const maxLine = 1 << 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	advisory bool
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// line is one parsed record and where it came from.
type line struct {
	num    int
	metric domain.MonthlyMetric
}

func main() {
	in := flag.String("in", "", "JSON-lines file of monthly metric records, - for stdin")
	catalog := flag.String("districts", "", "district catalog JSON (default embedded catalog)")
	strict := flag.Bool("strict", false, "fail on month gaps and missing districts too")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*in, *catalog, *strict))
}

func run(inPath, catalogPath string, strict bool) int {
	fmt.Println("=== Monthly Metrics Validation ===")
	fmt.Println()

	reg, err := registry.Load(registry.Options{
		CatalogFile: catalogPath,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load districts: %v\n", err)
		return 1
	}

	r, closeFn, err := open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open input: %v\n", err)
		return 1
	}
	defer closeFn()

	parsed, parsePhase, total, err := parseLines(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read input: %v\n", err)
		return 1
	}

	phases := []*phase{
		parsePhase,
		validateRegistry(parsed, reg),
		validateDuplicates(parsed),
		validateContinuity(parsed, !strict),
		validateCoverage(parsed, reg, !strict),
	}

	fmt.Println()
	failed := false
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.passed():
		case p.advisory:
			status = fmt.Sprintf("\033[33mWARN (%d)\033[0m", len(p.errors))
		default:
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			failed = true
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d lines, %d valid, %d districts in catalog\n", total, len(parsed), reg.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if failed {
		fmt.Println("\nValidation FAILED.")
		return 1
	}
	fmt.Println("\nAll validations passed.")
	return 0
}

func open(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// parseLines decodes every non-blank line with the pipeline's parser.
// Records without timestamps are stamped with a fixed time so runs stay
// comparable.
func parseLines(r io.Reader) ([]line, *phase, int, error) {
	clock := clockwork.NewFakeClockAt(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC))
	p := &phase{name: "Parse and field validation"}
	var out []line

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	num, total := 0, 0
	for sc.Scan() {
		num++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		total++
		m, err := domain.ParseRawRecord(domain.RawRecord{Value: raw}, clock)
		if err != nil {
			p.errorf("line %d: %v", num, err)
			continue
		}
		out = append(out, line{num: num, metric: m})
	}
	return out, p, total, sc.Err()
}

func validateRegistry(lines []line, reg *registry.Registry) *phase {
	p := &phase{name: "District codes in catalog"}
	for _, l := range lines {
		if !reg.Contains(l.metric.DistrictCode) {
			p.errorf("line %d: %v", l.num, domain.UnknownDistrict(l.metric.DistrictCode))
		}
	}
	return p
}

// validateDuplicates flags repeated (district, month) keys. The store keeps
// whichever carries the later ingested_at, so equal timestamps are ambiguous.
func validateDuplicates(lines []line) *phase {
	p := &phase{name: "Unique district/month keys"}
	seen := make(map[string]line, len(lines))
	for _, l := range lines {
		key := l.metric.DistrictCode + "/" + l.metric.Month.String()
		if first, ok := seen[key]; ok {
			p.errorf("%s: lines %d and %d", key, first.num, l.num)
			continue
		}
		seen[key] = l
	}
	return p
}

func validateContinuity(lines []line, advisory bool) *phase {
	p := &phase{name: "Consecutive months per district", advisory: advisory}
	for code, months := range monthsByDistrict(lines) {
		for i := 1; i < len(months); i++ {
			if want := months[i-1].AddMonths(1); months[i] != want && months[i] != months[i-1] {
				p.errorf("%s: gap between %s and %s", code, months[i-1], months[i])
			}
		}
	}
	slices.Sort(p.errors)
	return p
}

func validateCoverage(lines []line, reg *registry.Registry, advisory bool) *phase {
	p := &phase{name: "Every catalog district has data", advisory: advisory}
	have := monthsByDistrict(lines)
	for _, d := range reg.List() {
		if len(have[d.Code]) == 0 {
			p.errorf("%s (%s): no records", d.Code, d.Name)
		}
	}
	return p
}

func monthsByDistrict(lines []line) map[string][]domain.Month {
	out := make(map[string][]domain.Month)
	for _, l := range lines {
		out[l.metric.DistrictCode] = append(out[l.metric.DistrictCode], l.metric.Month)
	}
	for _, months := range out {
		slices.SortFunc(months, func(a, b domain.Month) int {
			switch {
			case a.Before(b):
				return -1
			case b.Before(a):
				return 1
			default:
				return 0
			}
		})
	}
	return out
}
