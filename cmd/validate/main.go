// Command validate performs integrity checks on the intermediate tables of a
// data directory: extracted wide tables and aggregated summaries. It verifies
// table shapes, grid alignment of indexes, vector component pairing and the
// value domain of count columns.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/columnar"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory holding extracted and aggregated tables")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir); code != 0 {
		os.Exit(code)
	}
}

type wideRef struct {
	v     domain.Variable
	year  int
	month int
}

type summaryRef struct {
	g     domain.Group
	label string
	month int
}

func run(dataDir string) int {
	fmt.Println("=== Climate Table Integrity Validation ===")
	fmt.Println()

	store, err := columnar.New(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open data dir: %v\n", err)
		return 1
	}
	wides, summaries, err := scan(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: scan data dir: %v\n", err)
		return 1
	}

	ctx := context.Background()
	tables := make(map[wideRef]*domain.WideTable, len(wides))
	load := &phase{name: "Load"}
	for _, ref := range wides {
		t, err := store.LoadWide(ctx, ref.v, ref.year, ref.month)
		if err != nil {
			load.errorf("%s %d-%d: %v", ref.v, ref.year, ref.month, err)
			continue
		}
		tables[ref] = t
	}
	sums := make(map[summaryRef]*domain.Summary, len(summaries))
	for _, ref := range summaries {
		s, err := store.LoadSummary(ctx, ref.g, ref.label, ref.month)
		if err != nil {
			load.errorf("%s %s-%d: %v", ref.g, ref.label, ref.month, err)
			continue
		}
		sums[ref] = s
	}

	phases := []*phase{
		load,
		validateWideTables(tables),
		validateVectorPairs(tables),
		validateSummaries(sums),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Tables: %d extracted, %d aggregated\n", len(wides), len(summaries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-i)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

// scan lists the table files of dir by parsing their names.
func scan(dir string) ([]wideRef, []summaryRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	var wides []wideRef
	var sums []summaryRef
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), "."+columnar.Ext)
		if !ok || e.IsDir() {
			continue
		}
		if rest, ok := strings.CutPrefix(name, "extracted_"); ok {
			ref, err := parseWideName(rest)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", filepath.Join(dir, e.Name()), err)
			}
			wides = append(wides, ref)
		}
		if rest, ok := strings.CutPrefix(name, "aggregated_"); ok {
			ref, err := parseSummaryName(rest)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", filepath.Join(dir, e.Name()), err)
			}
			sums = append(sums, ref)
		}
	}
	return wides, sums, nil
}

// parseWideName parses "{variable}_{year}-{month}".
func parseWideName(s string) (wideRef, error) {
	i := strings.LastIndex(s, "_")
	if i < 0 {
		return wideRef{}, fmt.Errorf("unexpected name %q", s)
	}
	v, err := domain.ParseVariable(s[:i])
	if err != nil {
		return wideRef{}, err
	}
	ys, ms, ok := strings.Cut(s[i+1:], "-")
	if !ok {
		return wideRef{}, fmt.Errorf("unexpected name %q", s)
	}
	year, err := strconv.Atoi(ys)
	if err != nil {
		return wideRef{}, err
	}
	month, err := strconv.Atoi(ms)
	if err != nil {
		return wideRef{}, err
	}
	return wideRef{v: v, year: year, month: month}, nil
}

// parseSummaryName parses "{group}_{label}-{month}"; labels may hold a dash.
func parseSummaryName(s string) (summaryRef, error) {
	gs, rest, ok := strings.Cut(s, "_")
	if !ok {
		return summaryRef{}, fmt.Errorf("unexpected name %q", s)
	}
	g, err := domain.ParseGroup(gs)
	if err != nil {
		return summaryRef{}, err
	}
	i := strings.LastIndex(rest, "-")
	if i < 0 {
		return summaryRef{}, fmt.Errorf("unexpected name %q", s)
	}
	month, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return summaryRef{}, err
	}
	return summaryRef{g: g, label: rest[:i], month: month}, nil
}

// ── Phases ──

func validateWideTables(tables map[wideRef]*domain.WideTable) *phase {
	p := &phase{name: "Extracted tables"}
	for ref, t := range tables {
		if err := t.Validate(); err != nil {
			p.errorf("%v", err)
			continue
		}
		checkIndex(p, fmt.Sprintf("%s %d-%d", ref.v, ref.year, ref.month), t.Index)
		seen := make(map[domain.ColumnKey]bool, len(t.Columns))
		for _, k := range t.Columns {
			if seen[k] {
				p.errorf("%s %d-%d: duplicate column %v", ref.v, ref.year, ref.month, k)
			}
			seen[k] = true
		}
	}
	return p
}

func validateVectorPairs(tables map[wideRef]*domain.WideTable) *phase {
	p := &phase{name: "Vector component pairing"}
	for _, g := range []domain.Group{domain.GroupWind, domain.GroupCurrent} {
		vars := g.Variables()
		for ref, u := range tables {
			if ref.v != vars[0] {
				continue
			}
			v, ok := tables[wideRef{v: vars[1], year: ref.year, month: ref.month}]
			if !ok {
				p.errorf("%s %d-%d: %s has no %s partner", g, ref.year, ref.month, vars[0], vars[1])
				continue
			}
			if err := u.AlignedWith(v); err != nil {
				p.errorf("%s %d-%d: %v", g, ref.year, ref.month, err)
			}
		}
	}
	return p
}

func validateSummaries(sums map[summaryRef]*domain.Summary) *phase {
	p := &phase{name: "Aggregated summaries"}
	for ref, s := range sums {
		name := fmt.Sprintf("%s %s-%d", ref.g, ref.label, ref.month)
		if err := s.Validate(); err != nil {
			p.errorf("%v", err)
			continue
		}
		if _, err := domain.ParseTimeRange(ref.label); err != nil {
			p.errorf("%s: %v", name, err)
		}
		checkIndex(p, name, s.Index)
		for c, col := range s.Columns {
			if !isCountColumn(col) {
				continue
			}
			for r, v := range s.Values[c] {
				if v < 0 || v != math.Trunc(v) {
					p.errorf("%s: count column %q at %s holds %g", name, col, s.Index[r], v)
					break
				}
			}
		}
	}
	return p
}

// ── Helpers ──

func checkIndex(p *phase, name string, index []domain.Position) {
	if !slices.IsSortedFunc(index, domain.ComparePositions) {
		p.errorf("%s: index not sorted", name)
	}
	for i, pos := range index {
		if i > 0 && index[i-1] == pos {
			p.errorf("%s: duplicate position %s", name, pos)
		}
		if pos != domain.NewPosition(pos.Lon, pos.Lat) {
			p.errorf("%s: position %s is off the grid", name, pos)
		}
		if !domain.WorldBounds.Contains(pos) {
			p.errorf("%s: position %s outside the processed grid", name, pos)
		}
	}
}

// isCountColumn reports whether a summary column holds class counts: "3" or "5|2".
func isCountColumn(col string) bool {
	for part := range strings.SplitSeq(col, "|") {
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return true
}
