package packager

import (
	"context"
	"fmt"
	"slices"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// CheckReport lists the differences between the expected and published keys.
type CheckReport struct {
	Expected   int      `json:"expected"`
	Found      int      `json:"found"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
}

// ExpectedKeys lists every object key a complete publication of the given
// labels and months holds within bounds.
func ExpectedKeys(version string, labels []string, months []int, bounds domain.Bounds) []string {
	cells := bounds.Cells()
	out := make([]string, 0, len(labels)*len(months)*len(cells))
	for _, label := range labels {
		for _, month := range months {
			for _, c := range cells {
				out = append(out, domain.ObjectKey(version, label, month, c))
			}
		}
	}
	return out
}

// Reconcile diffs the keys stored under the version prefix against the
// expected set. Missing keys can be fed back to Package via Options.OnlyKeys.
func Reconcile(ctx context.Context, gw Gateway, version string, labels []string, months []int, bounds domain.Bounds) (CheckReport, error) {
	actual, err := gw.ListKeys(ctx, domain.ObjectPrefix(version))
	if err != nil {
		return CheckReport{}, fmt.Errorf("reconcile %s: %w", version, err)
	}
	expected := ExpectedKeys(version, labels, months, bounds)

	want := make(map[string]bool, len(expected))
	for _, k := range expected {
		want[k] = true
	}
	have := make(map[string]bool, len(actual))
	for _, k := range actual {
		have[k] = true
	}

	report := CheckReport{Expected: len(want), Found: len(have)}
	for k := range want {
		if !have[k] {
			report.Missing = append(report.Missing, k)
		}
	}
	for k := range have {
		if !want[k] {
			report.Unexpected = append(report.Unexpected, k)
		}
	}
	slices.Sort(report.Missing)
	slices.Sort(report.Unexpected)
	return report, nil
}

// Check reconciles the packager's version and bounds.
func (p *Packager) Check(ctx context.Context, labels []string, months []int) (CheckReport, error) {
	report, err := Reconcile(ctx, p.gw, p.cfg.Version, labels, months, p.cfg.Bounds)
	if err != nil {
		return report, err
	}
	p.logger.Info("publication checked",
		"version", p.cfg.Version,
		"expected", report.Expected,
		"missing", len(report.Missing),
		"unexpected", len(report.Unexpected),
	)
	return report, nil
}
