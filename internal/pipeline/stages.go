package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/packager"
)

// Extract builds the wide table of every configured variable, year and
// month. The two components of a vector group are read together so they
// share one index.
func (p *Pipeline) Extract(ctx context.Context) (domain.RunReport, error) {
	var units []unit
	for _, year := range p.cfg.Years {
		for _, month := range p.cfg.Months {
			for _, set := range extractionSets(p.cfg.Variables) {
				units = append(units, unit{
					name: fmt.Sprintf("%s/%d-%d", set.name(), year, month),
					run: func(ctx context.Context) error {
						return p.extractSet(ctx, set, year, month)
					},
				})
			}
		}
	}
	return p.runUnits(ctx, domain.StageExtract, units)
}

// extractionSet is a single variable or the (u, v) pair of a vector group.
type extractionSet struct {
	group domain.Group // set only for vector pairs
	vars  []domain.Variable
}

func (s extractionSet) name() string {
	if s.group != "" {
		return string(s.group)
	}
	return string(s.vars[0])
}

func extractionSets(vars []domain.Variable) []extractionSet {
	have := make(map[domain.Variable]bool, len(vars))
	for _, v := range vars {
		have[v] = true
	}
	paired := make(map[domain.Variable]bool)
	var sets []extractionSet
	for _, g := range []domain.Group{domain.GroupWind, domain.GroupCurrent} {
		gv := g.Variables()
		if have[gv[0]] && have[gv[1]] {
			sets = append(sets, extractionSet{group: g, vars: gv})
			paired[gv[0]], paired[gv[1]] = true, true
		}
	}
	for _, v := range vars {
		if !paired[v] {
			sets = append(sets, extractionSet{vars: []domain.Variable{v}})
		}
	}
	return sets
}

func (p *Pipeline) extractSet(ctx context.Context, set extractionSet, year, month int) (err error) {
	streams := make([]interface{ Close() error }, 0, len(set.vars))
	defer func() {
		for _, s := range streams {
			err = errors.Join(err, s.Close())
		}
	}()

	if set.group != "" {
		su, err := p.opener.Open(ctx, set.vars[0], year, month)
		if err != nil {
			return err
		}
		streams = append(streams, su)
		sv, err := p.opener.Open(ctx, set.vars[1], year, month)
		if err != nil {
			return err
		}
		streams = append(streams, sv)

		u, v, err := p.extractor.ExtractVector(ctx, su, sv, set.group, year, month)
		if err != nil {
			return err
		}
		return p.saveWide(ctx, u, v)
	}

	s, err := p.opener.Open(ctx, set.vars[0], year, month)
	if err != nil {
		return err
	}
	streams = append(streams, s)
	t, err := p.extractor.Extract(ctx, s, set.vars[0], year, month)
	if err != nil {
		return err
	}
	return p.saveWide(ctx, t)
}

func (p *Pipeline) saveWide(ctx context.Context, tables ...*domain.WideTable) error {
	for _, t := range tables {
		if err := p.tables.SaveWide(ctx, t); err != nil {
			return err
		}
		p.metrics.TablesExtracted.WithLabelValues(string(t.Variable)).Inc()
	}
	return nil
}

// Aggregate reduces every derivable group over each time range and month.
func (p *Pipeline) Aggregate(ctx context.Context) (domain.RunReport, error) {
	var units []unit
	for _, g := range domain.GroupsFor(p.cfg.Variables) {
		for _, tr := range p.cfg.TimeRanges {
			for _, month := range p.cfg.Months {
				units = append(units, unit{
					name: fmt.Sprintf("%s/%s-%d", g, tr.Label, month),
					run: func(ctx context.Context) error {
						s, err := p.aggregator.Aggregate(ctx, g, tr, month)
						if err != nil {
							return err
						}
						if err := p.tables.SaveSummary(ctx, s); err != nil {
							return err
						}
						p.metrics.SummariesWritten.WithLabelValues(string(g)).Inc()
						return nil
					},
				})
			}
		}
	}
	return p.runUnits(ctx, domain.StageAggregate, units)
}

// Package publishes the objects of every time range and month. Each
// (label, month) batch completes before the next starts; the packager
// bounds the writes within a batch. When the configured variables cover only
// some groups and opts names none, those groups are merged into the existing
// objects.
func (p *Pipeline) Package(ctx context.Context, opts packager.Options) (domain.RunReport, error) {
	report := p.newReport(domain.StagePackage)

	if len(opts.Groups) == 0 {
		if groups := domain.GroupsFor(p.cfg.Variables); len(groups) < len(domain.AllGroups) {
			opts.Groups = groups
			opts.Merge = true
		}
	}

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var err error
	for _, tr := range p.cfg.TimeRanges {
		for _, month := range p.cfg.Months {
			name := fmt.Sprintf("%s-%d", tr.Label, month)
			report.Units++

			start := domain.Now()
			pr, perr := p.packager.Package(ctx, tr.Label, month, opts)
			p.metrics.UnitDuration.WithLabelValues(string(domain.StagePackage)).Observe(domain.Since(start).Seconds())
			report.ObjectsWritten += pr.Written
			report.ObjectsFailed = append(report.ObjectsFailed, pr.Failed...)

			if perr != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
					break
				}
				p.metrics.UnitErrors.WithLabelValues(string(domain.StagePackage)).Inc()
				p.logger.Error("unit failed", "stage", domain.StagePackage, "unit", name, "error", perr)
				report.Failures = append(report.Failures, domain.UnitFailure{Unit: name, Error: perr.Error()})
				continue
			}
			if pr.Written > 0 {
				p.ready.Store(true)
			}
		}
		if err != nil {
			break
		}
	}
	slices.Sort(report.ObjectsFailed)

	p.finish(ctx, &report)
	return report, err
}

// Check reconciles published keys against the expected layout.
func (p *Pipeline) Check(ctx context.Context) (domain.RunReport, error) {
	report := p.newReport(domain.StageCheck)
	report.Units = 1

	labels := make([]string, len(p.cfg.TimeRanges))
	for i, tr := range p.cfg.TimeRanges {
		labels[i] = tr.Label
	}

	cr, err := p.packager.Check(ctx, labels, p.cfg.Months)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		p.metrics.UnitErrors.WithLabelValues(string(domain.StageCheck)).Inc()
		report.Failures = append(report.Failures, domain.UnitFailure{Unit: "check", Error: err.Error()})
	} else {
		report.Missing = cr.Missing
		report.Unexpected = cr.Unexpected
		p.ready.Store(true)
	}

	p.finish(ctx, &report)
	return report, nil
}
