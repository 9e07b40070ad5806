package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/config"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/packager"
)

var commands = map[string]bool{
	"extract": true, "aggregate": true, "package": true, "check": true, "run": true, "serve": true,
}

// options are the per-command flags. They narrow the environment settings.
type options struct {
	timeRange string
	variables string
	keys      []string
	merge     bool
	groups    []domain.Group
}

func parseFlags(command string, args []string) (*options, error) {
	if !commands[command] {
		return nil, fmt.Errorf("unknown command %q", command)
	}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	timeRange := fs.String("timerange", "", "only process this time range label, e.g. 2016-2020")
	variables := fs.String("variables", "", "comma-separated variables, overrides VARIABLES")
	keys := fs.String("keys", "", "package: comma-separated object keys, or @file with one key per line")
	merge := fs.Bool("merge", false, "package: overlay categories onto existing objects")
	groups := fs.String("groups", "", "package: comma-separated categories to publish, requires -merge")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{timeRange: *timeRange, variables: *variables, merge: *merge}

	var err error
	if opts.keys, err = parseKeys(*keys); err != nil {
		return nil, err
	}
	for _, s := range splitList(*groups) {
		g, err := domain.ParseGroup(s)
		if err != nil {
			return nil, err
		}
		opts.groups = append(opts.groups, g)
	}
	if len(opts.groups) > 0 && !opts.merge {
		return nil, fmt.Errorf("-groups requires -merge")
	}
	return opts, nil
}

// apply narrows cfg to the flags.
func (o *options) apply(cfg *config.Config) error {
	if o.variables != "" {
		var vars []domain.Variable
		for _, s := range splitList(o.variables) {
			v, err := domain.ParseVariable(s)
			if err != nil {
				return err
			}
			vars = append(vars, v)
		}
		cfg.Variables = vars
	}
	if o.timeRange != "" {
		for _, tr := range cfg.TimeRanges {
			if tr.Label == o.timeRange {
				cfg.TimeRanges = []domain.TimeRange{tr}
				return nil
			}
		}
		tr, err := domain.ParseTimeRange(o.timeRange)
		if err != nil {
			return err
		}
		cfg.TimeRanges = []domain.TimeRange{tr}
	}
	return nil
}

func (o *options) packageOptions() packager.Options {
	return packager.Options{OnlyKeys: o.keys, Merge: o.merge, Groups: o.groups}
}

func parseKeys(raw string) ([]string, error) {
	path, ok := strings.CutPrefix(raw, "@")
	if !ok {
		return splitList(raw), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys = append(keys, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	return keys, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
