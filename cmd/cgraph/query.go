// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/viant/cgraph/pkg/query"
)

// runQuery builds the repository over <path>, runs one query against it,
// and prints the result as a table, JSON, or YAML.
func runQuery(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to .cgraph/project.yaml")
	from := fs.String("from", "functions", "Source: functions|modules|cpg_nodes")
	wheres := fs.StringArray("where", nil, `Predicate "field:op:value", repeatable`)
	orderBys := fs.StringArray("order-by", nil, `"field:asc|desc", repeatable`)
	selectFields := fs.StringArray("select", nil, "Fields to project (default: all)")
	limit := fs.Int("limit", 0, "Max results (0 = unlimited)")
	offset := fs.Int("offset", 0, "Results to skip after ordering")
	callersOf := fs.String("callers-of", "", `Sugar for --where "callers_of:eq:<module:name/arity>"`)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cgraph query <path> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	root, err := rootArg(fs)
	if err != nil {
		return err
	}

	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(globals)
	repo, _, err := buildRepository(context.Background(), root, cfg, logger, globals)
	if err != nil {
		return err
	}
	defer repo.Close()

	spec, err := buildSpec(*from, *wheres, *orderBys, *selectFields, *limit, *offset, *callersOf)
	if err != nil {
		return err
	}

	var records []query.Record
	switch spec.From {
	case query.SourceModules:
		records, err = repo.QueryModules(spec)
	case query.SourceCPGNodes:
		records, err = repo.QueryCPGNodes(context.Background(), spec, query.DefaultPatternMatchOptions())
	default:
		records, err = repo.QueryFunctions(spec)
	}
	if err != nil {
		return err
	}
	return printRecords(records, globals)
}

func buildSpec(from string, wheres, orderBys, selectFields []string, limit, offset int, callersOf string) (query.Spec, error) {
	var b *query.Builder
	switch from {
	case "functions":
		b = query.FindFunctions()
	case "modules":
		b = query.FindModules()
	case "cpg_nodes":
		b = query.FindCPGNodes()
	default:
		return query.Spec{}, fmt.Errorf("query: unknown --from %q", from)
	}

	for _, w := range wheres {
		parts := strings.SplitN(w, ":", 3)
		if len(parts) != 3 {
			return query.Spec{}, fmt.Errorf("query: --where %q must be field:op:value", w)
		}
		b.Where(parts[0], query.Operator(parts[1]), parseValue(parts[2]))
	}
	for _, o := range orderBys {
		parts := strings.SplitN(o, ":", 2)
		dir := "asc"
		if len(parts) == 2 {
			dir = parts[1]
		}
		b.OrderBy(parts[0], dir)
	}
	if callersOf != "" {
		b.CallersOf(callersOf)
	}
	if len(selectFields) > 0 {
		b.Select(selectFields...)
	}
	if limit > 0 {
		b.Limit(limit)
	}
	if offset > 0 {
		b.Offset(offset)
	}

	spec := b.Build()
	if err := spec.Validate(); err != nil {
		return query.Spec{}, err
	}
	return spec, nil
}

// parseValue coerces a CLI string predicate value to an int/float when it
// parses cleanly, so numeric comparisons (gt/gte/lt/lte) work as expected.
func parseValue(raw string) interface{} {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	return raw
}

func printRecords(records []query.Record, globals GlobalFlags) error {
	// "_record" is an internal escape hatch back to the repository's own
	// struct (see pkg/repository/query.go); never surface it to a CLI user.
	clean := make([]query.Record, len(records))
	for i, r := range records {
		c := make(query.Record, len(r))
		for k, v := range r {
			if k == "_record" {
				continue
			}
			c[k] = v
		}
		clean[i] = c
	}

	switch {
	case globals.JSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(clean)
	case globals.YAML:
		data, err := yaml.Marshal(clean)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		printTable(clean)
		return nil
	}
}

func printTable(records []query.Record) {
	if len(records) == 0 {
		fmt.Println(colorDim("(no results)"))
		return
	}
	for i, r := range records {
		if i > 0 {
			fmt.Println(strings.Repeat("-", 40))
		}
		for _, k := range sortedKeys(r) {
			fmt.Printf("%-24s %v\n", k+":", r[k])
		}
	}
}

func sortedKeys(r query.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
