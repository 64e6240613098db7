package search

import (
	"strings"
)

// StrategyKind names a query reformulation.
type StrategyKind string

// Strategy kinds, in merge priority order.
const (
	StrategyExact     StrategyKind = "exact"
	StrategyBroadened StrategyKind = "broadened"
	StrategyCategory  StrategyKind = "category_only"
)

// Strategy is one reformulated query issued to the backend.
type Strategy struct {
	Kind  StrategyKind `json:"kind"`
	Query string       `json:"query"`
}

// Strategies derives up to three backend queries from a user query:
//
//	exact          "{query} in {location}"
//	broadened      narrow term replaced by its category, "near {location}"
//	category_only  "{category} in {location}"
//
// The broadened and category-only forms are omitted when the table
// recognizes no narrow term. Identical derived strings are issued once, in
// the order above.
func Strategies(query, location string, table *BroadeningTable) []Strategy {
	query = strings.Join(strings.Fields(query), " ")
	location = strings.Join(strings.Fields(location), " ")
	if query == "" {
		return nil
	}

	out := []Strategy{{Kind: StrategyExact, Query: withLocation(query, "in", location)}}

	m, ok := table.Lookup(query)
	if !ok || strings.Contains(strings.ToLower(query), strings.ToLower(m.Category)) {
		return out
	}

	add := func(kind StrategyKind, q string) {
		for _, s := range out {
			if strings.EqualFold(s.Query, q) {
				return
			}
		}
		out = append(out, Strategy{Kind: kind, Query: q})
	}
	add(StrategyBroadened, withLocation(m.Replace(query), "near", location))
	add(StrategyCategory, withLocation(m.Category, "in", location))
	return out
}

func withLocation(q, prep, location string) string {
	if location == "" {
		return q
	}
	return q + " " + prep + " " + location
}
