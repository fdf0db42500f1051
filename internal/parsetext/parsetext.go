// Package parsetext parses the comma-separated textual form tuples and
// queries are given in on the command line: value_0,value_1,...,value_{n-1},
// where a bare "?" stands for a wildcard attribute in a query.
package parsetext

import (
	"github.com/rpcpool/relstore/internal/relerr"
	"github.com/rpcpool/relstore/internal/tuple"
)

// Tuple parses s into a fully-concrete tuple.Tuple; "?" is rejected here
// (wildcards are only meaningful in a query, not in data being inserted).
func Tuple(s string, numAttrs int) (tuple.Tuple, error) {
	fields := splitFields(s)
	if len(fields) != numAttrs {
		return nil, &relerr.ParseError{Reason: relerr.ReasonAttributeCountMismatch, Detail: s}
	}
	t := make(tuple.Tuple, len(fields))
	for i, f := range fields {
		if f == "?" {
			return nil, &relerr.ParseError{Reason: relerr.ReasonMalformedEntry, Detail: "wildcard not allowed in a tuple: " + s}
		}
		t[i] = []byte(f)
	}
	return t, nil
}

// Query parses s into a query tuple: "?" fields become nil (wildcard),
// everything else becomes a concrete attribute value to match.
func Query(s string, numAttrs int) (tuple.Tuple, error) {
	fields := splitFields(s)
	if len(fields) != numAttrs {
		return nil, &relerr.ParseError{Reason: relerr.ReasonAttributeCountMismatch, Detail: s}
	}
	q := make(tuple.Tuple, len(fields))
	for i, f := range fields {
		if f == "?" {
			continue
		}
		q[i] = []byte(f)
	}
	return q, nil
}

// splitFields splits on commas without treating an empty input specially
// beyond the natural strings.Split behavior: "" splits to one empty field,
// matching a single-attribute relation's empty-value tuples.
func splitFields(s string) []string {
	fields := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			fields = append(fields, s[start:i])
			start = i + 1
		}
	}
	fields = append(fields, s[start:])
	return fields
}
