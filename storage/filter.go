package storage

import (
	"strconv"
	"strings"

	"todo-api/domain"
)

// maxFilterTerms keeps OData filters under the service limit of 15
// comparisons once the partition clause is added.
const maxFilterTerms = 10

// quote renders v as an OData string literal.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func eq(prop, value string) string {
	return prop + " eq " + quote(value)
}

// todoFilter builds the server side part of a todo query. Only predicates the
// table service can evaluate are pushed down; the rest is applied in memory.
func todoFilter(ownerID string, f domain.TodoFilter) string {
	parts := []string{eq("PartitionKey", ownerID)}
	if f.Priority != nil {
		parts = append(parts, eq("Priority", string(*f.Priority)))
	}
	if f.Completed != nil {
		parts = append(parts, "Completed eq "+strconv.FormatBool(*f.Completed))
	}
	return strings.Join(parts, " and ")
}

// anyOf returns one filter per chunk of values, each matching prop against
// any value in the chunk within partition pk.
func anyOf(pk, prop string, values []string) []string {
	var filters []string
	for start := 0; start < len(values); start += maxFilterTerms {
		end := start + maxFilterTerms
		if end > len(values) {
			end = len(values)
		}
		terms := make([]string, 0, end-start)
		for _, v := range values[start:end] {
			terms = append(terms, eq(prop, v))
		}
		filters = append(filters, eq("PartitionKey", pk)+" and ("+strings.Join(terms, " or ")+")")
	}
	return filters
}

// prefixRange matches row keys starting with prefix.
func prefixRange(pk, prefix string) string {
	upper := prefix[:len(prefix)-1] + string(prefix[len(prefix)-1]+1)
	return eq("PartitionKey", pk) + " and RowKey ge " + quote(prefix) + " and RowKey lt " + quote(upper)
}
