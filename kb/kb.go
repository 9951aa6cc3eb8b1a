// Package kb wraps the vector knowledge base: text query in, ranked item
// document references out.
package kb

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// Result is one scored knowledge-base hit. Location is the URI of the item
// document the hit came from; its path basename (sans extension) is the
// catalog identifier.
type Result struct {
	RefID    string
	Score    float32
	Location string
}

// ResultSetKind discriminates the retrieval outcome variants, replacing
// runtime type inspection of "one object or a list".
type ResultSetKind int

const (
	ResultSetEmpty ResultSetKind = iota
	ResultSetSingle
	ResultSetMany
)

// ResultSet is the tagged retrieval outcome. Results preserve the knowledge
// base's relevance ordering.
type ResultSet struct {
	Kind    ResultSetKind
	Results []Result
}

// NewResultSet builds a ResultSet, deriving the kind from the hit count.
func NewResultSet(results []Result) ResultSet {
	switch len(results) {
	case 0:
		return ResultSet{Kind: ResultSetEmpty}
	case 1:
		return ResultSet{Kind: ResultSetSingle, Results: results}
	default:
		return ResultSet{Kind: ResultSetMany, Results: results}
	}
}

// Retriever issues a text query against the knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (ResultSet, error)
}

// ExtractIdentifiers maps a result set to the ordered catalog identifiers of
// its hits. Total over all variants: empty set yields an empty slice.
func ExtractIdentifiers(set ResultSet) []string {
	if set.Kind == ResultSetEmpty {
		return []string{}
	}

	identifiers := make([]string, 0, len(set.Results))
	for _, r := range set.Results {
		identifiers = append(identifiers, IdentifierFromLocation(r.Location))
	}
	return identifiers
}

// IdentifierFromLocation derives the catalog identifier from a document
// location: the path basename with the last extension stripped. Ingestion
// names every per-item document `<identifier>.<ext>`, so no lookup table is
// needed to map hits back to the catalog.
func IdentifierFromLocation(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
