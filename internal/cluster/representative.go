package cluster

import (
	"sort"
	"strconv"

	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/textproc"
)

// Categorize partitions one segment's documents into representatives and
// their suppressed near-duplicates. Three sequential passes over the same
// data, with per-document state in parallel arrays indexed by position:
//
//  1. Multiplicity: every pair above the similarity threshold counts one
//     absorbed hit on the earlier (smaller-identifier) member.
//  2. Centrality: every pair contributes its similarity score to both
//     members (self-pairs contribute 1.0); simultaneously the later member
//     of each above-threshold pair is marked as a duplicate.
//  3. Partition: duplicates get their centrality forced to zero, documents
//     are ranked descending by multiplicity times centrality, and split by
//     centrality into representatives and non-representatives.
func Categorize(docs []domain.ClusterDoc, threshold float64) domain.CategorizedDocs {
	n := len(docs)
	multiplicity := make([]int, n)
	centrality := make([]float64, n)
	duplicate := make([]bool, n)

	// Numeric ordering keys decide which side of a duplicate pair counts
	// as earlier. Non-numeric identifiers all key as zero, so among them
	// slice position breaks the tie.
	order := make([]int64, n)
	for i := range docs {
		order[i] = orderKey(docs[i].ID)
	}

	similarity := func(i, j int) float64 {
		return textproc.Ratio(docs[i].Text, docs[j].Text)
	}

	for i := range docs {
		multiplicity[i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if similarity(i, j) > threshold {
				if order[i] <= order[j] {
					multiplicity[i]++
				} else {
					multiplicity[j]++
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		centrality[i] += 1.0
		for j := i + 1; j < n; j++ {
			sim := similarity(i, j)
			centrality[i] += sim
			centrality[j] += sim

			if sim > threshold {
				if order[i] <= order[j] {
					duplicate[j] = true
				} else {
					duplicate[i] = true
				}
			}
		}
	}

	ranked := make([]domain.RankedDoc, n)
	for i, doc := range docs {
		c := centrality[i]
		if duplicate[i] {
			c = 0.0
		}
		ranked[i] = domain.RankedDoc{
			ClusterDoc:   doc,
			Multiplicity: multiplicity[i],
			Centrality:   c,
		}
	}

	// Rank by the full floating-point product. Truncating centrality to an
	// integer would collapse most values to zero and degenerate the order
	// to multiplicity alone.
	sort.SliceStable(ranked, func(i, j int) bool {
		return float64(ranked[i].Multiplicity)*ranked[i].Centrality >
			float64(ranked[j].Multiplicity)*ranked[j].Centrality
	})

	var out domain.CategorizedDocs
	for _, doc := range ranked {
		if doc.Centrality > 0.0 {
			out.RepresentativeDocs = append(out.RepresentativeDocs, doc)
		} else {
			out.NonRepresentativeDocs = append(out.NonRepresentativeDocs, doc)
		}
	}
	return out
}

// CategorizeDocs adapts a cluster's collected documents for Categorize,
// comparing their aggressively normalized text.
func CategorizeDocs(docs []Doc, threshold float64) domain.CategorizedDocs {
	converted := make([]domain.ClusterDoc, 0, len(docs))
	for _, doc := range docs {
		text := doc.NormalizedText
		if text == "" {
			text = textproc.NormalizeAggressive(doc.Text)
		}
		converted = append(converted, domain.ClusterDoc{
			ID:   doc.ID,
			Text: text,
		})
	}
	return Categorize(converted, threshold)
}

// orderKey parses a numeric document identifier for duplicate-direction
// ordering. Non-numeric identifiers order as zero.
func orderKey(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
