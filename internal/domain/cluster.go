package domain

// Segment is one flattened aggregation bucket combination: one value per
// grouping term. Geo segments instead carry the four corner keys of their
// grid cell (top_left_lat, top_left_lon, bottom_right_lat,
// bottom_right_lon) plus the secondary term values. A segment doubles as a
// filter overlay for re-querying its exact member documents.
type Segment map[string]any

// Clone returns a shallow copy of the segment.
func (s Segment) Clone() Segment {
	out := make(Segment, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ClusterDoc is one document of a segment as consumed by representative
// selection: its engine identifier and normalized text. The identifier
// stays a string end-to-end; a numeric ordering key is derived from it
// only where duplicate direction has to be decided.
type ClusterDoc struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RankedDoc is a ClusterDoc annotated with the duplicate statistics
// computed during representative selection.
type RankedDoc struct {
	ClusterDoc
	// Multiplicity counts the near-duplicates this document absorbed,
	// itself included.
	Multiplicity int
	// Centrality is the sum of pairwise similarity scores against every
	// document in the segment, zeroed for detected duplicates.
	Centrality float64
}

// CategorizedDocs is the partition of one segment's documents into
// representatives and their suppressed near-duplicates. Both slices keep
// the descending multiplicity-times-centrality ranking.
type CategorizedDocs struct {
	RepresentativeDocs    []RankedDoc `json:"representative_docs"`
	NonRepresentativeDocs []RankedDoc `json:"non_representative_docs"`
}
