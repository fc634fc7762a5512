package domain

// AbstractPlaceholder is the abstract recorded for sources that expose no
// abstract in their list view.
const AbstractPlaceholder = "Abstract not available in list view"

// Paper is the normalized record every paper source produces.
// Papers are treated as immutable once created; use WithReason to attach a
// recommendation.
type Paper struct {
	// Title is the paper title. Never empty.
	Title string `json:"title"`

	// Authors lists author names in publication order.
	Authors []string `json:"authors"`

	// Abstract is the paper abstract or AbstractPlaceholder.
	Abstract string `json:"abstract"`

	// Keywords are author- or source-supplied keywords.
	Keywords []string `json:"keywords"`

	// Link is the canonical, source-specific URL. It identifies the paper
	// when merging results.
	Link string `json:"link"`

	// PDF is the PDF URL, empty when unknown.
	PDF string `json:"pdf,omitempty"`

	// Status is a provenance label such as "ICLR 2024 (Accepted)".
	Status string `json:"status"`

	// RecommendationReason is set only on reranked papers.
	RecommendationReason string `json:"recommendation_reason,omitempty"`
}

// WithReason returns a copy of the paper carrying the given recommendation.
func (p *Paper) WithReason(reason string) *Paper {
	cp := *p
	cp.Authors = cloneStrings(p.Authors)
	cp.Keywords = cloneStrings(p.Keywords)
	cp.RecommendationReason = reason
	return &cp
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
