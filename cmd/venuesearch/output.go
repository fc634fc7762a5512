package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/helixir/venue-search-service/internal/domain"
)

const abstractWidth = 280

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPapers writes a numbered plain-text listing.
func printPapers(w io.Writer, papers []*domain.Paper) {
	for i, p := range papers {
		fmt.Fprintf(w, "%d. %s\n", i+1, p.Title)
		if len(p.Authors) > 0 {
			fmt.Fprintf(w, "   %s\n", strings.Join(p.Authors, ", "))
		}
		fmt.Fprintf(w, "   %s\n", p.Status)
		if p.RecommendationReason != "" {
			fmt.Fprintf(w, "   Why: %s\n", p.RecommendationReason)
		}
		if p.Abstract != "" && p.Abstract != domain.AbstractPlaceholder {
			fmt.Fprintf(w, "   %s\n", shorten(p.Abstract, abstractWidth))
		}
		fmt.Fprintf(w, "   %s\n", p.Link)
		if p.PDF != "" {
			fmt.Fprintf(w, "   PDF: %s\n", p.PDF)
		}
		fmt.Fprintln(w)
	}
}

func shorten(s string, n int) string {
	s = domain.CollapseWhitespace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
