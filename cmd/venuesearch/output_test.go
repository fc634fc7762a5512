package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/venue-search-service/internal/domain"
)

func TestPrintPapers(t *testing.T) {
	var buf bytes.Buffer
	printPapers(&buf, []*domain.Paper{
		{
			Title:                "Video Diffusion Models",
			Authors:              []string{"A. One", "B. Two"},
			Abstract:             "We   study\nvideo diffusion.",
			Link:                 "https://openreview.net/forum?id=abc",
			PDF:                  "https://openreview.net/pdf?id=abc",
			Status:               "ICLR 2024 (Accepted)",
			RecommendationReason: "Directly on topic.",
		},
		{
			Title:    "Gaussian Splatting",
			Abstract: domain.AbstractPlaceholder,
			Link:     "https://openaccess.thecvf.com/content/x.html",
			Status:   "CVPR 2024",
		},
	})

	out := buf.String()
	assert.Contains(t, out, "1. Video Diffusion Models\n")
	assert.Contains(t, out, "A. One, B. Two")
	assert.Contains(t, out, "Why: Directly on topic.")
	assert.Contains(t, out, "We study video diffusion.")
	assert.Contains(t, out, "PDF: https://openreview.net/pdf?id=abc")
	assert.Contains(t, out, "2. Gaussian Splatting\n")
	assert.NotContains(t, out, domain.AbstractPlaceholder)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	long := strings.Repeat("é", 20)
	assert.Equal(t, strings.Repeat("é", 5)+"...", shorten(long, 5))
}
