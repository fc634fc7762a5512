// Package domain provides domain models and business logic for the venue search service.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Venue identifies a conference by its short code.
type Venue string

const (
	VenueICLR    Venue = "ICLR"
	VenueNeurIPS Venue = "NeurIPS"
	VenueICML    Venue = "ICML"
	VenueCVPR    Venue = "CVPR"
	VenueECCV    Venue = "ECCV"
	VenueICCV    Venue = "ICCV"
	VenueAAAI    Venue = "AAAI"
)

// SourceFamily groups venues by the kind of backend that serves them.
type SourceFamily string

const (
	// FamilyReviewAPI is a structured review-and-submission API (OpenReview).
	FamilyReviewAPI SourceFamily = "review_api"

	// FamilyHTMLIndex is an HTML-indexed open-access archive (CVF).
	FamilyHTMLIndex SourceFamily = "html_index"

	// FamilyMetadataFeed is a metadata feed used as a proxy for venues with
	// no direct API (arXiv).
	FamilyMetadataFeed SourceFamily = "metadata_feed"
)

// YearParity restricts the years in which a venue is held.
type YearParity int

const (
	AnyYear YearParity = iota
	EvenYears
	OddYears
)

// SelectableYears is the year list offered to callers picking a venue.
var SelectableYears = []int{2026, 2025, 2024, 2023, 2022}

// VenueInfo describes a supported venue.
type VenueInfo struct {
	Code   Venue
	Family SourceFamily
	Parity YearParity
}

// AcceptsYear reports whether the venue is held in the given year.
func (v VenueInfo) AcceptsYear(year int) bool {
	switch v.Parity {
	case EvenYears:
		return year%2 == 0
	case OddYears:
		return year%2 != 0
	default:
		return true
	}
}

// Years returns SelectableYears filtered by the venue's parity.
func (v VenueInfo) Years() []int {
	years := make([]int, 0, len(SelectableYears))
	for _, y := range SelectableYears {
		if v.AcceptsYear(y) {
			years = append(years, y)
		}
	}
	return years
}

// SupportsStatus reports whether a review status filter is meaningful for the venue.
func (v VenueInfo) SupportsStatus() bool {
	return v.Family == FamilyReviewAPI
}

var venueCatalog = map[Venue]VenueInfo{
	VenueICLR:    {Code: VenueICLR, Family: FamilyReviewAPI},
	VenueNeurIPS: {Code: VenueNeurIPS, Family: FamilyReviewAPI},
	VenueICML:    {Code: VenueICML, Family: FamilyReviewAPI},
	VenueCVPR:    {Code: VenueCVPR, Family: FamilyHTMLIndex},
	VenueECCV:    {Code: VenueECCV, Family: FamilyHTMLIndex, Parity: EvenYears},
	VenueICCV:    {Code: VenueICCV, Family: FamilyHTMLIndex, Parity: OddYears},
	VenueAAAI:    {Code: VenueAAAI, Family: FamilyMetadataFeed},
}

// LookupVenue returns the catalog entry for a venue.
func LookupVenue(v Venue) (VenueInfo, bool) {
	info, ok := venueCatalog[v]
	return info, ok
}

// ParseVenue resolves a venue code case-insensitively.
func ParseVenue(s string) (Venue, bool) {
	s = strings.TrimSpace(s)
	for code := range venueCatalog {
		if strings.EqualFold(string(code), s) {
			return code, true
		}
	}
	return "", false
}

// Venues returns all supported venues sorted by code.
func Venues() []VenueInfo {
	out := make([]VenueInfo, 0, len(venueCatalog))
	for _, info := range venueCatalog {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Status is the review outcome filter for venues with a structured review API.
type Status string

const (
	StatusAccepted    Status = "Accepted"
	StatusUnderReview Status = "Under Review"
)

// ParseStatus resolves a status string. Empty input yields StatusAccepted.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accepted":
		return StatusAccepted, true
	case "under review", "under_review", "underreview":
		return StatusUnderReview, true
	default:
		return "", false
	}
}

// Selection is the venue/year/status triple a search runs against.
type Selection struct {
	Venue  Venue  `json:"venue"`
	Year   int    `json:"year"`
	Status Status `json:"status"`
}

// Validate checks that the venue is known, the year matches the venue's
// parity and the status is one of the supported values.
func (s Selection) Validate() error {
	info, ok := LookupVenue(s.Venue)
	if !ok {
		return NewValidationError("venue", fmt.Sprintf("unsupported venue %q", s.Venue))
	}
	if s.Year <= 0 {
		return NewValidationError("year", "must be positive")
	}
	if !info.AcceptsYear(s.Year) {
		return NewValidationError("year", fmt.Sprintf("%s is not held in %d", s.Venue, s.Year))
	}
	if s.Status != StatusAccepted && s.Status != StatusUnderReview {
		return NewValidationError("status", fmt.Sprintf("unsupported status %q", s.Status))
	}
	return nil
}

// Stage is a step of the refinement session.
type Stage string

const (
	StageIntent  Stage = "intent"
	StageReview  Stage = "review"
	StageResults Stage = "results"
)
