package httpserver

import (
	"errors"
	"strconv"
	"strings"
)

// parseYear parses the year query parameter.
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("year is required")
	}
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return 0, errors.New("year must be a positive integer")
	}
	return year, nil
}

// parseIndex parses a result position from the URL.
func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("index must be an integer")
	}
	return index, nil
}
