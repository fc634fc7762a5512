package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/papersources"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

	// llmKeyHeader carries a caller-supplied language-model credential.
	llmKeyHeader = "X-LLM-API-Key"
	// maxSearchVenues bounds the venues in one basic search.
	maxSearchVenues = 8
)

// errEmptyBody is returned by decodeJSON when the body has no content.
var errEmptyBody = errors.New("empty request body")

// selectionRequest is the venue/year/status triple in request bodies.
type selectionRequest struct {
	Venue  string `json:"venue" validate:"required,max=32"`
	Year   int    `json:"year" validate:"required,gt=0"`
	Status string `json:"status,omitempty" validate:"omitempty,max=32"`
}

// intentRequest is the JSON request body for submitting a research intent.
type intentRequest struct {
	Intent string `json:"intent" validate:"required,max=10000"`
}

// keywordEdit is one keyword row edited by the caller.
type keywordEdit struct {
	Keyword string `json:"keyword" validate:"required,max=500"`
	Active  *bool  `json:"active,omitempty"`
}

// keywordsRequest is the JSON request body for replacing keyword entries.
type keywordsRequest struct {
	Keywords []keywordEdit `json:"keywords" validate:"required,min=1,max=50,dive"`
}

// scanRequest is the optional JSON request body for a scan.
type scanRequest struct {
	Selection *selectionRequest `json:"selection,omitempty"`
	Keywords  []keywordEdit     `json:"keywords,omitempty" validate:"omitempty,max=50,dive"`
}

// confirmRequest is the optional JSON request body for confirming keywords.
type confirmRequest struct {
	Keywords []keywordEdit `json:"keywords,omitempty" validate:"omitempty,max=50,dive"`
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// listVenues handles GET /venues.
func (s *Server) listVenues(w http.ResponseWriter, _ *http.Request) {
	infos := domain.Venues()
	venues := make([]venueResponse, 0, len(infos))
	for _, info := range infos {
		venues = append(venues, venueToResponse(info))
	}
	writeJSON(w, http.StatusOK, venuesResponse{Venues: venues})
}

// basicSearch handles GET /search: one keyword against one or more venues,
// no session and no language model. Venues are given as a comma-separated
// list or as repeated venue parameters and are searched in parallel.
func (s *Server) basicSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, err := parseYear(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	names := splitVenues(q["venue"])
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "venue is required")
		return
	}
	if len(names) > maxSearchVenues {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d venues per search", maxSearchVenues))
		return
	}
	keyword := strings.TrimSpace(q.Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	queries := make([]papersources.Query, 0, len(names))
	seen := make(map[domain.Venue]bool, len(names))
	for _, name := range names {
		sel, err := parseSelection(name, year, q.Get("status"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if seen[sel.Venue] {
			continue
		}
		seen[sel.Venue] = true
		queries = append(queries, papersources.Query{
			Venue:   sel.Venue,
			Year:    sel.Year,
			Keyword: keyword,
			Status:  sel.Status,
		})
	}

	results := s.searcher.SearchMany(r.Context(), queries)
	searches := make([]searchResponse, len(queries))
	for i, query := range queries {
		searches[i] = toSearchResponse(query, results[i])
	}

	if len(searches) == 1 {
		writeJSON(w, http.StatusOK, searches[0])
		return
	}
	writeJSON(w, http.StatusOK, toSearchBatchResponse(keyword, searches))
}

// splitVenues flattens repeated and comma-separated venue parameters.
func splitVenues(params []string) []string {
	var names []string
	for _, p := range params {
		for _, name := range strings.Split(p, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// createSession handles POST /sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !s.decodeAndValidate(w, r, &req, false) {
		return
	}

	sel, err := parseSelection(req.Venue, req.Year, req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sess, err := s.engine.NewSession(sel, strings.TrimSpace(r.Header.Get(llmKeyHeader)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.store.Put(sess)

	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, viewToResponse(sess.Snapshot()))
}

// getSession handles GET /sessions/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// deleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := s.store.Delete(sess.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitIntent handles POST /sessions/{sessionID}/intent.
func (s *Server) submitIntent(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req intentRequest
	if !s.decodeAndValidate(w, r, &req, false) {
		return
	}

	if err := s.engine.SubmitIntent(r.Context(), sess, req.Intent); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// updateKeywords handles PUT /sessions/{sessionID}/keywords.
func (s *Server) updateKeywords(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req keywordsRequest
	if !s.decodeAndValidate(w, r, &req, false) {
		return
	}

	if err := s.engine.UpdateKeywords(sess, toEntries(req.Keywords)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// resetKeywords handles DELETE /sessions/{sessionID}/keywords.
func (s *Server) resetKeywords(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := s.engine.ResetKeywords(sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// scanKeywords handles POST /sessions/{sessionID}/scan. The body is optional.
func (s *Server) scanKeywords(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req scanRequest
	if !s.decodeAndValidate(w, r, &req, true) {
		return
	}

	var sel *domain.Selection
	if req.Selection != nil {
		parsed, err := parseSelection(req.Selection.Venue, req.Selection.Year, req.Selection.Status)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		sel = &parsed
	}

	report, err := s.engine.Scan(r.Context(), sess, sel, toEntries(req.Keywords))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		sessionResponse: viewToResponse(sess.Snapshot()),
		Scan:            report,
	})
}

// confirmKeywords handles POST /sessions/{sessionID}/confirm. The body is optional.
func (s *Server) confirmKeywords(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	var req confirmRequest
	if !s.decodeAndValidate(w, r, &req, true) {
		return
	}

	if err := s.engine.Confirm(r.Context(), sess, toEntries(req.Keywords)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// goBack handles POST /sessions/{sessionID}/back.
func (s *Server) goBack(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := s.engine.Back(sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// resetSession handles POST /sessions/{sessionID}/reset.
func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	s.engine.Reset(sess)
	writeJSON(w, http.StatusOK, viewToResponse(sess.Snapshot()))
}

// getResults handles GET /sessions/{sessionID}/results.
func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := s.engine.Results(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResultsResponse(sess.Snapshot()))
}

// dismissResult handles DELETE /sessions/{sessionID}/results/{index}.
func (s *Server) dismissResult(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	index, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Dismiss(sess, index); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResultsResponse(sess.Snapshot()))
}

// decodeAndValidate reads a JSON body into dst and validates it. When
// optional is set an empty body is accepted. It writes a 400 response and
// returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := decodeJSON(r, dst); err != nil {
		if errors.Is(err, errEmptyBody) && optional {
			return true
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// decodeJSON reads at most maxRequestBodySize bytes and unmarshals them.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if len(body) > maxRequestBodySize {
		return errors.New("request body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON request body")
	}
	return nil
}

// validationMessage renders the first validator failure for clients.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Entity+" not found")
		} else {
			writeError(w, http.StatusNotFound, "resource not found")
		}
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrInvalidStage):
		var se *domain.StageError
		if errors.As(err, &se) {
			writeError(w, http.StatusConflict, se.Error())
		} else {
			writeError(w, http.StatusConflict, "action not allowed in current stage")
		}
	case errors.Is(err, domain.ErrNoCandidates):
		writeError(w, http.StatusUnprocessableEntity,
			"no cached results for the confirmed keywords; go back to keyword review and scan")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parseSelection resolves venue and status strings into a validated Selection.
func parseSelection(venue string, year int, status string) (domain.Selection, error) {
	v, ok := domain.ParseVenue(venue)
	if !ok {
		return domain.Selection{}, domain.NewValidationError("venue", "unsupported venue")
	}
	st, ok := domain.ParseStatus(status)
	if !ok {
		return domain.Selection{}, domain.NewValidationError("status", "must be Accepted or Under Review")
	}
	sel := domain.Selection{Venue: v, Year: year, Status: st}
	if err := sel.Validate(); err != nil {
		return domain.Selection{}, err
	}
	return sel, nil
}

// toEntries converts request edits. A nil slice means the field was absent
// and yields nil; an explicit empty list yields a non-nil empty slice.
func toEntries(edits []keywordEdit) []domain.KeywordEntry {
	if edits == nil {
		return nil
	}
	entries := make([]domain.KeywordEntry, 0, len(edits))
	for _, e := range edits {
		entry := domain.NewKeywordEntry(e.Keyword)
		if e.Active != nil {
			entry.Active = *e.Active
		}
		entries = append(entries, entry)
	}
	return entries
}
