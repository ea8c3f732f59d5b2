package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/time/rate"
)

const (
	searchSubmitAttempts = 4
	enqueueAttempts      = 3
	searchCallSpacing    = 800 * time.Millisecond
	resultPollInterval   = time.Second
	minResultDeadline    = 10 * time.Second
	defaultSearchTimeout = 15 * time.Second
	defaultResponseCap   = 60
	defaultAwaitTimeout  = 10 * time.Minute
	defaultPollInterval  = 2 * time.Second
)

// transferSuccessStates are the upstream states that confirm a finished
// download; transferFailureStates end a transfer without a file.
var (
	transferSuccessStates = map[string]bool{
		"complete": true, "completed": true, "finished": true, "success": true,
	}
	transferFailureStates = map[string]bool{
		"failed": true, "error": true, "cancelled": true,
		"blocked": true, "denied": true, "banned": true,
	}
	refusalMarkers = []string{"blocked", "denied", "banned"}
)

// SlskdClient talks to a slskd daemon over its HTTP API. It implements
// [SearchClient] and [TransferClient].
//
// Search calls through one client are spaced at least 0.8s apart via an
// internal limiter; overlapping searches against the same daemon are the
// caller's job to serialize.
type SlskdClient struct {
	host       string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
	limiter    *rate.Limiter

	preference    []string
	searchTimeout time.Duration
	responseCap   int
	retryWait     time.Duration
}

// SlskdOpts configures a [SlskdClient]. Zero values fall back to defaults;
// Formats is normalized by the constructor.
type SlskdOpts struct {
	Host          string
	APIKey        string
	HTTPClient    *http.Client
	Logger        *log.Logger
	Formats       []string
	SearchTimeout time.Duration
	ResponseLimit int
}

var (
	_ SearchClient   = (*SlskdClient)(nil)
	_ TransferClient = (*SlskdClient)(nil)
)

// NewSlskdClient creates a client for the daemon at opts.Host.
func NewSlskdClient(opts SlskdOpts) *SlskdClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultSearchTimeout
	}
	if opts.ResponseLimit <= 0 {
		opts.ResponseLimit = defaultResponseCap
	}
	return &SlskdClient{
		host:          strings.TrimRight(opts.Host, "/"),
		apiKey:        opts.APIKey,
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
		limiter:       rate.NewLimiter(rate.Every(searchCallSpacing), 1),
		preference:    formatter.NormalizePreference(opts.Formats...),
		searchTimeout: opts.SearchTimeout,
		responseCap:   opts.ResponseLimit,
		retryWait:     time.Second,
	}
}

// doRequest performs one API call and returns the status code and raw body.
func (s *SlskdClient) doRequest(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.host+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// Search runs a text search against the Soulseek network and returns ranked
// candidates, best first. Under losslessOnly, hits with lossy or unrankable
// extensions are dropped. Hits are deduplicated by (username, filename).
func (s *SlskdClient) Search(ctx context.Context, query string, losslessOnly bool) ([]models.Candidate, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search cancelled while pacing: %w", err)
	}

	sid, err := s.submitSearch(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.collectCandidates(ctx, sid, losslessOnly)
	if err != nil {
		return nil, err
	}

	models.SortCandidates(candidates)
	return candidates, nil
}

// submitSearch posts the search and returns its handle. The daemon throttles
// bursts with 429 (and 409 mid-restart), so submission backs off linearly
// before treating the search as rate limited.
func (s *SlskdClient) submitSearch(ctx context.Context, query string) (string, error) {
	payload := map[string]any{
		"searchText":               query,
		"fileLimit":                10000,
		"filterResponses":          true,
		"minimumResponseFileCount": 1,
		"responseLimit":            s.responseCap,
		"searchTimeout":            int(s.searchTimeout / time.Millisecond),
	}

	var lastStatus int
	for attempt := 1; attempt <= searchSubmitAttempts; attempt++ {
		status, body, err := s.doRequest(ctx, http.MethodPost, "/api/v0/searches", payload)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
		}

		if status == http.StatusTooManyRequests || status == http.StatusConflict {
			lastStatus = status
			s.logger.Warn("search submission throttled", "query", query, "status", status, "attempt", attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * s.retryWait):
			}
			continue
		}
		if status < 200 || status >= 300 {
			return "", fmt.Errorf("%w: search submission returned status %d", shared.ErrSearchFailed, status)
		}

		var submitted map[string]any
		if err := json.Unmarshal(body, &submitted); err == nil {
			if id := stringField(submitted, "id"); id != "" {
				return id, nil
			}
		}
		// Some daemon versions answer the POST with an empty body; the
		// newest entry in the search list is ours.
		return s.latestSearchID(ctx)
	}
	return "", fmt.Errorf("%w: search submission gave up after %d attempts (last status %d)",
		shared.ErrRateLimited, searchSubmitAttempts, lastStatus)
}

func (s *SlskdClient) latestSearchID(ctx context.Context) (string, error) {
	status, body, err := s.doRequest(ctx, http.MethodGet, "/api/v0/searches", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: search list returned status %d", shared.ErrSearchFailed, status)
	}

	var searches []map[string]any
	if err := json.Unmarshal(body, &searches); err != nil || len(searches) == 0 {
		return "", fmt.Errorf("%w: no search handle returned", shared.ErrSearchFailed)
	}
	if id := stringField(searches[len(searches)-1], "id"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no search handle returned", shared.ErrSearchFailed)
}

// collectCandidates polls the search's responses, accumulating normalized
// hits until the deadline passes, the response cap is reached, or the daemon
// reports the search finished. The deadline scales to 1.5x the search timeout
// with a 10s floor. When polling never yields anything, one direct fetch runs
// before giving up.
func (s *SlskdClient) collectCandidates(ctx context.Context, sid string, losslessOnly bool) ([]models.Candidate, error) {
	deadline := time.Duration(float64(s.searchTimeout) * 1.5)
	if deadline < minResultDeadline {
		deadline = minResultDeadline
	}

	pollCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	seen := make(map[string]bool)
	var candidates []models.Candidate
	polled := false

	for pollCtx.Err() == nil {
		responses, err := s.fetchResponses(pollCtx, sid)
		if err == nil && len(responses) > 0 {
			polled = true
			candidates = s.mergeResponses(candidates, seen, responses, losslessOnly)
			if len(responses) >= s.responseCap {
				break
			}
		}
		if s.searchFinished(pollCtx, sid) {
			break
		}
		select {
		case <-pollCtx.Done():
		case <-time.After(resultPollInterval):
		}
	}

	if !polled {
		responses, err := s.fetchResponses(ctx, sid)
		if err != nil {
			return nil, err
		}
		candidates = s.mergeResponses(candidates, seen, responses, losslessOnly)
	}

	return candidates, nil
}

// searchResponse is one peer's slice of a search result. Peers and daemon
// versions disagree on field names, so files stay loosely typed until
// normalization.
type searchResponse struct {
	Username string           `json:"username"`
	User     string           `json:"user"`
	Files    []map[string]any `json:"files"`
}

func (s *SlskdClient) fetchResponses(ctx context.Context, sid string) ([]searchResponse, error) {
	status, body, err := s.doRequest(ctx, http.MethodGet, "/api/v0/searches/"+url.PathEscape(sid)+"/responses", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: responses fetch returned status %d", shared.ErrSearchFailed, status)
	}

	var responses []searchResponse
	if err := json.Unmarshal(body, &responses); err != nil {
		return nil, fmt.Errorf("failed to decode search responses: %w", err)
	}
	return responses, nil
}

// searchFinished reports whether the daemon marked the search terminal.
func (s *SlskdClient) searchFinished(ctx context.Context, sid string) bool {
	status, body, err := s.doRequest(ctx, http.MethodGet, "/api/v0/searches/"+url.PathEscape(sid), nil)
	if err != nil || status < 200 || status >= 300 {
		return false
	}
	var search map[string]any
	if err := json.Unmarshal(body, &search); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(stringField(search, "state")), "completed")
}

// mergeResponses flattens per-peer file lists into candidates, skipping
// already-seen (username, filename) pairs.
func (s *SlskdClient) mergeResponses(candidates []models.Candidate, seen map[string]bool, responses []searchResponse, losslessOnly bool) []models.Candidate {
	for _, response := range responses {
		username := response.Username
		if username == "" {
			username = response.User
		}
		for _, file := range response.Files {
			candidate, ok := s.normalizeHit(username, file, losslessOnly)
			if !ok || seen[candidate.Key()] {
				continue
			}
			seen[candidate.Key()] = true
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

// normalizeHit maps one raw hit onto a Candidate. Hits without a discoverable
// filename are dropped; under losslessOnly the extension must be lossless and
// the preference score positive.
func (s *SlskdClient) normalizeHit(username string, file map[string]any, losslessOnly bool) (models.Candidate, bool) {
	filename := stringField(file, "filename", "file", "path")
	if filename == "" {
		return models.Candidate{}, false
	}
	if losslessOnly && !formatter.IsLosslessPath(filename) {
		return models.Candidate{}, false
	}

	score := formatter.ExtScore(filename, s.preference)
	if losslessOnly && score <= 0 {
		return models.Candidate{}, false
	}

	return models.Candidate{
		Username:      username,
		Filename:      filename,
		Size:          intField(file, "size", "filesize"),
		ExtScore:      score,
		ReportedSpeed: floatField(file, "uploadSpeed", "speed", "userSpeed"),
		QueueLength:   int(intField(file, "queueLength", "queue")),
	}, true
}

// Enqueue asks the daemon to download filename from username. The daemon
// occasionally rejects the first enqueue for a reachable peer, so the call
// retries on a fixed cadence before wrapping the last cause in
// [shared.ErrEnqueueRejected].
func (s *SlskdClient) Enqueue(ctx context.Context, username, filename string, size int64) error {
	payload := []map[string]any{{"filename": filename, "size": size}}
	path := "/api/v0/transfers/downloads/" + url.PathEscape(username)

	var lastErr error
	for attempt := 1; attempt <= enqueueAttempts; attempt++ {
		status, body, err := s.doRequest(ctx, http.MethodPost, path, payload)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			return nil
		default:
			lastErr = fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
		}

		if attempt < enqueueAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryWait):
			}
		}
	}
	return fmt.Errorf("%w: %s from %s: %v",
		shared.ErrEnqueueRejected, formatter.BasenameAny(filename), username, lastErr)
}

// TransferRecord is the slimmed view of one upstream transfer row.
type TransferRecord struct {
	Filename      string `json:"filename"`
	State         string `json:"state"`
	Transferred   int64  `json:"transferred"`
	Size          int64  `json:"size"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Percent returns the completion percentage, 0 when the size is unknown.
func (r *TransferRecord) Percent() float64 {
	if r.Size <= 0 {
		return 0
	}
	return float64(r.Transferred) / float64(r.Size) * 100
}

// AwaitOptions configures one completion poll.
type AwaitOptions struct {
	Username     string
	Basename     string        // matched as a suffix after slash normalization
	Timeout      time.Duration // default 10m
	PollInterval time.Duration // default 2s

	// OnProgress fires on state transitions and whole-percent deltas only.
	OnProgress func(state string, percent float64)

	// FileFinder is consulted every poll; a non-empty path is authoritative
	// success regardless of what the daemon reports.
	FileFinder func() string
}

// AwaitCompletion polls the peer's transfers until the matching one reaches a
// terminal state or the timeout passes. It returns (true, record) on success,
// (false, record) on a reported failure, and (false, nil) on timeout. Peers
// can refuse mid-transfer under a neutral state, so the free-text failure
// reason is scanned for refusal markers independently.
func (s *SlskdClient) AwaitCompletion(ctx context.Context, opts AwaitOptions) (bool, *TransferRecord, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAwaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	deadline := time.Now().Add(opts.Timeout)
	lastState := ""
	lastPercent := -1.0

	for {
		if opts.FileFinder != nil {
			if found := opts.FileFinder(); found != "" {
				return true, &TransferRecord{Filename: found, State: "complete"}, nil
			}
		}

		if record, ok := s.findTransfer(ctx, opts.Username, opts.Basename); ok {
			state := strings.ToLower(record.State)
			switch {
			case transferSuccessStates[state]:
				return true, record, nil
			case transferFailureStates[state]:
				return false, record, nil
			case signalsRefusal(record.FailureReason):
				return false, record, nil
			}

			if percent := record.Percent(); opts.OnProgress != nil &&
				(state != lastState || percent-lastPercent >= 1) {
				opts.OnProgress(record.State, percent)
				lastState, lastPercent = state, percent
			}
		}

		if time.Now().After(deadline) {
			return false, nil, nil
		}
		select {
		case <-ctx.Done():
			return false, nil, ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

// findTransfer fetches the peer's downloads and picks the row whose filename
// ends with the target basename. Depending on version the daemon returns
// either a list of rows or a map keyed by transfer id.
func (s *SlskdClient) findTransfer(ctx context.Context, username, basename string) (*TransferRecord, bool) {
	if basename == "" {
		return nil, false
	}

	status, body, err := s.doRequest(ctx, http.MethodGet, "/api/v0/transfers/downloads/"+url.PathEscape(username), nil)
	if err != nil || status < 200 || status >= 300 {
		return nil, false
	}

	for _, row := range decodeTransferRows(body) {
		name := stringField(row, "filename", "file")
		if name == "" || !strings.HasSuffix(strings.ReplaceAll(name, "\\", "/"), basename) {
			continue
		}
		return &TransferRecord{
			Filename:      name,
			State:         stringField(row, "state", "status"),
			Transferred:   intField(row, "transferredBytes", "bytesTransferred", "transferred"),
			Size:          intField(row, "size", "filesize"),
			FailureReason: stringField(row, "failureReason", "reason", "error"),
		}, true
	}
	return nil, false
}

func decodeTransferRows(body []byte) []map[string]any {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows
	}
	var keyed map[string]map[string]any
	if err := json.Unmarshal(body, &keyed); err == nil {
		rows = make([]map[string]any, 0, len(keyed))
		for _, row := range keyed {
			rows = append(rows, row)
		}
	}
	return rows
}

func signalsRefusal(reason string) bool {
	if reason == "" {
		return false
	}
	reason = strings.ToLower(reason)
	for _, marker := range refusalMarkers {
		if strings.Contains(reason, marker) {
			return true
		}
	}
	return false
}

// stringField returns the first present key rendered as a string; numeric
// values are formatted so numeric ids still work as handles.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func intField(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func floatField(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
