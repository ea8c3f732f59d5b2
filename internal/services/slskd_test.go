package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/spotiseek/internal/shared"
)

// newSlskdForTest builds a client against a test server with retry pauses
// shrunk so backoff paths run in milliseconds.
func newSlskdForTest(host string) *SlskdClient {
	client := NewSlskdClient(SlskdOpts{
		Host:          host,
		APIKey:        "test-key",
		SearchTimeout: time.Second,
		ResponseLimit: 4,
	})
	client.retryWait = time.Millisecond
	return client
}

func writeJSONBody(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestSlskdClient(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			client := NewSlskdClient(SlskdOpts{Host: "http://slskd:5030/"})

			if client.host != "http://slskd:5030" {
				t.Errorf("expected trailing slash trimmed, got %s", client.host)
			}
			if client.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
			if client.searchTimeout != defaultSearchTimeout {
				t.Errorf("expected default search timeout, got %v", client.searchTimeout)
			}
			if client.responseCap != defaultResponseCap {
				t.Errorf("expected default response cap, got %d", client.responseCap)
			}
			if len(client.preference) != 3 || client.preference[0] != "aiff" {
				t.Errorf("expected default format preference, got %v", client.preference)
			}
		})

		t.Run("Normalizes Formats", func(t *testing.T) {
			client := NewSlskdClient(SlskdOpts{Host: "http://slskd:5030", Formats: []string{"WAV,.flac", "bogus"}})

			if len(client.preference) != 2 || client.preference[0] != "wav" || client.preference[1] != "flac" {
				t.Errorf("expected normalized preference [wav flac], got %v", client.preference)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		t.Run("Ranks And Deduplicates Hits", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodPost && r.URL.Path == "/api/v0/searches":
					if got := r.Header.Get("X-API-Key"); got != "test-key" {
						t.Errorf("expected API key header, got %q", got)
					}
					var payload map[string]any
					if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
						t.Errorf("failed to decode search payload: %v", err)
					}
					if payload["searchText"] != "Steely Dan Aja" {
						t.Errorf("expected query in payload, got %v", payload["searchText"])
					}
					if payload["responseLimit"] != float64(4) {
						t.Errorf("expected response limit 4, got %v", payload["responseLimit"])
					}
					writeJSONBody(t, w, map[string]string{"id": "s1"})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/s1/responses":
					writeJSONBody(t, w, []map[string]any{
						{
							"username": "fastpeer",
							"files": []map[string]any{
								{"filename": `@@music\fastpeer\Steely Dan - Aja.flac`, "size": 41943040, "uploadSpeed": 2048000, "queueLength": 0},
								{"filename": `@@music\fastpeer\Steely Dan - Aja.flac`, "size": 41943040, "uploadSpeed": 2048000, "queueLength": 0},
								{"filename": `@@music\fastpeer\Steely Dan - Aja.mp3`, "size": 9000000},
								{"filename": `@@music\fastpeer\Steely Dan - Aja.ape`, "size": 39000000},
								{"file": `@@music\fastpeer\Steely Dan - Aja.aiff`, "size": 50000000, "speed": "1024000", "queue": 3},
							},
						},
						{
							"user": "slowpeer",
							"files": []map[string]any{
								{"filename": `@@music\slowpeer\Steely Dan - Aja.flac`, "size": "41943040", "userSpeed": 64000, "queueLength": 12},
								{"filename": ""},
							},
						},
					})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/s1":
					writeJSONBody(t, w, map[string]string{"state": "Completed, TimedOut"})
				default:
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			candidates, err := client.Search(context.Background(), "Steely Dan Aja", true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(candidates) != 3 {
				t.Fatalf("expected 3 candidates after dedup and filtering, got %d", len(candidates))
			}
			if !strings.HasSuffix(candidates[0].Filename, ".aiff") || candidates[0].ExtScore != 5 {
				t.Errorf("expected aiff hit ranked first, got %+v", candidates[0])
			}
			if candidates[0].QueueLength != 3 || candidates[0].ReportedSpeed != 1024000 {
				t.Errorf("expected aliased queue and speed fields parsed, got %+v", candidates[0])
			}
			if candidates[1].Username != "fastpeer" || candidates[1].ExtScore != 4 {
				t.Errorf("expected fast flac second, got %+v", candidates[1])
			}
			if candidates[2].Username != "slowpeer" || candidates[2].Size != 41943040 {
				t.Errorf("expected slow flac last with string size parsed, got %+v", candidates[2])
			}
		})

		t.Run("Keeps Lossy Hits When Allowed", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodPost && r.URL.Path == "/api/v0/searches":
					writeJSONBody(t, w, map[string]string{"id": "s1"})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/s1/responses":
					writeJSONBody(t, w, []map[string]any{{
						"username": "peer",
						"files": []map[string]any{
							{"filename": `music\track.mp3`, "size": 9000000},
							{"filename": `music\track.flac`, "size": 40000000},
						},
					}})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/s1":
					writeJSONBody(t, w, map[string]string{"state": "Completed"})
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			candidates, err := client.Search(context.Background(), "track", false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(candidates) != 2 {
				t.Fatalf("expected lossy hit kept, got %d candidates", len(candidates))
			}
			if !strings.HasSuffix(candidates[0].Filename, ".flac") {
				t.Errorf("expected flac ranked above mp3, got %s first", candidates[0].Filename)
			}
			if candidates[1].ExtScore != 0 {
				t.Errorf("expected unranked score for mp3, got %d", candidates[1].ExtScore)
			}
		})

		t.Run("Falls Back To Search List For Handle", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodPost && r.URL.Path == "/api/v0/searches":
					w.WriteHeader(http.StatusCreated)
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches":
					writeJSONBody(t, w, []map[string]any{{"id": 41}, {"id": 42}})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/42/responses":
					writeJSONBody(t, w, []map[string]any{{
						"username": "peer",
						"files":    []map[string]any{{"filename": `music\track.flac`, "size": 1000}},
					}})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/42":
					writeJSONBody(t, w, map[string]string{"state": "Completed"})
				default:
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			candidates, err := client.Search(context.Background(), "track", true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(candidates) != 1 {
				t.Fatalf("expected 1 candidate via numeric handle fallback, got %d", len(candidates))
			}
		})

		t.Run("Retries When Throttled", func(t *testing.T) {
			var posts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodPost && r.URL.Path == "/api/v0/searches":
					if posts.Add(1) <= 2 {
						w.WriteHeader(http.StatusTooManyRequests)
						return
					}
					writeJSONBody(t, w, map[string]string{"id": "s2"})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/s2/responses":
					writeJSONBody(t, w, []map[string]any{{
						"username": "peer",
						"files":    []map[string]any{{"filename": `music\track.flac`, "size": 1000}},
					}})
				case r.Method == http.MethodGet && r.URL.Path == "/api/v0/searches/s2":
					writeJSONBody(t, w, map[string]string{"state": "Completed"})
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			candidates, err := client.Search(context.Background(), "track", true)
			if err != nil {
				t.Fatalf("expected no error after retries, got %v", err)
			}
			if posts.Load() != 3 {
				t.Errorf("expected 3 submission attempts, got %d", posts.Load())
			}
			if len(candidates) != 1 {
				t.Errorf("expected 1 candidate, got %d", len(candidates))
			}
		})

		t.Run("Gives Up After Repeated Throttling", func(t *testing.T) {
			var posts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				posts.Add(1)
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			_, err := client.Search(context.Background(), "track", true)
			if !errors.Is(err, shared.ErrRateLimited) {
				t.Errorf("expected ErrRateLimited, got %v", err)
			}
			if posts.Load() != 4 {
				t.Errorf("expected 4 submission attempts, got %d", posts.Load())
			}
		})

		t.Run("Fails Fast On Server Error", func(t *testing.T) {
			var posts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				posts.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			_, err := client.Search(context.Background(), "track", true)
			if !errors.Is(err, shared.ErrSearchFailed) {
				t.Errorf("expected ErrSearchFailed, got %v", err)
			}
			if posts.Load() != 1 {
				t.Errorf("expected no retries on hard failure, got %d attempts", posts.Load())
			}
		})
	})

	t.Run("Enqueue", func(t *testing.T) {
		t.Run("Posts Download Request", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.URL.Path != "/api/v0/transfers/downloads/peer" {
					t.Errorf("expected downloads path for peer, got %s", r.URL.Path)
				}
				var payload []map[string]any
				if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload) != 1 {
					t.Errorf("expected single-file payload, got %v (err %v)", payload, err)
				} else if payload[0]["size"] != float64(1000) {
					t.Errorf("expected size in payload, got %v", payload[0]["size"])
				}
				w.WriteHeader(http.StatusCreated)
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			if err := client.Enqueue(context.Background(), "peer", `music\track.flac`, 1000); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("Retries Transient Rejections", func(t *testing.T) {
			var posts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if posts.Add(1) <= 2 {
					http.Error(w, "queue full", http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			if err := client.Enqueue(context.Background(), "peer", `music\track.flac`, 1000); err != nil {
				t.Errorf("expected success on third attempt, got %v", err)
			}
			if posts.Load() != 3 {
				t.Errorf("expected 3 attempts, got %d", posts.Load())
			}
		})

		t.Run("Wraps Repeated Rejections", func(t *testing.T) {
			var posts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				posts.Add(1)
				http.Error(w, "peer offline", http.StatusInternalServerError)
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			err := client.Enqueue(context.Background(), "grumpypeer", `C:\shares\Steely Dan - Aja.flac`, 1000)
			if !errors.Is(err, shared.ErrEnqueueRejected) {
				t.Fatalf("expected ErrEnqueueRejected, got %v", err)
			}
			if posts.Load() != 3 {
				t.Errorf("expected 3 attempts, got %d", posts.Load())
			}
			if !strings.Contains(err.Error(), "Steely Dan - Aja.flac") || !strings.Contains(err.Error(), "grumpypeer") {
				t.Errorf("expected basename and peer in error, got %v", err)
			}
			if !strings.Contains(err.Error(), "peer offline") {
				t.Errorf("expected last rejection cause in error, got %v", err)
			}
		})
	})

	t.Run("AwaitCompletion", func(t *testing.T) {
		t.Run("Reports Success", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v0/transfers/downloads/peer" {
					t.Errorf("expected peer downloads path, got %s", r.URL.Path)
				}
				writeJSONBody(t, w, []map[string]any{
					{"filename": `C:\shares\music\Something Else.flac`, "state": "InProgress"},
					{"filename": `C:\shares\music\Steely Dan - Aja.flac`, "state": "Completed", "transferredBytes": 1000, "size": 1000},
				})
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			ok, record, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "Steely Dan - Aja.flac",
				Timeout:      2 * time.Second,
				PollInterval: 5 * time.Millisecond,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !ok {
				t.Fatal("expected transfer reported as complete")
			}
			if record == nil || record.State != "Completed" {
				t.Errorf("expected completed record, got %+v", record)
			}
			if record != nil && !strings.HasPrefix(record.Filename, `C:\`) {
				t.Errorf("expected windows path matched by basename, got %s", record.Filename)
			}
		})

		t.Run("Reports Failure State", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(t, w, []map[string]any{
					{"filename": "music/track.flac", "state": "Failed", "failureReason": "remote error"},
				})
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			ok, record, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      2 * time.Second,
				PollInterval: 5 * time.Millisecond,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if ok {
				t.Error("expected failure verdict")
			}
			if record == nil || record.FailureReason != "remote error" {
				t.Errorf("expected failure reason preserved, got %+v", record)
			}
		})

		t.Run("Detects Refusal Reason", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(t, w, []map[string]any{
					{"filename": "music/track.flac", "state": "Queued", "reason": "File blocked by upload filter"},
				})
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			ok, record, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      2 * time.Second,
				PollInterval: 5 * time.Millisecond,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if ok {
				t.Error("expected refusal verdict despite neutral state")
			}
			if record == nil || !strings.Contains(record.FailureReason, "blocked") {
				t.Errorf("expected refusal reason surfaced, got %+v", record)
			}
		})

		t.Run("File On Disk Overrides Daemon", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(t, w, []map[string]any{
					{"filename": "music/track.flac", "state": "InProgress", "transferredBytes": 100, "size": 1000},
				})
			}))
			defer server.Close()

			var finderCalls atomic.Int32
			client := newSlskdForTest(server.URL)
			ok, record, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      2 * time.Second,
				PollInterval: 5 * time.Millisecond,
				FileFinder: func() string {
					if finderCalls.Add(1) >= 2 {
						return "/downloads/track.flac"
					}
					return ""
				},
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !ok {
				t.Fatal("expected file on disk to count as success")
			}
			if record == nil || record.State != "complete" || record.Filename != "/downloads/track.flac" {
				t.Errorf("expected synthetic complete record, got %+v", record)
			}
		})

		t.Run("Times Out Quietly", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(t, w, []map[string]any{})
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			ok, record, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      30 * time.Millisecond,
				PollInterval: 10 * time.Millisecond,
			})
			if err != nil {
				t.Fatalf("expected quiet timeout, got %v", err)
			}
			if ok || record != nil {
				t.Errorf("expected no verdict and no record, got ok=%v record=%+v", ok, record)
			}
		})

		t.Run("Returns Context Error When Cancelled", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(t, w, []map[string]any{})
			}))
			defer server.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			client := newSlskdForTest(server.URL)
			ok, _, err := client.AwaitCompletion(ctx, AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      5 * time.Second,
				PollInterval: 5 * time.Millisecond,
			})
			if ok {
				t.Error("expected no success after cancellation")
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("expected context deadline error, got %v", err)
			}
		})

		t.Run("Throttles Progress Callbacks", func(t *testing.T) {
			var polls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				row := map[string]any{"filename": "music/track.flac", "state": "InProgress", "size": 1000}
				switch polls.Add(1) {
				case 1:
					row["transferredBytes"] = 100
				case 2:
					row["transferredBytes"] = 105
				case 3:
					row["transferredBytes"] = 500
				default:
					row["state"] = "Completed"
					row["transferredBytes"] = 1000
				}
				writeJSONBody(t, w, []map[string]any{row})
			}))
			defer server.Close()

			type tick struct {
				state   string
				percent float64
			}
			var ticks []tick

			client := newSlskdForTest(server.URL)
			ok, _, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      2 * time.Second,
				PollInterval: 5 * time.Millisecond,
				OnProgress: func(state string, percent float64) {
					ticks = append(ticks, tick{state, percent})
				},
			})
			if err != nil || !ok {
				t.Fatalf("expected completion, got ok=%v err=%v", ok, err)
			}

			if len(ticks) != 2 {
				t.Fatalf("expected 2 progress callbacks, got %d (%v)", len(ticks), ticks)
			}
			if ticks[0].percent != 10 || ticks[1].percent != 50 {
				t.Errorf("expected 10%% then 50%%, got %v", ticks)
			}
		})

		t.Run("Decodes Map Keyed Transfer Rows", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONBody(t, w, map[string]map[string]any{
					"txn-1": {
						"file":             "music/track.flac",
						"status":           "finished",
						"bytesTransferred": 900,
						"filesize":         1000,
					},
				})
			}))
			defer server.Close()

			client := newSlskdForTest(server.URL)
			ok, record, err := client.AwaitCompletion(context.Background(), AwaitOptions{
				Username:     "peer",
				Basename:     "track.flac",
				Timeout:      2 * time.Second,
				PollInterval: 5 * time.Millisecond,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !ok {
				t.Fatal("expected success from aliased terminal state")
			}
			if record.Transferred != 900 || record.Size != 1000 {
				t.Errorf("expected aliased byte fields parsed, got %+v", record)
			}
		})
	})
}

func TestTransferRecordPercent(t *testing.T) {
	cases := []struct {
		name   string
		record TransferRecord
		want   float64
	}{
		{"Halfway", TransferRecord{Transferred: 500, Size: 1000}, 50},
		{"Complete", TransferRecord{Transferred: 1000, Size: 1000}, 100},
		{"Unknown Size", TransferRecord{Transferred: 500}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.record.Percent(); got != tc.want {
				t.Errorf("expected %.1f, got %.1f", tc.want, got)
			}
		})
	}
}
