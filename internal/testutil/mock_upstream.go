// Package testutil provides an in-process football upstream for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable API-Football lookalike.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
	lastQuery         url.Values
}

// NewMockUpstream starts a mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		mock.lastQuery = r.URL.Query()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears the tracking counters. Handlers are kept.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
	m.lastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests that reached the server.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests for one path.
func (m *MockUpstream) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastQuery returns the query of the most recent request.
func (m *MockUpstream) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (m *MockUpstream) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"errors":[],"results":0,"response":[]}`))
}

// Fixture is the test shape of one upstream fixture item.
type Fixture struct {
	ID         int
	LeagueID   int
	LeagueName string
	Country    string
	HomeID     int
	HomeName   string
	AwayID     int
	AwayName   string
	Kickoff    string
	Status     string
}

// StandingRow is one team row of a league table.
type StandingRow struct {
	TeamID       int
	Played       int
	GoalsFor     int
	GoalsAgainst int
}

// TeamAverages are the goal averages reported by /teams/statistics.
type TeamAverages struct {
	ForHome, ForAway, ForTotal             string
	AgainstHome, AgainstAway, AgainstTotal string
}

// FixturesBody renders a successful /fixtures payload.
func FixturesBody(fixtures ...Fixture) string {
	items := make([]map[string]any, 0, len(fixtures))
	for _, f := range fixtures {
		status := f.Status
		if status == "" {
			status = "NS"
		}
		items = append(items, map[string]any{
			"fixture": map[string]any{
				"id":     f.ID,
				"date":   f.Kickoff,
				"status": map[string]any{"short": status},
			},
			"league": map[string]any{
				"id":      f.LeagueID,
				"name":    f.LeagueName,
				"country": f.Country,
			},
			"teams": map[string]any{
				"home": map[string]any{"id": f.HomeID, "name": f.HomeName},
				"away": map[string]any{"id": f.AwayID, "name": f.AwayName},
			},
			"goals": map[string]any{"home": nil, "away": nil},
		})
	}
	return envelope(items)
}

// StandingsBody renders a successful /standings payload.
func StandingsBody(leagueID, season int, rows ...StandingRow) string {
	table := make([]map[string]any, 0, len(rows))
	for i, r := range rows {
		table = append(table, map[string]any{
			"rank": i + 1,
			"team": map[string]any{"id": r.TeamID},
			"all": map[string]any{
				"played": r.Played,
				"goals":  map[string]any{"for": r.GoalsFor, "against": r.GoalsAgainst},
			},
		})
	}
	return envelope([]map[string]any{{
		"league": map[string]any{
			"id":        leagueID,
			"season":    season,
			"standings": [][]map[string]any{table},
		},
	}})
}

// TeamStatsBody renders a successful /teams/statistics payload.
func TeamStatsBody(teamID int, avg TeamAverages) string {
	return envelope(map[string]any{
		"team": map[string]any{"id": teamID},
		"goals": map[string]any{
			"for": map[string]any{
				"average": map[string]any{"home": avg.ForHome, "away": avg.ForAway, "total": avg.ForTotal},
			},
			"against": map[string]any{
				"average": map[string]any{"home": avg.AgainstHome, "away": avg.AgainstAway, "total": avg.AgainstTotal},
			},
		},
	})
}

// ErrorsBody renders an HTTP 200 application failure payload.
func ErrorsBody(errs map[string]string) string {
	b, _ := json.Marshal(map[string]any{"errors": errs, "results": 0, "response": []any{}})
	return string(b)
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After hint.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  fmt.Sprint(retryAfterSeconds),
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func envelope(response any) string {
	results := 1
	if items, ok := response.([]map[string]any); ok {
		results = len(items)
	}
	b, _ := json.Marshal(map[string]any{
		"errors":   []any{},
		"results":  results,
		"response": response,
	})
	return string(b)
}
