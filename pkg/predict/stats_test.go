package predict

import (
	"testing"

	"github.com/Sternrassler/footy-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTeamGoals(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   TeamGoals
		wantOK bool
	}{
		{
			name: "string averages with decimal comma",
			body: testutil.TeamStatsBody(10, testutil.TeamAverages{
				ForHome: "1,5", ForAway: "1.1", ForTotal: "1.3",
				AgainstHome: "0.9", AgainstAway: "1,4", AgainstTotal: "1.15",
			}),
			want: TeamGoals{
				ForTotal: 1.3, AgainstTotal: 1.15,
				ForHome: 1.5, AgainstHome: 0.9,
				ForAway: 1.1, AgainstAway: 1.4,
			},
			wantOK: true,
		},
		{
			name: "missing sides fall back to totals",
			body: `{"response":{"goals":{"for":{"average":{"total":"1.7"}},"against":{"average":{"total":1.2,"home":null}}}}}`,
			want: TeamGoals{
				ForTotal: 1.7, AgainstTotal: 1.2,
				ForHome: 1.7, AgainstHome: 1.2,
				ForAway: 1.7, AgainstAway: 1.2,
			},
			wantOK: true,
		},
		{
			name: "unparsable side falls back to total",
			body: `{"response":{"goals":{"for":{"average":{"total":"2.0","home":"n/a"}},"against":{"average":{"total":"1.0"}}}}}`,
			want: TeamGoals{
				ForTotal: 2, AgainstTotal: 1,
				ForHome: 2, AgainstHome: 1,
				ForAway: 2, AgainstAway: 1,
			},
			wantOK: true,
		},
		{
			name:   "missing total",
			body:   `{"response":{"goals":{"for":{"average":{"home":"1.5"}},"against":{"average":{"total":"1.0"}}}}}`,
			wantOK: false,
		},
		{
			name:   "error payload with empty response array",
			body:   testutil.ErrorsBody(map[string]string{"team": "not found"}),
			wantOK: false,
		},
		{
			name:   "not json",
			body:   `<html>`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTeamGoals([]byte(tt.body))
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want.ForTotal, got.ForTotal, 1e-9)
				assert.InDelta(t, tt.want.AgainstTotal, got.AgainstTotal, 1e-9)
				assert.InDelta(t, tt.want.ForHome, got.ForHome, 1e-9)
				assert.InDelta(t, tt.want.AgainstHome, got.AgainstHome, 1e-9)
				assert.InDelta(t, tt.want.ForAway, got.ForAway, 1e-9)
				assert.InDelta(t, tt.want.AgainstAway, got.AgainstAway, 1e-9)
			}
		})
	}
}

func TestParseStandings(t *testing.T) {
	body := testutil.StandingsBody(283, 2025,
		testutil.StandingRow{TeamID: 30, Played: 4, GoalsFor: 6, GoalsAgainst: 4},
		testutil.StandingRow{TeamID: 40, Played: 0},
		testutil.StandingRow{TeamID: 0, Played: 9, GoalsFor: 9},
	)

	rows := ParseStandings([]byte(body))
	require.Len(t, rows, 2)
	assert.Equal(t, StandingRow{TeamID: 30, Played: 4, GoalsFor: 6, GoalsAgainst: 4}, rows[30])

	rates := rows[30].Rates()
	assert.InDelta(t, 1.5, rates.Attack, 1e-9)
	assert.InDelta(t, 1.0, rates.Defense, 1e-9)

	// No games played yet: default rates.
	assert.InDelta(t, 1.2, rows[40].Rates().Attack, 1e-9)
}

func TestParseStandings_Unusable(t *testing.T) {
	for _, body := range []string{`{}`, `{"response":[]}`, `{"response":[{"league":{"standings":[]}}]}`, `nope`} {
		assert.Empty(t, ParseStandings([]byte(body)), body)
	}
}
