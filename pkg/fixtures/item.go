// Package fixtures builds the derived fixture views: the whole-day fixture
// list and the per-league slice cut from it without touching the upstream.
package fixtures

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Item is one normalized upstream fixture. Raw keeps the item exactly as
// the upstream sent it so derived slices do not lose fields.
type Item struct {
	Fixture FixtureInfo     `json:"fixture"`
	League  LeagueInfo      `json:"league"`
	Teams   Teams           `json:"teams"`
	Goals   Goals           `json:"goals"`
	Score   json.RawMessage `json:"score,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// FixtureInfo is the fixture block of an item.
type FixtureInfo struct {
	ID      int     `json:"id"`
	Date    string  `json:"date"`
	Referee *string `json:"referee"`
	Status  struct {
		Short string `json:"short"`
	} `json:"status"`
}

// LeagueInfo is the league block of an item.
type LeagueInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Logo    string `json:"logo"`
	Season  int    `json:"season"`
}

// Team is one side of a fixture.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// Teams holds both sides.
type Teams struct {
	Home Team `json:"home"`
	Away Team `json:"away"`
}

// Goals is the current or final score; nil before kickoff.
type Goals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// Normalize extracts the fixture items from any payload shape the system
// stores: {"response": [...]}, {"data": {"response": [...]}},
// {"fixtures": [...]} or a bare array. Unknown objects yield no items.
func Normalize(payload []byte) ([]Item, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, fmt.Errorf("decode fixture array: %w", err)
		}
	} else {
		var envelope struct {
			Response []json.RawMessage `json:"response"`
			Data     *struct {
				Response []json.RawMessage `json:"response"`
			} `json:"data"`
			Fixtures []json.RawMessage `json:"fixtures"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("decode fixture payload: %w", err)
		}
		switch {
		case envelope.Response != nil:
			raws = envelope.Response
		case envelope.Data != nil && envelope.Data.Response != nil:
			raws = envelope.Data.Response
		default:
			raws = envelope.Fixtures
		}
	}

	items := make([]Item, 0, len(raws))
	for i, raw := range raws {
		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode fixture %d: %w", i, err)
		}
		item.Raw = raw
		items = append(items, item)
	}
	return items, nil
}

// FilterLeague returns the items of one league, in order.
func FilterLeague(items []Item, leagueID int) []Item {
	out := make([]Item, 0)
	for _, it := range items {
		if it.League.ID == leagueID {
			out = append(out, it)
		}
	}
	return out
}

// slicePayload is the body of a derived per-league entry.
type slicePayload struct {
	Date             string            `json:"date"`
	FilteredLeagueID int               `json:"filteredLeagueId"`
	Results          int               `json:"results"`
	Response         []json.RawMessage `json:"response"`
}

func encodeSlice(date string, leagueID int, items []Item) ([]byte, error) {
	p := slicePayload{
		Date:             date,
		FilteredLeagueID: leagueID,
		Results:          len(items),
		Response:         make([]json.RawMessage, 0, len(items)),
	}
	for _, it := range items {
		raw := it.Raw
		if raw == nil {
			b, err := json.Marshal(it)
			if err != nil {
				return nil, err
			}
			raw = b
		}
		p.Response = append(p.Response, raw)
	}
	return json.Marshal(p)
}
