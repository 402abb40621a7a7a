package fixtures

import (
	"fmt"
	"sort"
)

// DefaultCountry labels leagues without a country, e.g. cup competitions.
const DefaultCountry = "International"

// LeagueSummary is one league of a day overview.
type LeagueSummary struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Logo    *string `json:"logo"`
	Matches int     `json:"matches"`
}

// Summary is the per-league overview of a day.
type Summary struct {
	TotalFixtures int             `json:"totalFixtures"`
	Leagues       []LeagueSummary `json:"leagues"`
}

// Summarize groups items by league. The first non-empty name, country and
// logo seen for a league win. Leagues are ordered by match count, most
// first, then by id. Items without a league id count towards the total only.
func Summarize(items []Item) Summary {
	byLeague := make(map[int]*LeagueSummary)
	order := make([]int, 0)

	for _, it := range items {
		id := it.League.ID
		if id == 0 {
			continue
		}

		cur, ok := byLeague[id]
		if !ok {
			cur = &LeagueSummary{ID: id}
			byLeague[id] = cur
			order = append(order, id)
		}
		cur.Matches++

		if cur.Name == "" {
			cur.Name = it.League.Name
		}
		if cur.Country == "" {
			cur.Country = it.League.Country
		}
		if cur.Logo == nil && it.League.Logo != "" {
			logo := it.League.Logo
			cur.Logo = &logo
		}
	}

	leagues := make([]LeagueSummary, 0, len(order))
	for _, id := range order {
		l := *byLeague[id]
		if l.Name == "" {
			l.Name = fmt.Sprintf("League %d", id)
		}
		if l.Country == "" {
			l.Country = DefaultCountry
		}
		leagues = append(leagues, l)
	}

	sort.SliceStable(leagues, func(i, j int) bool {
		if leagues[i].Matches != leagues[j].Matches {
			return leagues[i].Matches > leagues[j].Matches
		}
		return leagues[i].ID < leagues[j].ID
	})

	return Summary{TotalFixtures: len(items), Leagues: leagues}
}

// TeamIDs returns the distinct team ids of items in first-seen order,
// home before away.
func TeamIDs(items []Item) []int {
	seen := make(map[int]bool)
	ids := make([]int, 0, len(items)*2)
	for _, it := range items {
		for _, id := range []int{it.Teams.Home.ID, it.Teams.Away.ID} {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
