package cache

import (
	"fmt"
	"strings"
)

// Key identifies a cache entry.
//
// Two namespaces exist:
//
//	GET https://v3.football.api-sports.io/fixtures?date=2025-08-20   (raw upstream response)
//	DERIVED fixtures:2025-08-20:283                                 (computed view)
type Key string

const (
	rawPrefix     = "GET "
	derivedPrefix = "DERIVED "
)

// RawKey returns the key for an upstream response identified by its canonical URL.
func RawKey(canonicalURL string) Key {
	return Key(rawPrefix + canonicalURL)
}

// DerivedKey returns the key for a derived view with a semantic name.
func DerivedKey(name string) Key {
	return Key(derivedPrefix + name)
}

// FixturesDayKey is the derived key holding all fixtures of a day.
func FixturesDayKey(date string) Key {
	return DerivedKey("fixtures-day:" + date)
}

// FixturesLeagueKey is the derived key holding one league's fixtures of a day.
func FixturesLeagueKey(date string, leagueID int) Key {
	return DerivedKey(fmt.Sprintf("fixtures:%s:%d", date, leagueID))
}

// IsDerived reports whether the key belongs to the derived namespace.
func (k Key) IsDerived() bool {
	return strings.HasPrefix(string(k), derivedPrefix)
}

// String returns the key as stored.
func (k Key) String() string {
	return string(k)
}
