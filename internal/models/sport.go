package models

import (
	"fmt"
	"strings"
	"time"
)

// Sport enumerates the supported head-to-head fantasy sports.
type Sport string

const (
	SportBasketball Sport = "basketball"
	SportFootball   Sport = "football"
	SportBaseball   Sport = "baseball"
	SportHockey     Sport = "hockey"
)

// ParseSport normalises a user-supplied sport string.
func ParseSport(s string) (Sport, error) {
	switch Sport(strings.ToLower(s)) {
	case SportBasketball:
		return SportBasketball, nil
	case SportFootball:
		return SportFootball, nil
	case SportBaseball:
		return SportBaseball, nil
	case SportHockey:
		return SportHockey, nil
	}
	return "", fmt.Errorf("invalid sport %q: supported are basketball, football, baseball, hockey", s)
}

// ESPNCode returns ESPN's fantasy game code for the sport.
func (s Sport) ESPNCode() string {
	switch s {
	case SportFootball:
		return "ffl"
	case SportBaseball:
		return "flb"
	case SportHockey:
		return "fhl"
	default:
		return "fba"
	}
}

// SleeperCode returns Sleeper's sport code. Sleeper carries no baseball or
// hockey leagues; callers must reject those before building an adapter.
func (s Sport) SleeperCode() (string, bool) {
	switch s {
	case SportFootball:
		return "nfl", true
	case SportBasketball:
		return "nba", true
	}
	return "", false
}

// YahooGameKey returns the game_key prefix of Yahoo league identifiers.
func (s Sport) YahooGameKey() string {
	switch s {
	case SportFootball:
		return "nfl"
	case SportBaseball:
		return "mlb"
	case SportHockey:
		return "nhl"
	default:
		return "nba"
	}
}

// CurrentSeason returns the season year a league of this sport is in right
// now. Basketball and hockey seasons span two calendar years and are named
// after the later one; football rolls over in March; baseball follows the
// calendar year.
func CurrentSeason(s Sport) int {
	now := time.Now()
	switch s {
	case SportBasketball, SportHockey:
		if now.Month() >= time.October {
			return now.Year() + 1
		}
		return now.Year()
	case SportFootball:
		if now.Month() <= time.February {
			return now.Year() - 1
		}
		return now.Year()
	default:
		return now.Year()
	}
}
