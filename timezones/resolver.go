// Package timezones maps employees and KPI records to IANA zones and converts
// between stored UTC instants and local calendar dates.
package timezones

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"kpitracker/models"
)

const DefaultZone = "Asia/Kolkata"

// KeywordRule maps a case-insensitive substring of an office/branch/location
// field to a zone.
type KeywordRule struct {
	Keyword string
	Zone    string
}

var DefaultKeywords = []KeywordRule{
	{Keyword: "vegas", Zone: "America/Los_Angeles"},
	{Keyword: "usa", Zone: "America/Los_Angeles"},
	{Keyword: "united states", Zone: "America/Los_Angeles"},
	{Keyword: "los angeles", Zone: "America/Los_Angeles"},
	{Keyword: "california", Zone: "America/Los_Angeles"},
	{Keyword: "india", Zone: "Asia/Kolkata"},
	{Keyword: "kolkata", Zone: "Asia/Kolkata"},
	{Keyword: "nagpur", Zone: "Asia/Kolkata"},
}

var DefaultAliases = map[string]string{
	"Asia/Calcutta": "Asia/Kolkata",
	"US/Pacific":    "America/Los_Angeles",
	"IST":           "Asia/Kolkata",
	"PST":           "America/Los_Angeles",
	"PDT":           "America/Los_Angeles",
}

// Hints are the raw fields a zone can be derived from, in priority order.
type Hints struct {
	Explicit []string
	Places   []string
}

type Resolver struct {
	defaultZone string
	aliases     map[string]string
	keywords    []KeywordRule
	locations   sync.Map
}

// NewResolver validates every zone named by the tables up front so that
// Resolve never has to fail later.
func NewResolver(defaultZone string, aliases map[string]string, keywords []KeywordRule) (*Resolver, error) {
	r := &Resolver{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		if _, err := time.LoadLocation(to); err != nil {
			return nil, fmt.Errorf("alias %q points to unknown zone %q", from, to)
		}
		r.aliases[strings.ToLower(strings.TrimSpace(from))] = to
	}
	zone, ok := r.Canonical(defaultZone)
	if !ok {
		return nil, fmt.Errorf("unknown default timezone %q", defaultZone)
	}
	r.defaultZone = zone
	for _, rule := range keywords {
		kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if kw == "" {
			continue
		}
		z, ok := r.Canonical(rule.Zone)
		if !ok {
			return nil, fmt.Errorf("keyword %q points to unknown zone %q", rule.Keyword, rule.Zone)
		}
		r.keywords = append(r.keywords, KeywordRule{Keyword: kw, Zone: z})
	}
	return r, nil
}

func DefaultResolver() *Resolver {
	r, err := NewResolver(DefaultZone, DefaultAliases, DefaultKeywords)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Resolver) Default() string {
	return r.defaultZone
}

// Canonical applies the alias table and reports whether name is a loadable zone.
func (r *Resolver) Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return "", false
	}
	if alias, ok := r.aliases[strings.ToLower(name)]; ok {
		name = alias
	}
	if _, err := r.load(name); err != nil {
		return "", false
	}
	return name, true
}

func (r *Resolver) Resolve(h Hints) string {
	for _, candidate := range h.Explicit {
		if zone, ok := r.Canonical(candidate); ok {
			return zone
		}
	}
	for _, place := range h.Places {
		place = strings.ToLower(place)
		if place == "" {
			continue
		}
		for _, rule := range r.keywords {
			if strings.Contains(place, rule.Keyword) {
				return rule.Zone
			}
		}
	}
	return r.defaultZone
}

func (r *Resolver) ResolveEmployee(e *models.Employee) string {
	if e == nil {
		return r.defaultZone
	}
	return r.Resolve(Hints{
		Explicit: []string{e.Timezone, e.TZ},
		Places:   []string{e.Office, e.Branch, e.Location},
	})
}

// ResolveKPI prefers the zone stored on the record.
func (r *Resolver) ResolveKPI(k *models.KPI) string {
	if k == nil {
		return r.defaultZone
	}
	return r.Resolve(Hints{Explicit: []string{k.Timezone}})
}

// Location always returns a usable location, falling back to the default zone.
func (r *Resolver) Location(name string) *time.Location {
	if zone, ok := r.Canonical(name); ok {
		loc, _ := r.load(zone)
		return loc
	}
	loc, _ := r.load(r.defaultZone)
	return loc
}

func (r *Resolver) load(name string) (*time.Location, error) {
	if cached, ok := r.locations.Load(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	r.locations.Store(name, loc)
	return loc, nil
}

// ParseKeywords reads "keyword=Zone,keyword=Zone".
func ParseKeywords(raw string) ([]KeywordRule, error) {
	pairs, err := parsePairs(raw)
	if err != nil {
		return nil, err
	}
	rules := make([]KeywordRule, 0, len(pairs))
	for _, p := range pairs {
		rules = append(rules, KeywordRule{Keyword: p[0], Zone: p[1]})
	}
	return rules, nil
}

// ParseAliases reads "Legacy/Zone=Modern/Zone,...".
func ParseAliases(raw string) (map[string]string, error) {
	pairs, err := parsePairs(raw)
	if err != nil {
		return nil, err
	}
	aliases := make(map[string]string, len(pairs))
	for _, p := range pairs {
		aliases[p[0]] = p[1]
	}
	return aliases, nil
}

func parsePairs(raw string) ([][2]string, error) {
	var pairs [][2]string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("malformed entry %q, want key=value", item)
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs, nil
}
