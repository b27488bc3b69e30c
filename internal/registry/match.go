package registry

import (
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// minFuzzyCoverage is the share of a catalog name a fuzzy query must cover.
// "Kanpur Ngr" covers 10 of 12 runes of "kanpur nagar"; "Ara" covers 3 of 4
// of "agra" and is refused.
const minFuzzyCoverage = 0.8

type matchKind int

const (
	matchNone matchKind = iota
	// matchLoose is a whole-word containment or fuzzy match.
	matchLoose
	// matchExact is a code or normalized name match.
	matchExact
)

var nameSuffixes = []string{" district", " division", " tahsil", " zila"}

// normalizeName lowercases, collapses whitespace and strips administrative
// suffixes.
func normalizeName(name string) string {
	n := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	for _, suffix := range nameSuffixes {
		n = strings.TrimSpace(strings.TrimSuffix(n, suffix))
	}
	return n
}

// nameIndex matches free-text place names against catalog names.
type nameIndex struct {
	names []string
	exact map[string]int
}

func newNameIndex(districts []domain.District) nameIndex {
	x := nameIndex{
		names: make([]string, len(districts)),
		exact: make(map[string]int, len(districts)),
	}
	for i, d := range districts {
		key := normalizeName(d.Name)
		x.names[i] = key
		if _, taken := x.exact[key]; key != "" && !taken {
			x.exact[key] = i
		}
	}
	return x
}

// match resolves name to a catalog index. It tries, in order: exact
// normalized name, whole-word containment in either direction, and a fuzzy
// match that covers most of the catalog name. Loose strategies only answer
// when exactly one district qualifies.
func (x nameIndex) match(name string) (int, matchKind) {
	key := normalizeName(name)
	if key == "" {
		return -1, matchNone
	}
	if i, ok := x.exact[key]; ok {
		return i, matchExact
	}

	var contained []int
	for i, n := range x.names {
		if n != "" && (containsWords(key, n) || containsWords(n, key)) {
			contained = append(contained, i)
		}
	}
	switch len(contained) {
	case 0:
	case 1:
		return contained[0], matchLoose
	default:
		return -1, matchNone
	}

	candidate := -1
	for _, m := range fuzzy.Find(key, x.names) {
		coverage := float64(utf8.RuneCountInString(key)) / float64(utf8.RuneCountInString(m.Str))
		if coverage < minFuzzyCoverage {
			continue
		}
		if candidate >= 0 {
			return -1, matchNone
		}
		candidate = m.Index
	}
	if candidate < 0 {
		return -1, matchNone
	}
	return candidate, matchLoose
}

// containsWords reports whether sub appears in s as a run of whole words.
func containsWords(s, sub string) bool {
	return strings.Contains(" "+s+" ", " "+sub+" ")
}
