package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeSearchText lowercases a string and strips diacritical marks
// (e.g. "Jiří" -> "jiri") so operators can search names without accents.
func normalizeSearchText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return strings.ToLower(result)
}

// eventMatches reports whether the event matches the free-text query across
// employee name, identifier, message, mode and event type.
func eventMatches(event *StoredEvent, query string) bool {
	if query == "" {
		return true
	}
	needle := normalizeSearchText(query)
	for _, field := range []string{
		event.EmployeeName,
		event.EmployeeID,
		event.Message,
		string(event.Mode),
		string(event.EventType),
	} {
		if strings.Contains(normalizeSearchText(field), needle) {
			return true
		}
	}
	return false
}
