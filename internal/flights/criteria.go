package flights

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	routePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:from|leave|depart)\s+([a-z][a-z\s]{2,15})\s+(?:to|for|arrive|land)\s+([a-z][a-z\s]{2,15})`),
		regexp.MustCompile(`([a-z][a-z\s]{2,15})\s+(?:to|-)\s+([a-z][a-z\s]{2,15})(?:\s+flight|\s+trip|\s*$)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
		regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
		regexp.MustCompile(`\b((?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:,\s*\d{4})?)\b`),
	}

	passengerPattern = regexp.MustCompile(`\b(\d+)\s+(?:passenger|person|people|traveler|adult)s?\b`)

	// Verbs that the loose route patterns tend to capture as city names.
	nonCityWords = map[string]bool{
		"flight": true, "flights": true, "book": true, "find": true,
		"need": true, "want": true, "show": true, "get": true,
	}
)

// ExtractCriteria pulls search criteria out of a free-text message using
// keyword and pattern matching. Anything not mentioned stays at its zero
// value.
func ExtractCriteria(message string) Criteria {
	lower := strings.ToLower(message)
	var criteria Criteria

	for _, pattern := range routePatterns {
		m := pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		origin := strings.TrimSpace(m[1])
		destination := strings.TrimSpace(m[2])
		if nonCityWords[origin] || nonCityWords[destination] || len(origin) < 3 || len(destination) < 3 {
			continue
		}
		criteria.Origin = titleCase(origin)
		criteria.Destination = titleCase(destination)
		break
	}

	for _, pattern := range datePatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			criteria.DepartureDate = m[1]
			break
		}
	}

	if m := passengerPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			criteria.PassengerCount = n
		}
	}

	switch {
	case strings.Contains(lower, "business"), strings.Contains(lower, "first class"), strings.Contains(lower, "premium"):
		criteria.Class = "business"
	case strings.Contains(lower, "economy"):
		criteria.Class = "economy"
	}

	return criteria
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
