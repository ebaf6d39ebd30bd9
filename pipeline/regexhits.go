package pipeline

import (
	"fmt"
	"regexp"

	"thread/classifier"
	"thread/database"
	"thread/models"
)

// RegexMatcher runs the literal detectors from the regex_patterns table.
// Patterns are recompiled per analysis so reviewer-added rules take
// effect without a restart.
type RegexMatcher struct {
	order    []string
	attacks  map[string]models.Attack
	compiled map[string]*regexp.Regexp
}

func NewRegexMatcher(store *database.Store) (*RegexMatcher, error) {
	patterns, err := store.RegexPatterns()
	if err != nil {
		return nil, fmt.Errorf("load regex patterns: %w", err)
	}

	grouped := make(map[string][]string)
	var order []string
	for _, p := range patterns {
		if _, seen := grouped[p.AttackUID]; !seen {
			order = append(order, p.AttackUID)
		}
		grouped[p.AttackUID] = append(grouped[p.AttackUID], regexp.QuoteMeta(p.Pattern))
	}

	m := &RegexMatcher{
		order:    order,
		attacks:  make(map[string]models.Attack),
		compiled: make(map[string]*regexp.Regexp),
	}
	for uid, pats := range grouped {
		attack, err := store.AttackByUID(uid)
		if err != nil {
			continue
		}
		if attack.Inactive {
			continue
		}
		joined := ""
		for i, p := range pats {
			if i > 0 {
				joined += "|"
			}
			joined += `\b` + p + `\b`
		}
		re, err := regexp.Compile("(?i)" + joined)
		if err != nil {
			continue
		}
		m.attacks[uid] = *attack
		m.compiled[uid] = re
	}
	return m, nil
}

// Match returns the techniques whose patterns fire on the text.
func (m *RegexMatcher) Match(text string) []classifier.TechniqueRef {
	var hits []classifier.TechniqueRef
	for _, uid := range m.order {
		re, ok := m.compiled[uid]
		if !ok || !re.MatchString(text) {
			continue
		}
		a := m.attacks[uid]
		hits = append(hits, classifier.TechniqueRef{UID: a.UID, TID: a.TID, Name: a.Name})
	}
	return hits
}
