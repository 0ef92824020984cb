package services

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"autoapply/models"
	"autoapply/utils"
)

// MatchCandidate proposes Field as the input for Category. It is only valid
// within the scan that produced Field.
type MatchCandidate struct {
	Field     Field
	Category  models.FieldCategory
	Attribute string
	Value     string
	Score     int
}

// Provenance renders the attribute that produced the match.
func (c MatchCandidate) Provenance() string {
	return c.Attribute + "=" + c.Value
}

// FieldMatcher maps a scan arena onto semantic categories.
type FieldMatcher struct {
	rules  map[models.FieldCategory]MatchRule
	logger *utils.Logger
}

// NewFieldMatcher builds a matcher over the default rule table.
func NewFieldMatcher(logger *utils.Logger) *FieldMatcher {
	return NewFieldMatcherWithRules(defaultRules, logger)
}

// NewFieldMatcherWithRules builds a matcher over a custom table. Patterns are
// folded once here so matching is case-insensitive.
func NewFieldMatcherWithRules(rules []MatchRule, logger *utils.Logger) *FieldMatcher {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	folder := cases.Fold()
	byCategory := make(map[models.FieldCategory]MatchRule, len(rules))
	for _, r := range rules {
		folded := MatchRule{
			Category: r.Category,
			Kind:     r.Kind,
			Patterns: make(map[AttributeTier][]string, len(r.Patterns)),
		}
		for tier, ps := range r.Patterns {
			for _, p := range ps {
				folded.Patterns[tier] = append(folded.Patterns[tier], folder.String(p))
			}
		}
		for _, e := range r.Exclude {
			folded.Exclude = append(folded.Exclude, folder.String(e))
		}
		byCategory[r.Category] = folded
	}
	return &FieldMatcher{rules: byCategory, logger: logger.Named("matcher")}
}

// Match assigns at most one field per category. Categories claim in
// models.CategoryOrder and a claimed field is invisible to later categories.
// Within a category the highest tier wins, then the earliest field.
func (m *FieldMatcher) Match(fields []Field) map[models.FieldCategory]MatchCandidate {
	folder := cases.Fold()
	folded := make([]models.AttributeBag, len(fields))
	for i, f := range fields {
		bag := make(models.AttributeBag, len(f.Attrs))
		for j, a := range f.Attrs {
			bag[j] = models.Attribute{Name: a.Name, Value: folder.String(a.Value)}
		}
		folded[i] = bag
	}

	matches := make(map[models.FieldCategory]MatchCandidate)
	claimed := make(map[int]bool)

	for _, category := range models.CategoryOrder {
		rule, ok := m.rules[category]
		if !ok {
			continue
		}

		var best *MatchCandidate
		for i, f := range fields {
			if claimed[f.Index] || f.Kind != rule.Kind {
				continue
			}
			if pins, pinned := pinnedCategories(folded[i]); pinned && !allows(pins, category) {
				continue
			}
			if rule.excludes(folded[i]) {
				continue
			}
			attr, tier, hit := rule.firstHit(folded[i])
			if !hit {
				continue
			}
			if best != nil && tier.Score() <= best.Score {
				continue
			}
			best = &MatchCandidate{
				Field:     f,
				Category:  category,
				Attribute: attr,
				Value:     f.Attrs.Get(attr),
				Score:     tier.Score(),
			}
		}

		if best != nil {
			matches[category] = *best
			claimed[best.Field.Index] = true
			m.logger.Debug("matched field",
				zap.String("category", string(category)),
				zap.Int("field", best.Field.Index),
				zap.String("via", best.Provenance()),
				zap.Int("score", best.Score))
		}
	}
	return matches
}

// firstHit walks the tiers from most to least authoritative and returns the
// first attribute containing one of the tier's patterns.
func (r MatchRule) firstHit(bag models.AttributeBag) (string, AttributeTier, bool) {
	for _, group := range tierAttributes {
		patterns := r.Patterns[group.Tier]
		if len(patterns) == 0 {
			continue
		}
		for _, name := range group.Names {
			v := bag.Get(name)
			if v == "" {
				continue
			}
			for _, p := range patterns {
				if strings.Contains(v, p) {
					return name, group.Tier, true
				}
			}
		}
	}
	return "", 0, false
}

func (r MatchRule) excludes(bag models.AttributeBag) bool {
	if len(r.Exclude) == 0 {
		return false
	}
	for _, a := range bag {
		if a.Name == models.AttrParentText {
			continue
		}
		for _, e := range r.Exclude {
			if strings.Contains(a.Value, e) {
				return true
			}
		}
	}
	return false
}
