package services

import (
	"strings"

	"autoapply/models"
)

// AttributeTier ranks how authoritative an attribute is. Structured signals
// outrank presentation text, which outranks free label and parent text.
type AttributeTier int

const (
	TierFreeText     AttributeTier = 1
	TierPresentation AttributeTier = 2
	TierStructural   AttributeTier = 3
)

// Score is the candidate score a hit in this tier earns.
func (t AttributeTier) Score() int {
	return int(t) * 100
}

// tierAttributes lists, per tier, the attributes scanned and their order.
// Matching walks this table rather than the bag, so bag order never matters.
var tierAttributes = []struct {
	Tier  AttributeTier
	Names []string
}{
	{TierStructural, []string{
		"autocomplete", "type", "name", "id", "accept",
		"data-testid", "data-test", "data-qa", "data-cy", "data-automation-id",
		"data-field", "data-name", "formcontrolname", "ng-model", "v-model", "x-model", "data-bind",
	}},
	{TierPresentation, []string{
		"placeholder", "title", "aria-label", "aria-placeholder", "data-label", "class",
	}},
	{TierFreeText, []string{
		models.AttrLabel, models.AttrParentText,
	}},
}

// MatchRule describes how one category is recognised.
type MatchRule struct {
	Category models.FieldCategory
	Kind     FieldKind
	Patterns map[AttributeTier][]string
	// Exclude disqualifies an element for this category when any attribute
	// other than parent text contains one of these fragments.
	Exclude []string
}

var defaultRules = []MatchRule{
	{
		Category: models.CategoryName,
		Kind:     KindText,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"name", "fname", "lname"},
			TierPresentation: {"full name", "your name", "first name", "last name", "name"},
			TierFreeText:     {"full name", "your name", "first name", "last name", "name"},
		},
		Exclude: []string{"company", "employer", "user", "school", "university", "reference", "manager", "recruiter"},
	},
	{
		Category: models.CategoryEmail,
		Kind:     KindText,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"email", "e-mail"},
			TierPresentation: {"email", "e-mail", "@"},
			TierFreeText:     {"email", "e-mail"},
		},
	},
	{
		Category: models.CategoryPhone,
		Kind:     KindText,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"phone", "tel", "mobile", "cell"},
			TierPresentation: {"phone", "telephone", "mobile", "cell"},
			TierFreeText:     {"phone", "telephone", "mobile", "cell"},
		},
	},
	{
		Category: models.CategoryLinkedIn,
		Kind:     KindText,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"linkedin"},
			TierPresentation: {"linkedin"},
			TierFreeText:     {"linkedin"},
		},
	},
	{
		Category: models.CategoryWebsite,
		Kind:     KindText,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"website", "portfolio", "homepage", "personal_site", "personal-site", "blog", "url"},
			TierPresentation: {"website", "portfolio", "personal site", "homepage", "blog", "url"},
			TierFreeText:     {"website", "portfolio", "personal site", "homepage", "blog"},
		},
		Exclude: []string{"linkedin"},
	},
	{
		Category: models.CategoryResume,
		Kind:     KindFile,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"resume", "cv", "pdf", "file"},
			TierPresentation: {"resume", "cv", "curriculum", "upload"},
			TierFreeText:     {"resume", "cv", "curriculum", "upload", "attach"},
		},
		Exclude: []string{"cover", "letter", "transcript", "photo", "avatar", "headshot"},
	},
	{
		Category: models.CategoryConsent,
		Kind:     KindCheckbox,
		Patterns: map[AttributeTier][]string{
			TierStructural:   {"consent", "agree", "terms", "privacy", "gdpr", "acknowledge", "accept"},
			TierPresentation: {"consent", "agree", "terms", "privacy", "acknowledge", "accept"},
			TierFreeText:     {"consent", "agree", "terms", "privacy", "acknowledge", "accept"},
		},
		Exclude: []string{"marketing", "newsletter", "promotional", "sms", "text message"},
	},
}

// autocompletePins maps WHATWG autocomplete tokens to the categories an
// element carrying them may be claimed by. A generic url only narrows the
// element to the link categories.
var autocompletePins = map[string][]models.FieldCategory{
	"name":         {models.CategoryName},
	"given-name":   {models.CategoryName},
	"family-name":  {models.CategoryName},
	"email":        {models.CategoryEmail},
	"tel":          {models.CategoryPhone},
	"tel-national": {models.CategoryPhone},
	"tel-local":    {models.CategoryPhone},
	"url":          {models.CategoryLinkedIn, models.CategoryWebsite},
}

// typePins does the same for input types.
var typePins = map[string][]models.FieldCategory{
	"email": {models.CategoryEmail},
	"tel":   {models.CategoryPhone},
	"url":   {models.CategoryLinkedIn, models.CategoryWebsite},
}

// pinnedCategories returns the categories an element is restricted to. ok is
// false when the element is unrestricted.
func pinnedCategories(bag models.AttributeBag) (pins []models.FieldCategory, ok bool) {
	if ac := strings.Fields(strings.ToLower(bag.Get("autocomplete"))); len(ac) > 0 {
		if pins, ok := autocompletePins[ac[len(ac)-1]]; ok {
			return pins, true
		}
	}
	if pins, ok := typePins[strings.ToLower(bag.Get("type"))]; ok {
		return pins, true
	}
	return nil, false
}

// allows reports whether a pinned element may be claimed by c.
func allows(pins []models.FieldCategory, c models.FieldCategory) bool {
	for _, p := range pins {
		if p == c {
			return true
		}
	}
	return false
}
