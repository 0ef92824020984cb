package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"autoapply/models"
	"autoapply/utils"
)

// FieldKind is the widget family of a catalogued element.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindFile     FieldKind = "file"
	KindCheckbox FieldKind = "checkbox"
)

const (
	fieldSelector  = "input, textarea"
	maxDerivedText = 200
)

// catalogAttributes is the fixed order attributes are read into every bag:
// identity, testing hooks, framework bindings, accessibility, presentation.
var catalogAttributes = []string{
	"autocomplete",
	"type",
	"name",
	"id",
	"accept",
	"data-testid",
	"data-test",
	"data-qa",
	"data-cy",
	"data-automation-id",
	"data-field",
	"data-name",
	"formcontrolname",
	"ng-model",
	"v-model",
	"x-model",
	"data-bind",
	"aria-label",
	"aria-placeholder",
	"placeholder",
	"title",
	"data-label",
	"class",
}

// textInputTypes are the input types treated as typeable fields.
var textInputTypes = map[string]bool{
	"":       true,
	"text":   true,
	"email":  true,
	"tel":    true,
	"url":    true,
	"search": true,
}

// Field is one entry of a scan arena. Index is the document position and is
// only meaningful together with the scan that produced it.
type Field struct {
	Index  int
	Kind   FieldKind
	Handle Element
	Attrs  models.AttributeBag
}

// FieldCatalog enumerates fillable elements on the current page.
type FieldCatalog struct {
	logger *utils.Logger
}

func NewFieldCatalog(logger *utils.Logger) *FieldCatalog {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &FieldCatalog{logger: logger.Named("catalog")}
}

// Scan returns the page's fillable fields in document order. It never mutates
// the page. An empty page yields an empty slice and no error.
func (c *FieldCatalog) Scan(page PageSession) ([]Field, error) {
	elements, err := page.Query(fieldSelector)
	if err != nil {
		return nil, fmt.Errorf("enumerate fields: %w", err)
	}

	fields := make([]Field, 0, len(elements))
	for _, el := range elements {
		kind, ok, err := classify(el)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		// Styled uploads and checkboxes often hide the native input; text
		// inputs that are hidden are usually honeypots.
		if kind == KindText {
			visible, err := el.IsVisible()
			if err != nil && errors.Is(err, ErrSessionFault) {
				return nil, err
			}
			if !visible {
				continue
			}
		}

		bag, err := buildBag(el)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Index:  len(fields),
			Kind:   kind,
			Handle: el,
			Attrs:  bag,
		})
	}

	c.logger.Debug("scanned page", zap.String("url", page.URL()), zap.Int("fields", len(fields)))
	return fields, nil
}

func classify(el Element) (FieldKind, bool, error) {
	switch strings.ToLower(el.TagName()) {
	case "textarea":
		rows, err := readAttr(el, "rows")
		if err != nil {
			return "", false, err
		}
		if rows == "" || rows == "1" {
			return KindText, true, nil
		}
		return "", false, nil
	case "input":
		typ, err := readAttr(el, "type")
		if err != nil {
			return "", false, err
		}
		typ = strings.ToLower(strings.TrimSpace(typ))
		switch {
		case typ == "file":
			return KindFile, true, nil
		case typ == "checkbox":
			return KindCheckbox, true, nil
		case textInputTypes[typ]:
			return KindText, true, nil
		}
	}
	return "", false, nil
}

func buildBag(el Element) (models.AttributeBag, error) {
	bag := make(models.AttributeBag, 0, len(catalogAttributes)+2)
	for _, name := range catalogAttributes {
		v, err := readAttr(el, name)
		if err != nil {
			return nil, err
		}
		if v = normalizeText(v); v != "" {
			bag = append(bag, models.Attribute{Name: name, Value: v})
		}
	}

	label, err := el.LabelText()
	if err != nil && errors.Is(err, ErrSessionFault) {
		return nil, err
	}
	if label = normalizeText(label); label != "" {
		bag = append(bag, models.Attribute{Name: models.AttrLabel, Value: label})
	}

	parent, err := el.ParentText()
	if err != nil && errors.Is(err, ErrSessionFault) {
		return nil, err
	}
	if parent = normalizeText(parent); parent != "" {
		bag = append(bag, models.Attribute{Name: models.AttrParentText, Value: parent})
	}
	return bag, nil
}

// readAttr swallows per-attribute failures but surfaces session faults.
func readAttr(el Element, name string) (string, error) {
	v, err := el.Attribute(name)
	if err != nil {
		if errors.Is(err, ErrSessionFault) {
			return "", err
		}
		return "", nil
	}
	return v, nil
}

// normalizeText applies NFKC, collapses whitespace and caps the length.
func normalizeText(s string) string {
	s = strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
	if r := []rune(s); len(r) > maxDerivedText {
		s = string(r[:maxDerivedText])
	}
	return s
}
