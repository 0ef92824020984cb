package models

// Derived keys appended to every bag after the raw DOM attributes.
const (
	AttrLabel      = "label"
	AttrParentText = "parent-text"
)

// Attribute is one name/value pair read from a form element.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AttributeBag holds the attributes of one element in the order they were read.
type AttributeBag []Attribute

// Get returns the value stored under name.
func (b AttributeBag) Get(name string) string {
	for _, a := range b {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Identity is the short human-readable handle used in notes: the element's
// name, else its id, else "unknown".
func (b AttributeBag) Identity() string {
	if v := b.Get("name"); v != "" {
		return v
	}
	if v := b.Get("id"); v != "" {
		return v
	}
	return "unknown"
}
