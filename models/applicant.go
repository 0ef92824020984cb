package models

// Applicant is the data one run fills into a form.
type Applicant struct {
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
	Phone      string `json:"phone" yaml:"phone"`
	LinkedIn   string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	Website    string `json:"website,omitempty" yaml:"website,omitempty"`
	ResumePath string `json:"resume_path" yaml:"resume_path"`
	// AutoConsent allows the filler to tick a consent checkbox.
	AutoConsent bool `json:"auto_consent" yaml:"auto_consent"`
}

// TextValue returns the value to type for a text category and whether the
// applicant supplied one.
func (a Applicant) TextValue(c FieldCategory) (string, bool) {
	var v string
	switch c {
	case CategoryName:
		v = a.Name
	case CategoryEmail:
		v = a.Email
	case CategoryPhone:
		v = a.Phone
	case CategoryLinkedIn:
		v = a.LinkedIn
	case CategoryWebsite:
		v = a.Website
	}
	return v, v != ""
}

// Requested lists the categories that must appear in fields_filled: every
// supplied text value plus the resume.
func (a Applicant) Requested() []FieldCategory {
	var out []FieldCategory
	for _, c := range CategoryOrder {
		if c.IsText() {
			if _, ok := a.TextValue(c); ok {
				out = append(out, c)
			}
		}
	}
	return append(out, CategoryResume)
}
