package models

// FormField is a field as persisted in a template section
type FormField struct {
	ID          string    `json:"id"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder"`
	Options     []string  `json:"options,omitempty"`
	Order       int       `json:"order"`
	CategoryID  string    `json:"categoryId"`
}

// FormCategory is a named group of fields, one per imported sheet
type FormCategory struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Order       int         `json:"order"`
	Fields      []FormField `json:"fields"`
}

// FieldCount returns the total number of fields across categories
func FieldCount(categories []FormCategory) int {
	n := 0
	for _, c := range categories {
		n += len(c.Fields)
	}
	return n
}

// AppendCategories places imported categories after existing ones, continuing
// the category order. Categories keep their own field orders.
func AppendCategories(existing, imported []FormCategory) []FormCategory {
	out := make([]FormCategory, 0, len(existing)+len(imported))
	out = append(out, existing...)
	next := 0
	for _, c := range existing {
		if c.Order >= next {
			next = c.Order + 1
		}
	}
	for i, c := range imported {
		c.Order = next + i
		out = append(out, c)
	}
	return out
}
