package review

import (
	"fmt"

	"github.com/benvon/report-templates/internal/models"
)

// Assemble groups the included fields by sheet, in first-seen order, into
// form categories. Field orders are renumbered from zero within each
// category. Excluded fields never appear in the result.
func (s *Store) Assemble() []models.FormCategory {
	index := make(map[string]int)
	var categories []models.FormCategory
	for _, id := range s.ids {
		f := s.fields[id]
		if !f.Included {
			continue
		}
		i, ok := index[f.SheetName]
		if !ok {
			i = len(categories)
			index[f.SheetName] = i
			categories = append(categories, models.FormCategory{
				ID:          f.CategoryID,
				Name:        f.SheetName,
				Description: fmt.Sprintf("Fields imported from sheet %q", f.SheetName),
				Order:       i,
			})
		}
		field := f.FormField()
		field.Order = len(categories[i].Fields)
		categories[i].Fields = append(categories[i].Fields, field)
	}
	return categories
}
