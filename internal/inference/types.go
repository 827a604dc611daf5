// Package inference turns the positioned cells of a spreadsheet sheet into
// candidate form fields.
//
// Two independent strategies run over every sheet: label/value pairing
// (DetectLabelValuePairs) and tabular header detection (DetectTableHeaders).
// Their outputs are concatenated without deduplication, so a header cell that
// both strategies recognise yields two candidates; the reviewer removes the
// duplicate.
//
// Date-like content is deliberately inferred as text. The form renderer has a
// date type, but existing templates expect imported dates to be free text.
package inference

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/benvon/report-templates/internal/models"
)

// textareaThreshold is the value length above which a value is treated as long-form text.
const textareaThreshold = 50

var booleanValues = map[string]bool{
	"yes": true, "no": true,
	"true": true, "false": true,
	"y": true, "n": true,
	"1": true, "0": true,
}

// labelRule maps label keywords to a field type; rules are checked in order.
type labelRule struct {
	keywords  []string
	fieldType models.FieldType
}

var labelRules = []labelRule{
	{keywords: []string{"date", "time"}, fieldType: models.FieldTypeText},
	{keywords: []string{"number", "qty", "quantity", "amount", "weight", "size"}, fieldType: models.FieldTypeNumber},
	{keywords: []string{"approved", "complete", "check", "confirm", "pass", "fail"}, fieldType: models.FieldTypeBoolean},
	{keywords: []string{"description", "comment", "note", "summary", "detail"}, fieldType: models.FieldTypeTextarea},
}

// TypeFromValue infers a field type from a sample value found next to its label.
func TypeFromValue(value string) models.FieldType {
	v := strings.ToLower(strings.TrimSpace(value))

	if booleanValues[v] {
		return models.FieldTypeBoolean
	}
	if isNumeric(v) {
		return models.FieldTypeNumber
	}
	if utf8.RuneCountInString(v) > textareaThreshold {
		return models.FieldTypeTextarea
	}
	return models.FieldTypeText
}

// TypeFromLabel infers a field type from the label text alone, for labels
// with no adjacent value. The first matching keyword group wins.
func TypeFromLabel(label string) models.FieldType {
	l := strings.ToLower(label)
	for _, rule := range labelRules {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.fieldType
			}
		}
	}
	return models.FieldTypeText
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
