package merging

import (
	"fmt"
	"strconv"

	"github.com/Ramsey-B/thistle/pkg/models"
)

// ConflictFields is the standard set of scalar fields checked for divergence
// between group members.
var ConflictFields = []string{
	"name",
	"description",
	"cost_price",
	"sale_price",
	"is_active",
	"is_service",
}

// DetectConflicts compares keep against the others on each field and returns
// every field with more than one distinct value, mapped to all of its distinct
// values in first-seen order. Empty string values are ignored; numeric and
// boolean fields always count.
func DetectConflicts(keep models.Part, others []models.Part, fields []string) map[string][]string {
	conflicts := make(map[string][]string)

	for _, field := range fields {
		seen := make(map[string]struct{})
		var values []string

		collect := func(p models.Part) {
			v, ok := fieldValue(p, field)
			if !ok {
				return
			}
			if _, dup := seen[v]; dup {
				return
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}

		collect(keep)
		for _, other := range others {
			collect(other)
		}

		if len(values) > 1 {
			conflicts[field] = values
		}
	}

	return conflicts
}

// fieldValue renders one checked field as a comparable string. ok=false marks
// an empty value that should not participate in conflict detection.
func fieldValue(p models.Part, field string) (string, bool) {
	switch field {
	case "name":
		return p.Name, p.Name != ""
	case "description":
		return p.Description, p.Description != ""
	case "cost_price":
		return strconv.FormatFloat(p.CostPrice, 'f', -1, 64), true
	case "sale_price":
		return strconv.FormatFloat(p.SalePrice, 'f', -1, 64), true
	case "is_active":
		return strconv.FormatBool(p.IsActive), true
	case "is_service":
		return strconv.FormatBool(p.IsService), true
	default:
		return "", false
	}
}

// conflictList renders detected conflicts for a preview in a stable order.
func conflictList(detected map[string][]string, fields []string) []models.Conflict {
	out := make([]models.Conflict, 0, len(detected))
	for _, field := range fields {
		values, ok := detected[field]
		if !ok {
			continue
		}
		out = append(out, models.Conflict{
			Type:        "field_conflict",
			Field:       field,
			Values:      values,
			Description: fmt.Sprintf("field %q has %d distinct values across group members", field, len(values)),
		})
	}
	return out
}
