package merging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/thistle/pkg/models"
)

func TestDetectConflictsIdenticalParts(t *testing.T) {
	keep := models.Part{ID: 1, Name: "Oil Filter", Description: "Spin-on", CostPrice: 4.5, SalePrice: 9.99, IsActive: true}
	other := keep
	other.ID = 2

	conflicts := DetectConflicts(keep, []models.Part{other}, ConflictFields)
	assert.Empty(t, conflicts)
}

func TestDetectConflictsAllDistinctValuesReported(t *testing.T) {
	keep := models.Part{ID: 1, Name: "Oil Filter", CostPrice: 4.5, IsActive: true}
	others := []models.Part{
		{ID: 2, Name: "Oil Filter Premium", CostPrice: 5.0, IsActive: true},
		{ID: 3, Name: "Filter, Oil", CostPrice: 4.5, IsActive: true},
	}

	conflicts := DetectConflicts(keep, others, ConflictFields)

	require.Contains(t, conflicts, "name")
	assert.Equal(t, []string{"Oil Filter", "Oil Filter Premium", "Filter, Oil"}, conflicts["name"])

	require.Contains(t, conflicts, "cost_price")
	assert.Equal(t, []string{"4.5", "5"}, conflicts["cost_price"])

	assert.NotContains(t, conflicts, "is_active")
}

func TestDetectConflictsIgnoresEmptyStrings(t *testing.T) {
	keep := models.Part{ID: 1, Name: "Oil Filter", Description: "", IsActive: true}
	others := []models.Part{
		{ID: 2, Name: "Oil Filter", Description: "Spin-on cartridge", IsActive: true},
		{ID: 3, Name: "", Description: "", IsActive: true},
	}

	conflicts := DetectConflicts(keep, others, ConflictFields)

	// Only one non-empty description exists, so the field does not conflict.
	assert.NotContains(t, conflicts, "description")
	assert.NotContains(t, conflicts, "name")
}

func TestDetectConflictsBooleanFields(t *testing.T) {
	keep := models.Part{ID: 1, Name: "Labor", IsService: true, IsActive: true}
	others := []models.Part{{ID: 2, Name: "Labor", IsService: false, IsActive: true}}

	conflicts := DetectConflicts(keep, others, ConflictFields)

	require.Contains(t, conflicts, "is_service")
	assert.ElementsMatch(t, []string{"true", "false"}, conflicts["is_service"])
}
