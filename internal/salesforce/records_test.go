package salesforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenRelationship(t *testing.T) {
	records := []Record{
		{
			"Id": "001",
			"Contacts": map[string]any{
				"records": []any{
					map[string]any{"Name": "Ann"},
					map[string]any{"Name": "Bob"},
				},
			},
		},
		{"other": 1},
	}

	flattened := FlattenRelationship(records, "Contacts")

	require.Len(t, flattened, 2)
	assert.Equal(t, Record{"Name": "Ann"}, flattened[0])
	assert.Equal(t, Record{"Name": "Bob"}, flattened[1])
}

func TestFlattenRelationship_MissingRelationshipDropped(t *testing.T) {
	records := []Record{
		{"Id": "001"},
		{"Id": "002", "Contacts": "not a collection"},
	}

	assert.Empty(t, FlattenRelationship(records, "Contacts"))
}

func TestFlattenRelationship_EmptyInput(t *testing.T) {
	assert.Empty(t, FlattenRelationship(nil, "Contacts"))
}
