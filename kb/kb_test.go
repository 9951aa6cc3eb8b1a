package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResultSet_Kinds(t *testing.T) {
	assert.Equal(t, ResultSetEmpty, NewResultSet(nil).Kind)
	assert.Equal(t, ResultSetEmpty, NewResultSet([]Result{}).Kind)
	assert.Equal(t, ResultSetSingle, NewResultSet([]Result{{RefID: "1"}}).Kind)
	assert.Equal(t, ResultSetMany, NewResultSet([]Result{{RefID: "1"}, {RefID: "2"}}).Kind)
}

func TestExtractIdentifiers(t *testing.T) {
	t.Run("empty set yields empty slice", func(t *testing.T) {
		ids := ExtractIdentifiers(NewResultSet(nil))
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})

	t.Run("single result", func(t *testing.T) {
		set := NewResultSet([]Result{
			{RefID: "7", Score: 0.91, Location: "s3://catalog-docs/items/B0B6GHQ1M2.txt"},
		})
		assert.Equal(t, []string{"B0B6GHQ1M2"}, ExtractIdentifiers(set))
	})

	t.Run("many results preserve order", func(t *testing.T) {
		set := NewResultSet([]Result{
			{Location: "s3://catalog-docs/items/B0A1.txt", Score: 0.9},
			{Location: "s3://catalog-docs/items/B0B2.txt", Score: 0.8},
			{Location: "s3://catalog-docs/items/B0C3.txt", Score: 0.7},
		})
		assert.Equal(t, []string{"B0A1", "B0B2", "B0C3"}, ExtractIdentifiers(set))
	})
}

func TestIdentifierFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"s3://catalog-docs/items/B0B6GHQ1M2.txt", "B0B6GHQ1M2"},
		{"https://storage.example.com/docs/B08ABC.json", "B08ABC"},
		{"/local/path/B0XYZ.md", "B0XYZ"},
		{"B0PLAIN.txt", "B0PLAIN"},
		{"no-extension", "no-extension"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IdentifierFromLocation(tt.location), tt.location)
	}
}
