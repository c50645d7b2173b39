package remoteregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/aibridge/catalog"
)

func TestValidateID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id    string
		valid bool
	}{
		{"", false},
		{"x", true},
		{"openai", true},
		{"openai.prod", true},
		{"azure-openai", true},
		{"name/with/slash", false},
		{"name\\backslash", false},
		{"..", false},
		{"name:with:colon", false},
		{".hidden", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			err := ValidateID(tt.id)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.ErrorIs(t, err, catalog.ErrInvalidName)
		})
	}
}

func TestCandidatePaths(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   string
		want []string
	}{
		{"x", []string{"x.yaml", "x.yml"}},
		{"anthropic", []string{"anthropic.yaml", "anthropic.yml"}},
		{"openai.prod", []string{"openai.prod.yaml", "openai.prod.yml"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			got := CandidatePaths(tt.id)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetcherFunc(t *testing.T) {
	t.Parallel()
	var f Fetcher = FetcherFunc(func(_ context.Context, id string) ([]byte, error) {
		return []byte("vendor: " + id), nil
	})
	data, err := f.Fetch(context.Background(), "ollama")
	require.NoError(t, err)
	assert.Equal(t, "vendor: ollama", string(data))
}
