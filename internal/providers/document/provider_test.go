package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Process(t *testing.T) {
	p := New()

	output, err := p.Process(context.Background(), map[string]any{
		"document": "Name: Choco Bar\nIngredients: milk, sugar\njust a note\n: orphaned value",
	})
	require.NoError(t, err)

	fields, ok := output["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Choco Bar", fields["name"])
	assert.Equal(t, "milk, sugar", fields["ingredients"])
	assert.Len(t, fields, 2, "lines without a key/value shape are skipped")

	assert.Equal(t, 4, output["lines"])
}

func TestProvider_ProcessRejectsBadInput(t *testing.T) {
	p := New()

	_, err := p.Process(context.Background(), map[string]any{"document": ""})
	assert.Error(t, err)

	_, err = p.Process(context.Background(), map[string]any{"document": 42})
	assert.Error(t, err)
}

func TestProvider_DeclaresCapability(t *testing.T) {
	caps := New().Capabilities()

	require.Len(t, caps, 1)
	assert.Equal(t, CapabilityParse, caps[0].Name)
}
