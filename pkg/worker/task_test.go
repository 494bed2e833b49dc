package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	registry := Registry{}
	registry.Register("echo", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	fn, err := registry.Lookup("echo")
	require.NoError(t, err)
	require.NotNil(t, fn)

	result, err := fn(context.Background(), []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), result)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	registry := Registry{}

	_, err := registry.Lookup("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown task "nope"`)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	registry := Registry{}
	registry.Register("task", func(ctx context.Context, payload []byte) ([]byte, error) {
		return []byte("old"), nil
	})
	registry.Register("task", func(ctx context.Context, payload []byte) ([]byte, error) {
		return []byte("new"), nil
	})

	fn, err := registry.Lookup("task")
	require.NoError(t, err)
	result, _ := fn(context.Background(), nil)
	assert.Equal(t, []byte("new"), result)
}
