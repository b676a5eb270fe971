//go:build unit

package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"bloodbank-ops/internal/infra/blob"
	"bloodbank-ops/internal/infra/blob/memory"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.Put(ctx, "b", strings.NewReader("one"), "text/plain")
	require.NoError(t, err)
	_, err = s.Put(ctx, "a", strings.NewReader("two"), "text/plain")
	require.NoError(t, err)
	_, err = s.Put(ctx, "b", strings.NewReader("three"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.Keys())

	info, rc, err := s.Get(ctx, "b")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "three", string(body))
	assert.Equal(t, int64(5), info.Size)

	_, _, err = s.Get(ctx, "c")
	assert.True(t, errs.Is(err, blob.ErrNotFound))
}
