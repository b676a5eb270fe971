//go:build unit

package infra_test

import (
	"testing"

	"bloodbank-ops/internal/infra"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestWrapRepoErr(t *testing.T) {
	cause := errs.New("boom")
	cases := []struct {
		kind     infra.RepositoryErrorKind
		category error
	}{
		{infra.KindNotFound, errs.ErrNotFound},
		{infra.KindConflict, errs.ErrConflict},
		{infra.KindUnavailable, errs.ErrStoreUnavailable},
		{infra.KindDBFailure, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			err := infra.WrapRepoErr(logger.Discard(), tc.kind, "load unit", cause)

			assert.True(t, infra.IsKind(err, tc.kind))
			assert.True(t, errs.Is(err, cause), "cause stays reachable")
			assert.Contains(t, err.Error(), string(tc.kind)+": load unit")
			if tc.category != nil {
				assert.True(t, errs.Is(err, tc.category))
			}
			assert.Equal(t, tc.kind == infra.KindUnavailable, errs.IsRetryable(err))
		})
	}

	assert.False(t, infra.IsKind(errs.New("plain"), infra.KindNotFound))
}
