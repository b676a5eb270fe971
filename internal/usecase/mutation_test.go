//go:build unit

package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra"
	"bloodbank-ops/internal/infra/store/memory"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/pkg/logger"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/common/opstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails the nth call of one repository write made inside a
// transaction. Every other call reaches the memory store.
type failingStore struct {
	*memory.Store
	method string
	nth    int
	err    error

	mu    sync.Mutex
	calls int
}

func failOn(env *opstest.Env, method string, nth int, err error) *failingStore {
	f := &failingStore{Store: env.Store, method: method, nth: nth, err: err}
	env.Deps.Store = f
	return f
}

func (f *failingStore) hit(method string) error {
	if method != f.method {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.nth {
		return f.err
	}
	return nil
}

func (f *failingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx usecase.Repositories) error) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, tx usecase.Repositories) error {
		return fn(ctx, failingRepos{Repositories: tx, store: f})
	})
}

type failingRepos struct {
	usecase.Repositories
	store *failingStore
}

func (r failingRepos) SaveUnit(ctx context.Context, u *unit.Unit) error {
	if err := r.store.hit("SaveUnit"); err != nil {
		return err
	}
	return r.Repositories.SaveUnit(ctx, u)
}

func (r failingRepos) UpdateUnit(ctx context.Context, u *unit.Unit) error {
	if err := r.store.hit("UpdateUnit"); err != nil {
		return err
	}
	return r.Repositories.UpdateUnit(ctx, u)
}

func (r failingRepos) DeleteUnit(ctx context.Context, id string) error {
	if err := r.store.hit("DeleteUnit"); err != nil {
		return err
	}
	return r.Repositories.DeleteUnit(ctx, id)
}

func (r failingRepos) AppendEvent(ctx context.Context, e event.Event) error {
	if err := r.store.hit("AppendEvent"); err != nil {
		return err
	}
	return r.Repositories.AppendEvent(ctx, e)
}

var _ usecase.Store = (*failingStore)(nil)

func inventoryEvents(t *testing.T, env *opstest.Env, reason event.Reason) []event.Event {
	t.Helper()
	all, err := env.Store.ListEvents(context.Background(), event.Query{
		HospitalID: "hospital-1",
		Kinds:      []event.Kind{event.KindInventoryUpdate},
	})
	require.NoError(t, err)
	var out []event.Event
	for _, e := range all {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

func TestMutation_IntakeWhenEventAppendFails(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	failOn(env, "AppendEvent", 1, errs.New("event log write failed"))

	_, err := env.Ledger().Intake(ctx, intakeReq(unit.OPositive, "fridge-1", days(1)))
	require.Error(t, err)

	units, err := env.Store.ListUnits(ctx, unit.Filter{HospitalID: "hospital-1"})
	require.NoError(t, err)
	assert.Empty(t, units, "the unit insert is rolled back with the event")
	n, err := env.Store.CountUnitsInLocation(ctx, "fridge-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, inventoryEvents(t, env, event.ReasonDonation))
	assert.Empty(t, env.Sink.OfKind(alert.KindInventoryChanged), "nothing changed, nothing announced")

	u := intake(t, env.Ledger(), unit.OPositive, "fridge-1", days(1))
	donations := inventoryEvents(t, env, event.ReasonDonation)
	require.Len(t, donations, 1)
	assert.Equal(t, []string{u.ID()}, donations[0].UnitIDs)
}

func TestMutation_FulfillWhenADispenseFails(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	ledger := env.Ledger()
	for _, ago := range []int{3, 2, 1} {
		intake(t, ledger, unit.ONegative, "fridge-1", days(ago))
	}
	requests := usecase.NewRequests(env.Deps)
	req, err := requests.Raise(ctx, "hospital-1", unit.ONegative, 2, event.UrgencyCritical)
	require.NoError(t, err)
	env.Clock.Add(time.Hour)
	env.Sink.Reset()

	failOn(env, "DeleteUnit", 2, errs.New("disk full"))
	_, err = requests.Fulfill(ctx, req.RequestID)
	require.Error(t, err)

	units, err := env.Store.ListUnits(ctx, unit.Filter{HospitalID: "hospital-1"})
	require.NoError(t, err)
	assert.Len(t, units, 3, "the first dispensed unit is back")
	for _, u := range units {
		assert.Equal(t, unit.StatusAvailable, u.Status())
	}
	assert.Empty(t, inventoryEvents(t, env, event.ReasonUsage))

	status, err := requests.Status(ctx, req.RequestID)
	require.NoError(t, err)
	assert.False(t, status.Fulfilled())
	pending, err := requests.Pending(ctx, "hospital-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.RequestID, pending[0].RequestID)
	assert.Empty(t, env.Sink.OfKind(alert.KindInventoryChanged))

	f, err := requests.Fulfill(ctx, req.RequestID)
	require.NoError(t, err, "the request can still be fulfilled")
	assert.Len(t, f.UnitIDs, 2)
	usage := inventoryEvents(t, env, event.ReasonUsage)
	require.Len(t, usage, 1)
	assert.Equal(t, -2, usage[0].Quantity)
}

func TestMutation_FulfillRetriedAfterConnectionLoss(t *testing.T) {
	ctx := context.Background()
	env := opstest.NewEnv(t)
	addFridge(t, env, "fridge-1", 10)
	ledger := env.Ledger()
	for _, ago := range []int{3, 2, 1} {
		intake(t, ledger, unit.ONegative, "fridge-1", days(ago))
	}
	requests := usecase.NewRequests(env.Deps)
	req, err := requests.Raise(ctx, "hospital-1", unit.ONegative, 2, event.UrgencyRoutine)
	require.NoError(t, err)
	env.Clock.Add(time.Hour)

	dropped := infra.WrapRepoErr(logger.Discard(), infra.KindUnavailable, "connection reset", nil)
	require.True(t, errs.IsRetryable(dropped))
	failOn(env, "DeleteUnit", 2, dropped)

	f, err := requests.Fulfill(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Len(t, f.UnitIDs, 2)

	units, err := env.Store.ListUnits(ctx, unit.Filter{HospitalID: "hospital-1"})
	require.NoError(t, err)
	assert.Len(t, units, 1)

	logged, err := env.Store.ListEvents(ctx, event.Query{RequestID: req.RequestID})
	require.NoError(t, err)
	require.Len(t, logged, 2, "one request and one fulfillment")
	assert.Equal(t, event.KindRequestFulfilled, logged[1].Kind)
	usage := inventoryEvents(t, env, event.ReasonUsage)
	require.Len(t, usage, 1, "the retried transaction logs usage once")
	assert.ElementsMatch(t, f.UnitIDs, usage[0].UnitIDs)
}

func TestMutation_SweepWhenAWriteFails(t *testing.T) {
	cases := []struct {
		name   string
		method string
		nth    int
	}{
		{name: "second status update", method: "UpdateUnit", nth: 2},
		{name: "expiration event", method: "AppendEvent", nth: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			env := opstest.NewEnv(t)
			addFridge(t, env, "fridge-1", 10)
			stale := []*unit.Unit{
				storedUnit(t, env, unit.ANegative, 43),
				storedUnit(t, env, unit.BPositive, 44),
			}
			failOn(env, tc.method, tc.nth, errs.New("disk full"))

			res, err := usecase.NewSweeper(env.Deps, nil, env.Config.Monitor).Sweep(ctx)
			require.Error(t, err)
			assert.Zero(t, res.Expired, "nothing was committed")

			for _, u := range stale {
				got, err := env.Store.GetUnit(ctx, u.ID())
				require.NoError(t, err)
				assert.Equal(t, unit.StatusAvailable, got.Status())
			}
			assert.Empty(t, inventoryEvents(t, env, event.ReasonExpiration))
		})
	}
}
