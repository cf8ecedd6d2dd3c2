package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// On sqlite the race is serialised by the database-wide write lock taken at
// BEGIN (dbtest opens with _txlock=immediate); the driver emits no FOR UPDATE.
// Only the postgres variant exercises the row locks, and it is skipped unless
// STOREFRONT_DB_DSN is set.
func TestConcurrentAddItemNeverOvershootsStock(t *testing.T) {
	runConcurrentAdds(t, newSQLiteFixture(t))
}

func TestConcurrentAddItemNeverOvershootsStockPostgres(t *testing.T) {
	runConcurrentAdds(t, newFixture(t, dbtest.OpenPostgres(t)))
}

func runConcurrentAdds(t *testing.T, f *fixture) {
	t.Helper()
	const (
		stock   = 5
		workers = 12
	)
	ctx := context.Background()
	cart := f.sessionCart(t)
	p := dbtest.MustCreateProduct(t, f.conn, stock)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
		other    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.AddItem(ctx, cart, p.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case hasCode(err, pkgerrors.CodeInsufficientStock):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, stock, accepted)
	assert.Equal(t, workers-stock, rejected)
	assert.Equal(t, map[uuid.UUID]int{p.ID: stock}, f.lines(t, cart.ID))
}

func TestConcurrentMergesAreSerialized(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	anon := f.sessionCart(t)
	user, _ := f.userCart(t)
	p := dbtest.MustCreateProduct(t, f.conn, 10)
	_, err := f.svc.AddItem(ctx, anon, p.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, user, p.ID, 2)
	require.NoError(t, err)

	results := make([]*MergeResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.Merge(ctx, anon, user)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0].AlreadyMerged != results[1].AlreadyMerged, "exactly one merge should do the work")
	assert.Equal(t, map[uuid.UUID]int{p.ID: 5}, f.lines(t, user.ID))
}
