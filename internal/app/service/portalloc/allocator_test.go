package portalloc

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/internal/platform/db/dbtest"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
)

func shop() *models.Product {
	return &models.Product{ID: "shop-id", Name: "shop", DedicatedPortStart: 8301, DedicatedPortEnd: 8350}
}

func TestClaim_Sequential(t *testing.T) {
	ctx := context.Background()
	a := New(zap.NewNop().Sugar(), dbtest.New(t))

	p1, err := a.Claim(ctx, shop(), "a")
	require.NoError(t, err)
	p2, err := a.Claim(ctx, shop(), "b")
	require.NoError(t, err)
	require.Equal(t, 8301, p1)
	require.Equal(t, 8302, p2)

	held, err := a.Held(ctx, "shop-id")
	require.NoError(t, err)
	require.Equal(t, []int{8301, 8302}, held)
}

func TestClaim_ReusesReleasedPort(t *testing.T) {
	ctx := context.Background()
	a := New(zap.NewNop().Sugar(), dbtest.New(t))

	for _, owner := range []string{"a", "b", "c"} {
		_, err := a.Claim(ctx, shop(), owner)
		require.NoError(t, err)
	}
	require.NoError(t, a.Release(ctx, "shop-id", 8302))
	require.NoError(t, a.Release(ctx, "shop-id", 8302))

	p, err := a.Claim(ctx, shop(), "d")
	require.NoError(t, err)
	require.Equal(t, 8302, p)
}

func TestClaim_Exhaustion(t *testing.T) {
	ctx := context.Background()
	a := New(zap.NewNop().Sugar(), dbtest.New(t))
	small := &models.Product{ID: "tiny", Name: "tiny", DedicatedPortStart: 9000, DedicatedPortEnd: 9001}

	_, err := a.Claim(ctx, small, "a")
	require.NoError(t, err)
	_, err = a.Claim(ctx, small, "b")
	require.NoError(t, err)
	_, err = a.Claim(ctx, small, "c")
	require.ErrorIs(t, err, apperr.ErrPortExhaustion)
}

func TestClaim_RangesArePerProduct(t *testing.T) {
	ctx := context.Background()
	a := New(zap.NewNop().Sugar(), dbtest.New(t))
	erp := &models.Product{ID: "erp-id", Name: "erp", DedicatedPortStart: 8201, DedicatedPortEnd: 8250}

	p, err := a.Claim(ctx, shop(), "a")
	require.NoError(t, err)
	require.Equal(t, 8301, p)
	p, err = a.Claim(ctx, erp, "a")
	require.NoError(t, err)
	require.Equal(t, 8201, p)
}

func TestClaim_ConcurrentNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	a := New(zap.NewNop().Sugar(), dbtest.New(t))

	const n = 20
	ports := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ports[i], errs[i] = a.Claim(ctx, shop(), fmt.Sprintf("owner-%d", i))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	seen := map[int]bool{}
	for _, p := range ports {
		require.False(t, seen[p], "port %d handed out twice", p)
		require.GreaterOrEqual(t, p, 8301)
		require.LessOrEqual(t, p, 8350)
		seen[p] = true
	}
}

func TestClaim_InvalidRange(t *testing.T) {
	a := New(zap.NewNop().Sugar(), dbtest.New(t))
	_, err := a.Claim(context.Background(), &models.Product{ID: "x", Name: "x"}, "a")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestClaim_SameOwnerGetsItsPortBack(t *testing.T) {
	ctx := context.Background()
	a := New(zap.NewNop().Sugar(), dbtest.New(t))

	p1, err := a.Claim(ctx, shop(), "acme")
	require.NoError(t, err)
	_, err = a.Claim(ctx, shop(), "beta")
	require.NoError(t, err)
	p2, err := a.Claim(ctx, shop(), "acme")
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	held, err := a.Held(ctx, "shop-id")
	require.NoError(t, err)
	require.Equal(t, []int{8301, 8302}, held)
}

func TestReleaseOwner(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	a := New(zap.NewNop().Sugar(), gdb)

	_, err := a.Claim(ctx, shop(), "beta")
	require.NoError(t, err)
	// a claim left behind outside the current range still belongs to acme
	require.NoError(t, gdb.Create(&models.PortClaim{ID: "stale", ProductID: "shop-id", Port: 8299, Owner: "acme"}).Error)
	_, err = a.Claim(ctx, shop(), "acme")
	require.NoError(t, err)

	released, err := a.ReleaseOwner(ctx, "shop-id", "acme")
	require.NoError(t, err)
	require.Equal(t, []int{8299, 8302}, released)

	held, err := a.Held(ctx, "shop-id")
	require.NoError(t, err)
	require.Equal(t, []int{8301}, held)

	released, err = a.ReleaseOwner(ctx, "shop-id", "acme")
	require.NoError(t, err)
	require.Empty(t, released)
}
