package basket

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/metrics"
	"github.com/vladislavdragonenkov/basket/internal/service/address"
	"github.com/vladislavdragonenkov/basket/internal/storage/memory"
)

func TestService_SingleVendor(t *testing.T) {
	south := mart(1, southLoc)
	f := newFixture(t, []domain.Mart{south}, []domain.Product{product(1, "Atta", 1000, 5, south)})

	resp, err := f.optimize(t, true, domain.RequestedItem{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	plan := resp.Result
	assert.Equal(t, domain.Money(2000), plan.ItemsPrice)
	assert.Equal(t, int64(35), plan.DeliveryTotal)
	assert.Equal(t, domain.Money(5500), plan.GrandTotal)
	assert.Equal(t, 15, plan.ETATotalMin)

	require.Len(t, plan.Marts, 1)
	mp := plan.Marts[0]
	assert.Equal(t, int64(1), mp.MartID)
	assert.InDelta(t, 4.92, mp.DistanceKm, 0.01)
	assert.Equal(t, 2.0, mp.WeightKg)
	require.Len(t, mp.Items, 1)
	assert.Equal(t, domain.PlanLine{ProductID: 1, Name: "Atta", Qty: 2, UnitPrice: 1000, LinePrice: 2000}, mp.Items[0])

	assert.Equal(t, 2, resp.ItemsCount)
	assert.Equal(t, int64(1), resp.Address.ID)
	assert.Equal(t, "12 Beach Rd, Visakhapatnam 530001", resp.Address.Summary)
	assert.Equal(t, home.Lat, resp.Address.Lat)
	assert.Contains(t, resp.Notes, "₹5/km + ₹5/kg")
	assert.False(t, resp.Truncated)
}

func TestService_SubstitutionLowersCost(t *testing.T) {
	south, near := mart(1, southLoc), mart(2, nearLoc)
	f := newFixture(t,
		[]domain.Mart{south, near},
		[]domain.Product{
			product(1, "Milk", 1200, 5, south),
			product(2, "Milk", 800, 5, near),
		})

	baseline, err := f.optimize(t, false, domain.RequestedItem{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	swapped, err := f.optimize(t, true, domain.RequestedItem{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.Money(4200), baseline.Result.GrandTotal)
	assert.Less(t, swapped.Result.GrandTotal, baseline.Result.GrandTotal)
	require.Len(t, swapped.Result.Marts, 1)
	assert.Equal(t, int64(2), swapped.Result.Marts[0].MartID)
	assert.Equal(t, int64(2), swapped.Result.Marts[0].Items[0].ProductID)
}

func TestService_OutOfStock(t *testing.T) {
	south, near := mart(1, southLoc), mart(2, nearLoc)

	t.Run("no substitute", func(t *testing.T) {
		f := newFixture(t, []domain.Mart{south}, []domain.Product{product(1, "Paneer", 1000, 0, south)})

		_, err := f.optimize(t, true, domain.RequestedItem{ProductID: 1, Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrNoPurchasableItems)
		_, err = f.optimize(t, false, domain.RequestedItem{ProductID: 1, Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrNoPurchasableItems)
	})

	t.Run("substitute in another mart", func(t *testing.T) {
		f := newFixture(t, []domain.Mart{south, near}, []domain.Product{
			product(1, "Paneer", 1000, 0, south),
			product(2, "Paneer", 1500, 3, near),
		})

		resp, err := f.optimize(t, true, domain.RequestedItem{ProductID: 1, Quantity: 1})
		require.NoError(t, err)
		require.Len(t, resp.Result.Marts, 1)
		assert.Equal(t, int64(2), resp.Result.Marts[0].Items[0].ProductID)
	})
}

func TestService_InputErrors(t *testing.T) {
	south := mart(1, southLoc)
	f := newFixture(t, []domain.Mart{south}, []domain.Product{product(1, "Atta", 1000, 5, south)})
	ctx := context.Background()

	_, err := f.service.Optimize(ctx, testUser, OptimizeRequest{})
	assert.ErrorIs(t, err, domain.ErrItemsRequired)

	_, err = f.optimize(t, true, domain.RequestedItem{ProductID: 404, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNoValidProducts)

	_, err = f.optimize(t, true, domain.RequestedItem{ProductID: 1, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrNoPurchasableItems)

	missing := int64(99)
	_, err = f.service.Optimize(ctx, testUser, OptimizeRequest{
		Items:     []domain.RequestedItem{{ProductID: 1, Quantity: 1}},
		AddressID: &missing,
	})
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)

	_, err = f.service.Optimize(ctx, testUser+1, OptimizeRequest{
		Items: []domain.RequestedItem{{ProductID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrNoAddressOnFile)
}

func TestService_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBasketMetricsWithRegisterer(reg)

	south := mart(1, southLoc)
	f := newFixture(t, []domain.Mart{south}, []domain.Product{product(1, "Atta", 1000, 5, south)}, WithMetrics(m))

	_, err := f.optimize(t, true, domain.RequestedItem{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	_, err = f.optimize(t, true, domain.RequestedItem{ProductID: 404, Quantity: 1})
	require.Error(t, err)

	expected := `
# HELP basket_optimize_runs_total Total number of basket optimization runs by result
# TYPE basket_optimize_runs_total counter
basket_optimize_runs_total{result="ok"} 1
basket_optimize_runs_total{result="rejected"} 1
# HELP basket_optimizer_active_runs Number of optimization runs in progress
# TYPE basket_optimizer_active_runs gauge
basket_optimizer_active_runs 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"basket_optimize_runs_total", "basket_optimizer_active_runs"))
}

// failingCatalog отдаёт ошибку хранилища на выбранном методе.
type failingCatalog struct {
	*memory.CatalogRepository
	failProducts, failVariants bool
}

var errCatalogDown = errors.New("catalog unavailable")

func (c failingCatalog) ProductsByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if c.failProducts {
		return nil, errCatalogDown
	}
	return c.CatalogRepository.ProductsByIDs(ctx, ids)
}

func (c failingCatalog) ProductVariantsByName(ctx context.Context, name string, approvedOnly, inStockOnly bool) ([]domain.Product, error) {
	if c.failVariants {
		return nil, errCatalogDown
	}
	return c.CatalogRepository.ProductVariantsByName(ctx, name, approvedOnly, inStockOnly)
}

func TestService_CatalogFailuresAreCountedAsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBasketMetricsWithRegisterer(reg)

	south := mart(1, southLoc)
	f := newFixture(t, []domain.Mart{south}, []domain.Product{product(1, "Atta", 1000, 5, south)})
	resolver := address.NewResolver(f.addresses, nil, nil)
	items := []domain.RequestedItem{{ProductID: 1, Quantity: 1}}

	for _, repo := range []failingCatalog{
		{CatalogRepository: f.catalog, failProducts: true},
		{CatalogRepository: f.catalog, failVariants: true},
	} {
		svc := NewService(repo, resolver, nil, WithMetrics(m))
		_, err := svc.Optimize(context.Background(), testUser, OptimizeRequest{Items: items, AllowSwaps: true})
		require.ErrorIs(t, err, errCatalogDown)
	}

	expected := `
# HELP basket_optimize_runs_total Total number of basket optimization runs by result
# TYPE basket_optimize_runs_total counter
basket_optimize_runs_total{result="error"} 2
# HELP basket_optimizer_active_runs Number of optimization runs in progress
# TYPE basket_optimizer_active_runs gauge
basket_optimizer_active_runs 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"basket_optimize_runs_total", "basket_optimizer_active_runs"))
}

func TestService_OptimizerOptionsAreApplied(t *testing.T) {
	south, north := mart(1, southLoc), mart(2, northLoc)
	f := newFixture(t,
		[]domain.Mart{south, north},
		[]domain.Product{
			product(10, "Milk", 1000, 5, south),
			product(11, "Bread", 1000, 5, south),
			product(12, "Bread", 900, 5, north),
		},
		WithOptimizerOptions(WithMaxEvaluations(1)),
	)

	resp, err := f.optimize(t, true,
		domain.RequestedItem{ProductID: 10, Quantity: 1},
		domain.RequestedItem{ProductID: 11, Quantity: 1},
	)
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.Equal(t, domain.Money(5500), resp.Result.GrandTotal)
}

type stubGeocoder struct {
	location domain.Coordinate
	found    bool
	err      error
}

func (s stubGeocoder) Geocode(context.Context, string) (domain.Coordinate, bool, error) {
	return s.location, s.found, s.err
}

func TestService_NearbyMarts(t *testing.T) {
	closed := mart(4, southLoc)
	closed.Approved = false
	f := newFixture(t, []domain.Mart{mart(1, southLoc), mart(2, northLoc), mart(3, nearLoc), closed}, nil)
	svc := NewService(f.catalog, nil, stubGeocoder{location: home, found: true})
	ctx := context.Background()

	res, err := svc.NearbyMarts(ctx, NearbyQuery{Address: "  Beach Rd, Vizag "})
	require.NoError(t, err)
	assert.Equal(t, "Beach Rd, Vizag", res.Address)
	assert.Equal(t, home.Lat, res.AddressLat)
	assert.Equal(t, domain.DefaultUnitWeightKg, res.AssumedWeightKg)

	ids := make([]int64, 0, len(res.Marts))
	for _, m := range res.Marts {
		ids = append(ids, m.MartID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
	assert.Equal(t, 8, res.Marts[0].ETAMin)
	assert.Equal(t, int64(18), res.Marts[0].DeliveryCharge)

	radius := 3.0
	res, err = svc.NearbyMarts(ctx, NearbyQuery{Address: "Vizag", RadiusKm: &radius})
	require.NoError(t, err)
	require.Len(t, res.Marts, 1)
	assert.Equal(t, int64(3), res.Marts[0].MartID)

	heavy := 3.0
	res, err = svc.NearbyMarts(ctx, NearbyQuery{Address: "Vizag", WeightKg: &heavy})
	require.NoError(t, err)
	assert.Equal(t, int64(28), res.Marts[0].DeliveryCharge)
}

func TestService_NearbyMartsErrors(t *testing.T) {
	catalog := newFixture(t, []domain.Mart{mart(1, southLoc)}, nil).catalog
	ctx := context.Background()

	_, err := NewService(catalog, nil, stubGeocoder{found: true}).NearbyMarts(ctx, NearbyQuery{Address: "   "})
	assert.ErrorIs(t, err, domain.ErrAddressRequired)

	_, err = NewService(catalog, nil, stubGeocoder{}).NearbyMarts(ctx, NearbyQuery{Address: "nowhere"})
	assert.ErrorIs(t, err, domain.ErrCouldNotGeocode)

	_, err = NewService(catalog, nil, stubGeocoder{err: errors.New("upstream down")}).NearbyMarts(ctx, NearbyQuery{Address: "x"})
	assert.ErrorIs(t, err, domain.ErrCouldNotGeocode)

	_, err = NewService(catalog, nil, stubGeocoder{err: context.DeadlineExceeded}).NearbyMarts(ctx, NearbyQuery{Address: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = NewService(catalog, nil, nil).NearbyMarts(ctx, NearbyQuery{Address: "x"})
	assert.ErrorIs(t, err, domain.ErrCouldNotGeocode)
}

func TestParseShoppingList(t *testing.T) {
	items, err := ParseShoppingList("milk, bread\n\n eggs ,,rice\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"milk", "bread", "eggs", "rice"}, items)

	items, err = ParseShoppingList(" , \n")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = ParseShoppingList("")
	assert.ErrorIs(t, err, domain.ErrShoppingListEmpty)
}
