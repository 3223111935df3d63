package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

func TestRestrictedDay(t *testing.T) {
	day, ok := RestrictedDay("Saturday Special")
	require.True(t, ok)
	require.Equal(t, time.Saturday, day)

	_, ok = RestrictedDay("Cheeseburger")
	require.False(t, ok)
}

func TestAvailableToday(t *testing.T) {
	saturday := time.Date(2025, time.June, 7, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, saturday.Weekday())

	ok, _ := AvailableToday("Saturday Special", saturday)
	require.True(t, ok)

	ok, requiredDay := AvailableToday("Saturday Special", saturday.AddDate(0, 0, 1))
	require.False(t, ok)
	require.Equal(t, "Saturday", requiredDay)

	ok, _ = AvailableToday("Cheeseburger", saturday.AddDate(0, 0, 3))
	require.True(t, ok)
}

func TestMenuLookups(t *testing.T) {
	menu := &Menu{
		Categories: []Category{{ID: "c1", Name: "Mains"}},
		Items: []MenuItem{
			{ID: "i1", Name: "Burger", CategoryID: "c1"},
			{ID: "i2", Name: "Fries", CategoryID: "c1"},
			{ID: "i3", Name: "Soft Drink", CategoryID: "c2"},
		},
	}

	it, ok := menu.Item("i2")
	require.True(t, ok)
	require.Equal(t, "Fries", it.Name)

	_, ok = menu.Item("missing")
	require.False(t, ok)

	require.Len(t, menu.ItemsInCategory("c1"), 2)

	it, ok = menu.FindItemByNameContains("FF", "Fries")
	require.True(t, ok)
	require.Equal(t, "Fries", it.Name)

	_, ok = menu.FindItemByNameContains("Milkshake")
	require.False(t, ok)
}

func TestModifierGroupOption(t *testing.T) {
	g := ModifierGroup{Options: []ModifierOption{{ID: "o1", Name: "Large", Price: 200}}}
	opt, ok := g.Option("o1")
	require.True(t, ok)
	require.Equal(t, int64(200), opt.Price)
	_, ok = g.Option("o2")
	require.False(t, ok)
}

type stubStore struct {
	menu  *Menu
	calls int
}

func (s *stubStore) LoadMenu(ctx context.Context, tenantID string) (*Menu, error) {
	s.calls++
	return s.menu, nil
}

func TestServiceMenuWithoutCache(t *testing.T) {
	store := &stubStore{menu: &Menu{Items: []MenuItem{{ID: "i1", Name: "Burger"}}}}
	svc, err := NewService(ServiceConfig{Store: store})
	require.NoError(t, err)

	menu, err := svc.Menu(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, menu.Items, 1)
	require.Equal(t, 1, store.calls)
}

func TestMenuHandler(t *testing.T) {
	store := &stubStore{menu: &Menu{Items: []MenuItem{{ID: "i1", Name: "Burger", Price: 1000}}}}
	svc, err := NewService(ServiceConfig{Store: store})
	require.NoError(t, err)
	handler := NewHandler(HandlerConfig{Service: svc})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/menu", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "t1"))
	rec := httptest.NewRecorder()
	handler.Menu(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Burger")
}

func TestMenuHandlerRequiresTenant(t *testing.T) {
	store := &stubStore{menu: &Menu{}}
	svc, err := NewService(ServiceConfig{Store: store})
	require.NoError(t, err)
	handler := NewHandler(HandlerConfig{Service: svc})

	rec := httptest.NewRecorder()
	handler.Menu(rec, httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/menu", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
