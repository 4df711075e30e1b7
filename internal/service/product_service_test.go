package service_test

import (
	"context"
	"testing"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"github.com/dom/product-console/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminIdentity(t *testing.T, f *fixture) domain.Identity {
	t.Helper()
	admin, _ := testutil.NewUserBuilder().AsAdmin().Build(t, f.db.DB)
	return domain.Identity{UserID: admin.ID, Email: admin.Email, Role: admin.Role}
}

func TestProductService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := adminIdentity(t, f)

	created, err := f.services.Product.Create(ctx, actor, service.CreateProductInput{
		Name: "Desk Lamp", Description: "Warm light", Price: 39.99,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	name := "Desk Lamp XL"
	price := 49.5
	updated, err := f.services.Product.Update(ctx, actor, created.ID, domain.ProductChanges{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp XL", updated.Name)
	assert.Equal(t, "Warm light", updated.Description)
	assert.InDelta(t, 49.5, updated.Price, 0.001)

	stored, err := f.services.Product.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp XL", stored.Name)

	require.NoError(t, f.services.Product.Delete(ctx, actor, created.ID))
	_, err = f.services.Product.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	page, err := f.services.Audit.List(ctx, service.AuditQuery{EntityType: domain.EntityProduct})
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)
	// Newest first.
	assert.Equal(t, domain.ActionDelete, page.Entries[0].Action)
	assert.Equal(t, "Deleted product: Desk Lamp XL", *page.Entries[0].Details)
	assert.Equal(t, domain.ActionUpdate, page.Entries[1].Action)
	assert.Equal(t, domain.ActionCreate, page.Entries[2].Action)
	for _, e := range page.Entries {
		assert.Equal(t, actor.UserID, e.ActorID)
		assert.Equal(t, created.ID, *e.EntityID)
	}

	assert.Equal(t,
		[]domain.AuditAction{domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete},
		f.publisher.Actions())
}

func TestProductService_MutationsRollBackWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := adminIdentity(t, f)
	broken := f.withBrokenAudit()
	existing := testutil.NewProductBuilder().WithName("Original").Build(t, f.db.DB)

	t.Run("create", func(t *testing.T) {
		_, err := broken.Product.Create(ctx, actor, service.CreateProductInput{Name: "Phantom", Price: 1})
		require.ErrorIs(t, err, errAuditDown)

		products, err := f.services.Product.List(ctx, domain.ProductFilter{Search: "Phantom"})
		require.NoError(t, err)
		assert.Empty(t, products)
	})

	t.Run("update", func(t *testing.T) {
		name := "Renamed"
		_, err := broken.Product.Update(ctx, actor, existing.ID, domain.ProductChanges{Name: &name})
		require.ErrorIs(t, err, errAuditDown)

		stored, err := f.services.Product.Get(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, "Original", stored.Name)
	})

	t.Run("delete", func(t *testing.T) {
		err := broken.Product.Delete(ctx, actor, existing.ID)
		require.ErrorIs(t, err, errAuditDown)

		_, err = f.services.Product.Get(ctx, existing.ID)
		assert.NoError(t, err)
	})

	assert.Empty(t, f.publisher.Actions())
}

func TestProductService_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := adminIdentity(t, f)
	missing := uuid.New()

	name := "Anything"
	_, err := f.services.Product.Update(ctx, actor, missing, domain.ProductChanges{Name: &name})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = f.services.Product.Delete(ctx, actor, missing)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.Zero(t, testutil.CountAuditEntries(t, f.db.DB, domain.ActionUpdate))
	assert.Zero(t, testutil.CountAuditEntries(t, f.db.DB, domain.ActionDelete))
}

func TestProductService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.NewProductBuilder().WithName("Oak Table").WithPrice(300).Build(t, f.db.DB)
	testutil.NewProductBuilder().WithName("Pine Chair").WithDescription("Matches the oak table").WithPrice(80).Build(t, f.db.DB)
	testutil.NewProductBuilder().WithName("Lamp").WithPrice(25).Build(t, f.db.DB)

	tests := []struct {
		name   string
		filter domain.ProductFilter
		want   []string
	}{
		{
			name:   "price ascending",
			filter: domain.ProductFilter{SortBy: domain.SortByPrice, SortOrder: domain.SortAsc},
			want:   []string{"Lamp", "Pine Chair", "Oak Table"},
		},
		{
			name:   "name descending",
			filter: domain.ProductFilter{SortBy: domain.SortByName, SortOrder: domain.SortDesc},
			want:   []string{"Pine Chair", "Oak Table", "Lamp"},
		},
		{
			name:   "search matches name or description case-insensitively",
			filter: domain.ProductFilter{Search: "OAK", SortBy: domain.SortByName, SortOrder: domain.SortAsc},
			want:   []string{"Oak Table", "Pine Chair"},
		},
		{
			name:   "like wildcards are literal",
			filter: domain.ProductFilter{Search: "%"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := f.services.Product.List(ctx, tt.filter)
			require.NoError(t, err)

			names := make([]string, 0, len(products))
			for _, p := range products {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
