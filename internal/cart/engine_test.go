package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bakery/internal/cart"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
	"github.com/vladislavdragonenkov/bakery/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger.WithField("component", "cart-test")
}

func product(id string, price int64) domain.ProductRef {
	return domain.ProductRef{
		ID:        id,
		Name:      domain.LocalizedText{domain.LocaleEN: id, domain.LocaleBN: id + "-bn"},
		UnitPrice: decimal.NewFromInt(price),
	}
}

type stubRecorder struct {
	mutations []string
	failures  int
}

func (r *stubRecorder) RecordCartMutation(op string) { r.mutations = append(r.mutations, op) }
func (r *stubRecorder) RecordCartRestoreFailure()    { r.failures++ }

// failingStore отдаёт ошибку на запись и опционально на чтение.
type failingStore struct {
	domain.KVStore
	getErr error
	setErr error
}

func (s failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.KVStore.Get(ctx, key)
}

func (s failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.KVStore.Set(ctx, key, value)
}

func TestEngine_EmptyCart(t *testing.T) {
	engine := cart.Load(context.Background(), memory.NewKVStore(), cart.WithLogger(loggerForTests()))

	assert.True(t, engine.Total().IsZero())
	assert.Equal(t, 0, engine.ItemCount())
	assert.Empty(t, engine.Items())
	assert.Equal(t, cart.DefaultKey, engine.Key())
}

func TestEngine_TotalsAcrossProducts(t *testing.T) {
	ctx := context.Background()
	engine := cart.Load(ctx, memory.NewKVStore())

	require.NoError(t, engine.AddItem(ctx, product("a", 100), 2))
	require.NoError(t, engine.AddItem(ctx, product("b", 50), 1))

	assert.True(t, engine.Total().Equal(decimal.NewFromInt(250)), "total = %s", engine.Total())
	assert.Equal(t, 3, engine.ItemCount())
}

func TestEngine_AddItemIsAdditive(t *testing.T) {
	ctx := context.Background()
	engine := cart.Load(ctx, memory.NewKVStore())

	quantities := []int{1, 3, 2, 5}
	sum := 0
	for _, q := range quantities {
		require.NoError(t, engine.AddItem(ctx, product("bun", 20), q))
		sum += q
	}

	assert.Equal(t, 1, engine.Len())
	assert.Equal(t, sum, engine.Quantity("bun"))
}

func TestEngine_AddItemPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	engine := cart.Load(ctx, memory.NewKVStore())

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, engine.AddItem(ctx, product(id, 10), 1))
	}
	require.NoError(t, engine.AddItem(ctx, product("a", 10), 4))

	items := engine.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "c", items[0].Product.ID)
	assert.Equal(t, "a", items[1].Product.ID)
	assert.Equal(t, 5, items[1].Quantity)
	assert.Equal(t, "b", items[2].Product.ID)
}

func TestEngine_AddItemIgnoresNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	engine := cart.Load(ctx, memory.NewKVStore())

	require.NoError(t, engine.AddItem(ctx, product("a", 10), 0))
	require.NoError(t, engine.AddItem(ctx, product("a", 10), -3))

	assert.Equal(t, 0, engine.Len())
}

func TestEngine_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		quantity int
		want     int
		present  bool
	}{
		{name: "absolute set", quantity: 7, want: 7, present: true},
		{name: "set to one", quantity: 1, want: 1, present: true},
		{name: "zero removes", quantity: 0, want: 0, present: false},
		{name: "negative removes", quantity: -2, want: 0, present: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := cart.Load(ctx, memory.NewKVStore())
			require.NoError(t, engine.AddItem(ctx, product("a", 10), 3))
			require.NoError(t, engine.AddItem(ctx, product("b", 10), 1))

			require.NoError(t, engine.UpdateQuantity(ctx, "a", tc.quantity))

			assert.Equal(t, tc.want, engine.Quantity("a"))
			found := false
			for _, item := range engine.Items() {
				if item.Product.ID == "a" {
					found = true
				}
			}
			assert.Equal(t, tc.present, found)
			assert.Equal(t, 1, engine.Quantity("b"))
		})
	}
}

func TestEngine_UpdateQuantityUnknownProductIsNoop(t *testing.T) {
	ctx := context.Background()
	engine := cart.Load(ctx, memory.NewKVStore())
	require.NoError(t, engine.AddItem(ctx, product("a", 10), 1))

	require.NoError(t, engine.UpdateQuantity(ctx, "missing", 5))

	assert.Equal(t, 1, engine.Len())
	assert.Equal(t, 0, engine.Quantity("missing"))
}

func TestEngine_RemoveItemIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	engine := cart.Load(ctx, store)
	require.NoError(t, engine.AddItem(ctx, product("a", 10), 1))
	require.NoError(t, engine.AddItem(ctx, product("b", 10), 2))

	require.NoError(t, engine.RemoveItem(ctx, "a"))
	once := engine.Items()
	snapshotOnce, err := store.Get(ctx, engine.Key())
	require.NoError(t, err)

	require.NoError(t, engine.RemoveItem(ctx, "a"))
	snapshotTwice, err := store.Get(ctx, engine.Key())
	require.NoError(t, err)

	assert.Equal(t, once, engine.Items())
	assert.JSONEq(t, string(snapshotOnce), string(snapshotTwice))
}

func TestEngine_Clear(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	engine := cart.Load(ctx, store)
	require.NoError(t, engine.AddItem(ctx, product("a", 10), 1))

	require.NoError(t, engine.Clear(ctx))

	assert.Equal(t, 0, engine.ItemCount())
	restored := cart.Load(ctx, store)
	assert.Equal(t, 0, restored.Len())
}

func TestEngine_RoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	engine := cart.Load(ctx, store, cart.WithKey("cart:session-1"))

	priced := product("croissant", 0)
	priced.UnitPrice = decimal.RequireFromString("85.50")
	require.NoError(t, engine.AddItem(ctx, priced, 3))
	require.NoError(t, engine.AddItem(ctx, product("baguette", 120), 1))
	require.NoError(t, engine.AddItem(ctx, product("muffin", 60), 2))
	require.NoError(t, engine.UpdateQuantity(ctx, "baguette", 4))

	restored := cart.Load(ctx, store, cart.WithKey("cart:session-1"))

	original := engine.Items()
	again := restored.Items()
	require.Len(t, again, len(original))
	for i := range original {
		assert.Equal(t, original[i].Product.ID, again[i].Product.ID)
		assert.Equal(t, original[i].Quantity, again[i].Quantity)
		assert.True(t, original[i].Product.UnitPrice.Equal(again[i].Product.UnitPrice))
		assert.Equal(t, original[i].Product.Name, again[i].Product.Name)
	}
	assert.True(t, engine.Total().Equal(restored.Total()))
}

func TestEngine_CorruptedSnapshotYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()

	cases := map[string]string{
		"truncated":  `[{"product":{"id":"a","unit_price":"10"},"quanti`,
		"not json":   `definitely not json`,
		"wrong type": `{"items":"nope"}`,
		"blank":      `   `,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			store := memory.NewKVStore()
			require.NoError(t, store.Set(ctx, cart.DefaultKey, []byte(payload)))
			recorder := &stubRecorder{}

			engine := cart.Load(ctx, store, cart.WithLogger(loggerForTests()), cart.WithRecorder(recorder))

			assert.Equal(t, 0, engine.Len())
			assert.Equal(t, 1, recorder.failures)

			require.NoError(t, engine.AddItem(ctx, product("a", 10), 1))
			assert.Equal(t, 1, cart.Load(ctx, store).Quantity("a"))
		})
	}
}

func TestEngine_RestoreNormalizesEntries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	payload := `[
		{"product":{"id":"a","unit_price":"10"},"quantity":2},
		{"product":{"id":"","unit_price":"10"},"quantity":1},
		{"product":{"id":"b","unit_price":"5"},"quantity":0},
		{"product":{"id":"a","unit_price":"10"},"quantity":3}
	]`
	require.NoError(t, store.Set(ctx, cart.DefaultKey, []byte(payload)))

	engine := cart.Load(ctx, store, cart.WithLogger(loggerForTests()))

	require.Equal(t, 1, engine.Len())
	assert.Equal(t, 5, engine.Quantity("a"))
}

func TestEngine_StoreReadErrorFailsOpen(t *testing.T) {
	recorder := &stubRecorder{}
	store := failingStore{KVStore: memory.NewKVStore(), getErr: errors.New("connection refused")}

	engine := cart.Load(context.Background(), store, cart.WithLogger(loggerForTests()), cart.WithRecorder(recorder))

	assert.Equal(t, 0, engine.Len())
	assert.Equal(t, 1, recorder.failures)
}

func TestEngine_PersistFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewKVStore()
	healthy := cart.Load(ctx, backing)
	require.NoError(t, healthy.AddItem(ctx, product("a", 10), 1))

	broken := cart.Load(ctx, failingStore{KVStore: backing, setErr: errors.New("disk full")}, cart.WithLogger(loggerForTests()))
	err := broken.AddItem(ctx, product("a", 10), 2)

	require.ErrorIs(t, err, domain.ErrCartPersist)
	assert.Equal(t, 1, broken.Quantity("a"))
	assert.Equal(t, 1, cart.Load(ctx, backing).Quantity("a"))
}

func TestEngine_RecordsMutations(t *testing.T) {
	ctx := context.Background()
	recorder := &stubRecorder{}
	engine := cart.Load(ctx, memory.NewKVStore(), cart.WithRecorder(recorder))

	require.NoError(t, engine.AddItem(ctx, product("a", 10), 1))
	require.NoError(t, engine.UpdateQuantity(ctx, "a", 3))
	require.NoError(t, engine.UpdateQuantity(ctx, "a", 0))
	require.NoError(t, engine.Clear(ctx))

	assert.Equal(t, []string{"add", "update", "remove", "clear"}, recorder.mutations)
}
