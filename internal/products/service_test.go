package products

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/shared"
)

type memoryState struct {
	products map[string]Product
	deleted  map[string]bool
	skus     map[string]string
	seq      map[Category]int64
	ledger   []inventory.Transaction
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		products: make(map[string]Product, len(s.products)),
		deleted:  make(map[string]bool, len(s.deleted)),
		skus:     make(map[string]string, len(s.skus)),
		seq:      make(map[Category]int64, len(s.seq)),
		ledger:   append([]inventory.Transaction(nil), s.ledger...),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.deleted {
		out.deleted[k] = v
	}
	for k, v := range s.skus {
		out.skus[k] = v
	}
	for k, v := range s.seq {
		out.seq[k] = v
	}
	return out
}

type memoryRepo struct {
	state memoryState
}

type memoryTx struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{
		products: map[string]Product{},
		deleted:  map[string]bool{},
		skus:     map[string]string{},
		seq:      map[Category]int64{},
	}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	next := r.state.clone()
	if err := fn(ctx, &memoryTx{state: &next}); err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	out := []Product{}
	for id, p := range r.state.products {
		if r.state.deleted[id] {
			continue
		}
		if filter.Category != "" && string(p.Category) != filter.Category {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.ProductCode), needle) && !strings.Contains(strings.ToLower(p.Tag), needle) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (Product, error) {
	p, ok := r.state.products[id]
	if !ok || r.state.deleted[id] {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context) ([]Product, error) {
	all, _ := r.List(ctx, ListFilter{})
	out := []Product{}
	for _, p := range all {
		if p.IsLowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, productID string) (inventory.StockRow, error) {
	p, err := tx.GetForUpdate(ctx, productID)
	if err != nil {
		return inventory.StockRow{}, err
	}
	return inventory.StockRow{ProductID: p.ID, ProductCode: p.ProductCode, Name: p.Name, Category: string(p.Category), Unit: p.Unit, CurrentStock: p.CurrentStock, UnitPerBox: p.UnitPerBox, StockBoxes: p.StockBoxes}, nil
}

func (tx *memoryTx) UpdateStock(ctx context.Context, productID string, stock decimal.Decimal, boxes int64) error {
	p := tx.state.products[productID]
	p.CurrentStock, p.StockBoxes = stock, boxes
	tx.state.products[productID] = p
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, entry inventory.Transaction) (inventory.Transaction, error) {
	entry.ID = int64(len(tx.state.ledger) + 1)
	entry.CreatedAt = time.Now()
	tx.state.ledger = append(tx.state.ledger, entry)
	return entry, nil
}

func (tx *memoryTx) NextSequence(ctx context.Context, category Category) (int64, error) {
	tx.state.seq[category]++
	return tx.state.seq[category], nil
}

func (tx *memoryTx) Insert(ctx context.Context, p Product) error {
	if _, exists := tx.state.products[p.ID]; exists {
		return shared.ErrConflict
	}
	tx.state.products[p.ID] = p
	return nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id string) (Product, error) {
	p, ok := tx.state.products[id]
	if !ok || tx.state.deleted[id] {
		return Product{}, fmt.Errorf("%w: product %s", shared.ErrNotFound, id)
	}
	return p, nil
}

func (tx *memoryTx) Update(ctx context.Context, p Product) error {
	current := tx.state.products[p.ID]
	p.CurrentStock = current.CurrentStock
	tx.state.products[p.ID] = p
	return nil
}

func (tx *memoryTx) ReplaceSKUs(ctx context.Context, productID string, skus SKUMap) error {
	for sku, owner := range tx.state.skus {
		if owner == productID {
			delete(tx.state.skus, sku)
		}
	}
	for _, sku := range skus {
		key := strings.ToLower(sku)
		if owner, taken := tx.state.skus[key]; taken && owner != productID {
			return fmt.Errorf("%w: SKU %s is already assigned", shared.ErrConflict, sku)
		}
		tx.state.skus[key] = productID
	}
	p := tx.state.products[productID]
	p.ShopifySKUs = skus
	tx.state.products[productID] = p
	return nil
}

func (tx *memoryTx) SoftDelete(ctx context.Context, id string) error {
	tx.state.deleted[id] = true
	for sku, owner := range tx.state.skus {
		if owner == id {
			delete(tx.state.skus, sku)
		}
	}
	return nil
}

func (tx *memoryTx) SetIncomingOrders(ctx context.Context, id string, orders []IncomingOrder) error {
	p := tx.state.products[id]
	p.IncomingOrders = orders
	tx.state.products[id] = p
	return nil
}

type recordingSync struct{ ids []string }

func (s *recordingSync) EnqueueProductSync(ctx context.Context, productID string) error {
	s.ids = append(s.ids, productID)
	return nil
}

func newTestService(repo *memoryRepo, sync SyncEnqueuer, cfg ServiceConfig) *Service {
	stock := inventory.NewService(nil, nil, nil, nil)
	return NewService(repo, stock, nil, sync, nil, cfg)
}

func TestCreateGeneratesIdentifiers(t *testing.T) {
	repo := newMemoryRepo()
	sync := &recordingSync{}
	svc := newTestService(repo, sync, ServiceConfig{ShopifySyncEnabled: true})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "oils", Unit: "ml", CurrentStock: decimal.NewFromInt(1000), UnitPerBox: decimal.NewFromInt(400)})
	require.NoError(t, err)
	require.Equal(t, "OILS_1", p.ID)
	require.Equal(t, "#OI00001", p.Tag)
	require.Equal(t, "OILS_00001", p.ProductCode)
	require.Equal(t, SKUMap{
		SKUCartridge:   "SA_CA_00001",
		SKUOneLitre:    "SA_1L_00001",
		SKUCarDiffuser: "SA_CDIFF_00001",
		SKUPro:         "SA_PRO_00001",
		SKUHalfLitre:   "SA_HF_00001",
	}, p.ShopifySKUs)
	require.True(t, p.CurrentStock.Equal(decimal.NewFromInt(1000)))
	require.EqualValues(t, 2, p.StockBoxes)
	require.Empty(t, p.IncomingOrders)
	require.Equal(t, []string{"OILS_1"}, sync.ids)

	require.Len(t, repo.state.ledger, 1)
	require.Equal(t, "Opening stock", repo.state.ledger[0].Notes)
	require.True(t, repo.state.ledger[0].BalanceAfter.Equal(decimal.NewFromInt(1000)))

	second, err := svc.Create(ctx, CreateInput{Name: "Cap", Category: "RAW_MATERIALS"})
	require.NoError(t, err)
	require.Equal(t, "RAW_MATERIALS_1", second.ID)
	require.Equal(t, "units", second.Unit)
	require.True(t, second.UnitPerBox.Equal(decimal.NewFromInt(1)))
	require.Equal(t, SKUMap{SKURawMaterial: "SA_RM_00001"}, second.ShopifySKUs)
	require.Len(t, repo.state.ledger, 1, "zero opening stock writes no ledger row")
	require.Len(t, sync.ids, 1, "only oils are synced")
}

func TestCreateUsesTagDigitsForSKUs(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})

	p, err := svc.Create(context.Background(), CreateInput{Name: "Pump", Category: "MACHINES_SPARES", Tag: "#SA275"})
	require.NoError(t, err)
	require.Equal(t, "#SA275", p.Tag)
	require.Equal(t, SKUMap{SKUMachineSpare: "SA_MAC_00275"}, p.ShopifySKUs)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Category: "OILS"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	_, err = svc.Create(ctx, CreateInput{Name: "X", Category: "SOAPS"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	_, err = svc.Create(ctx, CreateInput{Name: "X", Category: "OILS", ShopifySKUs: SKUMap{"SA_XX": "foo"}})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	_, err = svc.Create(ctx, CreateInput{Name: "X", Category: "OILS", CurrentStock: decimal.RequireFromString("10.0004")})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	_, err = svc.Create(ctx, CreateInput{Name: "X", Category: "OILS", UnitPerBox: decimal.RequireFromString("0.0006")})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestUpdateRejectsUnstorablePrecision(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS", CurrentStock: decimal.NewFromInt(10)})
	require.NoError(t, err)

	stock := decimal.RequireFromString("9.9996")
	_, err = svc.Update(ctx, p.ID, UpdateInput{CurrentStock: &stock})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	minLevel := decimal.RequireFromString("0.0001")
	_, err = svc.Update(ctx, p.ID, UpdateInput{MinStockLevel: &minLevel})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	perBox := decimal.RequireFromString("2.5005")
	_, err = svc.Update(ctx, p.ID, UpdateInput{UnitPerBox: &perBox})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(decimal.NewFromInt(10)))
	require.Len(t, repo.state.ledger, 1)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "A", Category: "OILS", ShopifySKUs: SKUMap{SKUCartridge: "SA_CA_LAV"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "B", Category: "OILS", ShopifySKUs: SKUMap{SKUCartridge: "sa_ca_lav"}})
	require.ErrorIs(t, err, shared.ErrConflict)

	// the failed create consumed nothing
	require.Len(t, repo.state.products, 1)
}

func TestIDsAreNeverReused(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "A", Category: "OILS"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, first.ID))
	second, err := svc.Create(ctx, CreateInput{Name: "B", Category: "OILS"})
	require.NoError(t, err)
	require.Equal(t, "OILS_2", second.ID)
	require.Equal(t, "SA_CA_00002", second.ShopifySKUs[SKUCartridge])
}

func TestUpdateStockGoesThroughLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS", CurrentStock: decimal.NewFromInt(1000), UnitPerBox: decimal.NewFromInt(400)})
	require.NoError(t, err)

	newStock := decimal.NewFromInt(600)
	perBox := decimal.NewFromInt(100)
	name := "Lavender Fine"
	updated, err := svc.Update(ctx, p.ID, UpdateInput{Name: &name, CurrentStock: &newStock, UnitPerBox: &perBox})
	require.NoError(t, err)
	require.Equal(t, "Lavender Fine", updated.Name)
	require.True(t, updated.CurrentStock.Equal(newStock))
	require.EqualValues(t, 6, updated.StockBoxes)

	require.Len(t, repo.state.ledger, 2)
	edit := repo.state.ledger[1]
	require.Equal(t, inventory.DirectionRemove, edit.Type)
	require.True(t, edit.Quantity.Equal(decimal.NewFromInt(400)))
	require.Equal(t, "Manual edit", edit.Notes)
	require.Equal(t, "Lavender Fine", edit.ProductName)
}

func TestUpdateWithoutStockChangeWritesNoLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS", CurrentStock: decimal.NewFromInt(10)})
	require.NoError(t, err)
	same := decimal.NewFromInt(10)
	minLevel := decimal.NewFromInt(20)
	updated, err := svc.Update(ctx, p.ID, UpdateInput{CurrentStock: &same, MinStockLevel: &minLevel})
	require.NoError(t, err)
	require.True(t, updated.IsLowStock())
	require.Len(t, repo.state.ledger, 1)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
}

func TestUpdateReplacesSKUs(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS"})
	require.NoError(t, err)
	skus := SKUMap{SKUCartridge: "LAV-CA"}
	updated, err := svc.Update(ctx, p.ID, UpdateInput{ShopifySKUs: &skus})
	require.NoError(t, err)
	require.Equal(t, SKUMap{SKUCartridge: "LAV-CA"}, updated.ShopifySKUs)
	require.Equal(t, p.ID, repo.state.skus["lav-ca"])
	_, stale := repo.state.skus["sa_ca_00001"]
	require.False(t, stale)
}

func TestUpdateUnknownProduct(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil, ServiceConfig{})
	name := "x"
	_, err := svc.Update(context.Background(), "OILS_9", UpdateInput{Name: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteIsSoftAndKeepsLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS", CurrentStock: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, p.ID))

	_, err = svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, repo.state.ledger, 1)
	require.Empty(t, repo.state.skus)
	require.ErrorIs(t, svc.Delete(ctx, p.ID), shared.ErrNotFound)
}

func TestClearIncomingOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS"})
	require.NoError(t, err)
	stored := repo.state.products[p.ID]
	stored.IncomingOrders = []IncomingOrder{
		{OrderNumber: "#1001", SKU: "SA_CA_00001", Quantity: decimal.NewFromInt(1)},
		{OrderNumber: "#1002", SKU: "SA_CA_00001", Quantity: decimal.NewFromInt(2)},
	}
	repo.state.products[p.ID] = stored

	require.NoError(t, svc.ClearIncomingOrder(ctx, p.ID, 0))
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.IncomingOrders, 1)
	require.Equal(t, "#1002", got.IncomingOrders[0].OrderNumber)

	require.ErrorIs(t, svc.ClearIncomingOrder(ctx, p.ID, 5), shared.ErrNotFound)
	require.ErrorIs(t, svc.ClearIncomingOrder(ctx, p.ID, -1), shared.ErrNotFound)
	require.ErrorIs(t, svc.ClearIncomingOrder(ctx, "OILS_404", 0), shared.ErrNotFound)
}

func TestListFiltersAndOrdersByTag(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Rose", Category: "OILS", Tag: "#OI00009"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS", Tag: "#OI00002"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Bottle", Category: "RAW_MATERIALS"})
	require.NoError(t, err)

	oils, err := svc.List(ctx, ListFilter{Category: "OILS"})
	require.NoError(t, err)
	require.Len(t, oils, 2)
	require.Equal(t, "Lavender", oils[0].Name)

	all, err := svc.List(ctx, ListFilter{Category: "ALL", Search: "bot"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Bottle", all[0].Name)

	_, err = svc.List(ctx, ListFilter{Category: "CANDLES"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestGetIsRepeatable(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Lavender", Category: "OILS", CurrentStock: decimal.NewFromInt(300)})
	require.NoError(t, err)
	first, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.True(t, second.CurrentStock.Equal(decimal.NewFromInt(300)))
}
