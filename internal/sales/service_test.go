package sales

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// memoryRepo serializes transactions with a single mutex, mirroring the
// row-level locking the SQL repository gets from FOR UPDATE, and restores
// a snapshot when the callback fails so transactions stay atomic.
type productMirror struct {
	itemID         int64
	unitsPerCarton int
}

type memoryRepo struct {
	mu       sync.Mutex
	items    map[int64]*StockRef
	products map[int64]*StockRef
	mirrors  map[int64]productMirror
	sales    map[int64]*Sale
	lines    map[int64]*Line
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:    make(map[int64]*StockRef),
		products: make(map[int64]*StockRef),
		mirrors:  make(map[int64]productMirror),
		sales:    make(map[int64]*Sale),
		lines:    make(map[int64]*Line),
	}
}

func (r *memoryRepo) addItem(id int64, name string, stock int, unitPrice, costPrice float64) {
	r.items[id] = &StockRef{ID: id, Name: name, Stock: stock, UnitPrice: unitPrice, CostPrice: costPrice}
}

func (r *memoryRepo) addProduct(id int64, name string, cartons int, sellingPrice, supplierPrice float64) {
	r.products[id] = &StockRef{ID: id, Name: name, Stock: cartons, UnitPrice: sellingPrice, CostPrice: supplierPrice}
}

func (r *memoryRepo) linkProduct(productID, itemID int64, unitsPerCarton int) {
	r.mirrors[productID] = productMirror{itemID: itemID, unitsPerCarton: unitsPerCarton}
}

type repoSnapshot struct {
	items    map[int64]StockRef
	products map[int64]StockRef
	sales    map[int64]Sale
	lines    map[int64]Line
}

func (r *memoryRepo) snapshot() repoSnapshot {
	snap := repoSnapshot{
		items:    make(map[int64]StockRef, len(r.items)),
		products: make(map[int64]StockRef, len(r.products)),
		sales:    make(map[int64]Sale, len(r.sales)),
		lines:    make(map[int64]Line, len(r.lines)),
	}
	for id, v := range r.items {
		snap.items[id] = *v
	}
	for id, v := range r.products {
		snap.products[id] = *v
	}
	for id, v := range r.sales {
		snap.sales[id] = *v
	}
	for id, v := range r.lines {
		snap.lines[id] = *v
	}
	return snap
}

func (r *memoryRepo) restore(snap repoSnapshot) {
	r.items = make(map[int64]*StockRef, len(snap.items))
	for id, v := range snap.items {
		c := v
		r.items[id] = &c
	}
	r.products = make(map[int64]*StockRef, len(snap.products))
	for id, v := range snap.products {
		c := v
		r.products[id] = &c
	}
	r.sales = make(map[int64]*Sale, len(snap.sales))
	for id, v := range snap.sales {
		c := v
		r.sales[id] = &c
	}
	r.lines = make(map[int64]*Line, len(snap.lines))
	for id, v := range snap.lines {
		c := v
		r.lines[id] = &c
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepo) GetSale(_ context.Context, id int64) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	out := *sale
	out.Lines = nil
	for _, l := range r.lines {
		if l.SaleID == id {
			out.Lines = append(out.Lines, *l)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(_ context.Context, _ Filter) ([]Sale, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, s := range r.sales {
		out = append(out, *s)
	}
	return out, len(out), nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertSale(_ context.Context, s Sale) (int64, error) {
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	tx.repo.sales[s.ID] = &s
	return s.ID, nil
}

func (tx *memoryTx) GetSaleForUpdate(_ context.Context, id int64) (Sale, error) {
	if s, ok := tx.repo.sales[id]; ok {
		return *s, nil
	}
	return Sale{}, shared.ErrNotFound
}

func (tx *memoryTx) UpdateSaleHeader(_ context.Context, s Sale) error {
	current, ok := tx.repo.sales[s.ID]
	if !ok {
		return shared.ErrNotFound
	}
	current.CustomerID = s.CustomerID
	current.PaymentMethod = s.PaymentMethod
	current.Paid = s.Paid
	current.Notes = s.Notes
	return nil
}

func (tx *memoryTx) SetSaleTotal(_ context.Context, saleID int64, total float64) error {
	sale, ok := tx.repo.sales[saleID]
	if !ok {
		return shared.ErrNotFound
	}
	sale.TotalAmount = total
	return nil
}

func (tx *memoryTx) DeleteSale(_ context.Context, saleID int64) error {
	if _, ok := tx.repo.sales[saleID]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.sales, saleID)
	return nil
}

func (tx *memoryTx) FindLine(_ context.Context, saleID int64, kind LineKind, refID int64) (Line, error) {
	for _, l := range tx.repo.lines {
		if l.SaleID == saleID && l.Kind == kind && l.RefID() == refID {
			return *l, nil
		}
	}
	return Line{}, shared.ErrNotFound
}

func (tx *memoryTx) GetLine(_ context.Context, lineID int64) (Line, error) {
	if l, ok := tx.repo.lines[lineID]; ok {
		return *l, nil
	}
	return Line{}, shared.ErrNotFound
}

func (tx *memoryTx) InsertLine(_ context.Context, l Line) (int64, error) {
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	tx.repo.lines[l.ID] = &l
	return l.ID, nil
}

func (tx *memoryTx) UpdateLine(_ context.Context, l Line) error {
	current, ok := tx.repo.lines[l.ID]
	if !ok {
		return shared.ErrNotFound
	}
	current.Quantity = l.Quantity
	current.UnitPrice = l.UnitPrice
	current.TotalPrice = l.TotalPrice
	return nil
}

func (tx *memoryTx) DeleteLine(_ context.Context, lineID int64) error {
	if _, ok := tx.repo.lines[lineID]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.lines, lineID)
	return nil
}

func (tx *memoryTx) ListLines(_ context.Context, saleID int64) ([]Line, error) {
	var out []Line
	for _, l := range tx.repo.lines {
		if l.SaleID == saleID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (tx *memoryTx) SumLineTotals(_ context.Context, saleID int64) (float64, error) {
	var total float64
	for _, l := range tx.repo.lines {
		if l.SaleID == saleID {
			total += l.TotalPrice
		}
	}
	return total, nil
}

func (tx *memoryTx) GetItemForUpdate(_ context.Context, itemID int64) (StockRef, error) {
	if it, ok := tx.repo.items[itemID]; ok {
		return *it, nil
	}
	return StockRef{}, shared.ErrNotFound
}

func (tx *memoryTx) AdjustItemStock(_ context.Context, itemID int64, delta int) error {
	it, ok := tx.repo.items[itemID]
	if !ok {
		return shared.ErrNotFound
	}
	it.Stock += delta
	return nil
}

func (tx *memoryTx) GetProductForUpdate(_ context.Context, productID int64) (StockRef, error) {
	if p, ok := tx.repo.products[productID]; ok {
		return *p, nil
	}
	return StockRef{}, shared.ErrNotFound
}

func (tx *memoryTx) AdjustProductStock(_ context.Context, productID int64, delta int) error {
	p, ok := tx.repo.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Stock += delta
	// Same mirror rule as the SQL repository: linked item stock is
	// re-derived from cartons on every movement.
	if mirror, ok := tx.repo.mirrors[productID]; ok {
		if it, ok := tx.repo.items[mirror.itemID]; ok {
			it.Stock = p.Stock * mirror.unitsPerCarton
		}
	}
	return nil
}

type fakeLedger struct {
	syncCalls    []int64
	reverseCalls []int64
	basis        map[int64]DebtBasis
}

func (l *fakeLedger) SyncForSale(_ context.Context, saleID int64) error {
	l.syncCalls = append(l.syncCalls, saleID)
	return nil
}

func (l *fakeLedger) ReversePaymentSale(_ context.Context, saleID int64) error {
	l.reverseCalls = append(l.reverseCalls, saleID)
	return nil
}

func (l *fakeLedger) DebtBasis(_ context.Context, debtID int64) (DebtBasis, error) {
	if b, ok := l.basis[debtID]; ok {
		return b, nil
	}
	return DebtBasis{}, shared.ErrNotFound
}

func TestCreateSaleDecrementsStockAndSetsTotal(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 100, 500, 300)
	repo.addProduct(2, "Book Carton", 10, 52000, 40000)
	ledger := &fakeLedger{}
	svc := NewService(repo, ledger, nil, nil, nil)

	customer := int64(7)
	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, CustomerID: &customer, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{
			{Kind: LineRetail, ItemID: 1, Quantity: 4, UnitPrice: 500},
			{Kind: LineWholesale, ProductID: 2, Quantity: 2, UnitPrice: 52000},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 4*500+2*52000, sale.TotalAmount, 0.001)
	require.Len(t, sale.Lines, 2)
	require.Equal(t, 96, repo.items[1].Stock)
	require.Equal(t, 8, repo.products[2].Stock)
	require.Equal(t, []int64{sale.ID}, ledger.syncCalls)
}

func TestCreateSaleInsufficientStockRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 100, 500, 300)
	repo.addItem(2, "Pen", 3, 800, 500)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	_, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{
			{Kind: LineRetail, ItemID: 1, Quantity: 10, UnitPrice: 500},
			{Kind: LineRetail, ItemID: 2, Quantity: 5, UnitPrice: 800},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "Pen", stockErr.Name)
	require.Equal(t, 3, stockErr.Available)
	require.Equal(t, 5, stockErr.Requested)

	// Nothing committed: both stocks untouched, no sale rows.
	require.Equal(t, 100, repo.items[1].Stock)
	require.Equal(t, 3, repo.items[2].Stock)
	require.Empty(t, repo.sales)
	require.Empty(t, repo.lines)
}

func TestAddLineMergesDuplicateReference(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 20, 500, 300)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{{Kind: LineRetail, ItemID: 1, Quantity: 5, UnitPrice: 500}},
	})
	require.NoError(t, err)

	sale, err = svc.AddLine(context.Background(), 1, sale.ID, LineInput{Kind: LineRetail, ItemID: 1, Quantity: 3, UnitPrice: 550})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	require.Equal(t, 8, sale.Lines[0].Quantity)
	require.InDelta(t, 550.0, sale.Lines[0].UnitPrice, 0.001)
	require.InDelta(t, 8*550.0, sale.TotalAmount, 0.001)
	require.Equal(t, 12, repo.items[1].Stock)
}

func TestAddLineInsufficientStockLeavesSaleUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 10, 500, 300)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{{Kind: LineRetail, ItemID: 1, Quantity: 4, UnitPrice: 500}},
	})
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), 1, sale.ID, LineInput{Kind: LineRetail, ItemID: 1, Quantity: 7, UnitPrice: 500})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	after, err := svc.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 2000.0, after.TotalAmount, 0.001)
	require.Equal(t, 4, after.Lines[0].Quantity)
	require.Equal(t, 6, repo.items[1].Stock)
}

func TestRemoveLineRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 50, 500, 300)
	repo.addItem(2, "Pen", 50, 800, 500)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{
			{Kind: LineRetail, ItemID: 1, Quantity: 10, UnitPrice: 500},
			{Kind: LineRetail, ItemID: 2, Quantity: 5, UnitPrice: 800},
		},
	})
	require.NoError(t, err)

	var penLine int64
	for _, l := range sale.Lines {
		if l.RefID() == 2 {
			penLine = l.ID
		}
	}
	sale, err = svc.RemoveLine(context.Background(), 1, sale.ID, penLine)
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	require.InDelta(t, 5000.0, sale.TotalAmount, 0.001)
	require.Equal(t, 50, repo.items[2].Stock)
}

func TestWholesaleLineSyncsLinkedItemStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Exercise Book", 120, 500, 300)
	repo.addProduct(2, "Exercise Book Carton", 10, 52000, 40000)
	repo.linkProduct(2, 1, 12)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{{Kind: LineWholesale, ProductID: 2, Quantity: 3, UnitPrice: 52000}},
	})
	require.NoError(t, err)
	require.Equal(t, 7, repo.products[2].Stock)
	require.Equal(t, 84, repo.items[1].Stock)

	_, err = svc.RemoveLine(context.Background(), 1, sale.ID, sale.Lines[0].ID)
	require.NoError(t, err)
	require.Equal(t, 10, repo.products[2].Stock)
	require.Equal(t, 120, repo.items[1].Stock)
}

func TestDeleteSaleRestoresEveryLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 30, 500, 300)
	repo.addProduct(2, "Book Carton", 12, 52000, 40000)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{
			{Kind: LineRetail, ItemID: 1, Quantity: 6, UnitPrice: 500},
			{Kind: LineWholesale, ProductID: 2, Quantity: 3, UnitPrice: 52000},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 24, repo.items[1].Stock)
	require.Equal(t, 9, repo.products[2].Stock)

	require.NoError(t, svc.Delete(context.Background(), 1, sale.ID))
	require.Equal(t, 30, repo.items[1].Stock)
	require.Equal(t, 12, repo.products[2].Stock)
	require.Empty(t, repo.sales)
	require.Empty(t, repo.lines)
}

func TestDeletePaymentSaleDelegatesToLedger(t *testing.T) {
	repo := newMemoryRepo()
	ledger := &fakeLedger{}
	svc := NewService(repo, ledger, nil, nil, nil)

	debtID := int64(9)
	repo.sales[42] = &Sale{ID: 42, Kind: KindPayment, TotalAmount: 2000, Paid: true, DebtID: &debtID}

	require.NoError(t, svc.Delete(context.Background(), 1, 42))
	require.Equal(t, []int64{42}, ledger.reverseCalls)
	// The ledger owns the reversal; the sale row survives until it runs.
	require.Contains(t, repo.sales, int64(42))
}

func TestConcurrentAddLinesSerialize(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 100, 500, 300)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
	})
	require.NoError(t, err)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddLine(context.Background(), 1, sale.ID, LineInput{Kind: LineRetail, ItemID: 1, Quantity: 2, UnitPrice: 500})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	after, err := svc.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, after.Lines, 1)
	require.Equal(t, workers*2, after.Lines[0].Quantity)
	require.InDelta(t, float64(workers*2)*500, after.TotalAmount, 0.001)
	require.Equal(t, 100-workers*2, repo.items[1].Stock)
}

func TestProfitRetailAndWholesaleLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 100, 500, 300)
	repo.addProduct(2, "Book Carton", 10, 52000, 40000)
	svc := NewService(repo, &fakeLedger{}, nil, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCash, Paid: true,
		Lines: []LineInput{
			{Kind: LineRetail, ItemID: 1, Quantity: 10, UnitPrice: 500},
			{Kind: LineWholesale, ProductID: 2, Quantity: 1, UnitPrice: 52000},
		},
	})
	require.NoError(t, err)

	profit, err := svc.Profit(context.Background(), sale.ID)
	require.NoError(t, err)
	// Retail: 10*(500-300); wholesale revenue carries no line cost.
	require.InDelta(t, 10*200+52000.0, profit, 0.001)
}

func TestPaymentSaleProfitProratesOriginSale(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 100, 500, 300)
	ledger := &fakeLedger{basis: map[int64]DebtBasis{}}
	svc := NewService(repo, ledger, nil, nil, nil)

	origin, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, PaymentMethod: MethodCredit, Paid: false,
		Lines: []LineInput{{Kind: LineRetail, ItemID: 1, Quantity: 10, UnitPrice: 500}},
	})
	require.NoError(t, err)
	// Origin profit: 10*(500-300) = 2000 on a 5000 debt.
	ledger.basis[9] = DebtBasis{Amount: 5000, OriginSaleID: &origin.ID}

	debtID := int64(9)
	repo.sales[99] = &Sale{ID: 99, Kind: KindPayment, TotalAmount: 2000, Paid: true, DebtID: &debtID}

	profit, err := svc.Profit(context.Background(), 99)
	require.NoError(t, err)
	require.InDelta(t, 2000.0*2000.0/5000.0, profit, 0.001)
}

func TestPaymentSaleProfitFromManualDebtBasis(t *testing.T) {
	repo := newMemoryRepo()
	ledger := &fakeLedger{basis: map[int64]DebtBasis{
		5: {Amount: 5000, ItemCostTotal: 3000},
	}}
	svc := NewService(repo, ledger, nil, nil, nil)

	debtID := int64(5)
	repo.sales[50] = &Sale{ID: 50, Kind: KindPayment, TotalAmount: 2500, Paid: true, DebtID: &debtID}

	profit, err := svc.Profit(context.Background(), 50)
	require.NoError(t, err)
	require.InDelta(t, (5000.0-3000.0)*0.5, profit, 0.001)
}

func TestMutationsTriggerDebtSync(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Pencil", 100, 500, 300)
	ledger := &fakeLedger{}
	svc := NewService(repo, ledger, nil, nil, nil)

	customer := int64(3)
	sale, err := svc.CreateSale(context.Background(), CreateInput{
		ActorID: 1, CustomerID: &customer, PaymentMethod: MethodCredit, Paid: false,
		Lines: []LineInput{{Kind: LineRetail, ItemID: 1, Quantity: 2, UnitPrice: 500}},
	})
	require.NoError(t, err)

	_, err = svc.AddLine(context.Background(), 1, sale.ID, LineInput{Kind: LineRetail, ItemID: 1, Quantity: 1, UnitPrice: 500})
	require.NoError(t, err)

	_, err = svc.UpdateHeader(context.Background(), 1, sale.ID, HeaderInput{CustomerID: &customer, PaymentMethod: MethodCredit, Paid: true})
	require.NoError(t, err)

	require.Equal(t, []int64{sale.ID, sale.ID, sale.ID}, ledger.syncCalls)
}
