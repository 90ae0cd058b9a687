package orders

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/stride-labs/storefront-backend/internal/cart"
	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"github.com/stride-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	payments        map[string]*models.Payment
	orders          map[uuid.UUID]*models.Order
	createPayErr    error
	addresses       int
	createdItems    []models.OrderItem
	createdPayment  *models.Payment
	missFirstLookup bool
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{
		payments: make(map[string]*models.Payment),
		orders:   make(map[uuid.UUID]*models.Order),
	}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) OrdersRepository { return s }

func (s *stubOrdersRepo) CreateAddress(ctx context.Context, address *models.Address) (*models.Address, error) {
	address.ID = uuid.New()
	s.addresses++
	return address, nil
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	s.createdItems = append(s.createdItems, items...)
	if order, ok := s.orders[items[0].OrderID]; ok {
		order.Items = items
	}
	return nil
}

func (s *stubOrdersRepo) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if s.createPayErr != nil {
		return nil, s.createPayErr
	}
	if payment.TransactionID != nil {
		if _, exists := s.payments[*payment.TransactionID]; exists {
			return nil, errors.New(`duplicate key value violates unique constraint "idx_payments_transaction_id"`)
		}
		s.payments[*payment.TransactionID] = payment
	}
	s.createdPayment = payment
	return payment, nil
}

func (s *stubOrdersRepo) FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	if s.missFirstLookup {
		s.missFirstLookup = false
		return nil, gorm.ErrRecordNotFound
	}
	payment, ok := s.payments[transactionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range s.orders {
		if order.UserID != userID {
			continue
		}
		if cursor != nil && !order.CreatedAt.Before(cursor.CreatedAt) {
			continue
		}
		rows = append(rows, *order)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type stubCartStore struct {
	cart    *models.Cart
	items   []models.CartItem
	deleted bool
	cleared bool
}

func (s *stubCartStore) WithTx(tx *gorm.DB) cart.CartRepository { return s }

func (s *stubCartStore) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.ID != cartID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCartStore) FindByOwner(ctx context.Context, owner identity.Identity) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartStore) FindByOwnerForUpdate(ctx context.Context, owner identity.Identity) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartStore) Create(ctx context.Context, c *models.Cart) (*models.Cart, error) {
	return c, nil
}

func (s *stubCartStore) Delete(ctx context.Context, cartID uuid.UUID) error {
	s.deleted = true
	return nil
}

func (s *stubCartStore) UpsertItem(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartStore) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartStore) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartStore) DeleteItem(ctx context.Context, itemID uuid.UUID) error { return nil }

func (s *stubCartStore) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	s.cleared = true
	return nil
}

func (s *stubCartStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	return s.items, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSessionProvider struct {
	session *stripe.CheckoutSession
	err     error
	delay   time.Duration
	calls   int
}

func (s *stubSessionProvider) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSessionProvider) GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func paidSession(cartID, userID uuid.UUID) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            "cs_paid",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   3900,
		Metadata: map[string]string{
			"cartId": cartID.String(),
			"userId": userID.String(),
		},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
			Name:  "Jordan Fox",
			Phone: "+15551234567",
			Address: &stripe.Address{
				Line1:      "1 Main St",
				City:       "Portland",
				State:      "OR",
				PostalCode: "97201",
				Country:    "US",
			},
		},
	}
}

func seedFinalizerFixtures() (*stubCartStore, uuid.UUID, uuid.UUID) {
	cartID := uuid.New()
	userID := uuid.New()
	sale := decimal.RequireFromString("19.50")
	carts := &stubCartStore{
		cart: &models.Cart{ID: cartID, UserID: &userID},
		items: []models.CartItem{{
			ID:               uuid.New(),
			CartID:           cartID,
			ProductVariantID: uuid.New(),
			Quantity:         2,
			Variant: &models.ProductVariant{
				Price:     decimal.RequireFromString("25.00"),
				SalePrice: &sale,
			},
		}},
	}
	return carts, cartID, userID
}

func newOrderService(t *testing.T, repo *stubOrdersRepo, carts *stubCartStore, provider *stubSessionProvider) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		CartRepo:    carts,
		Tx:          stubTxRunner{},
		Provider:    provider,
		CallTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestFinalizeCreatesOrderOnce(t *testing.T) {
	repo := newStubOrdersRepo()
	carts, cartID, userID := seedFinalizerFixtures()
	provider := &stubSessionProvider{session: paidSession(cartID, userID)}
	svc := newOrderService(t, repo, carts, provider)

	result, err := svc.FinalizeOrder(context.Background(), "cs_paid")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if result.AlreadyFinalized {
		t.Fatalf("first finalization must not report already finalized")
	}

	order := repo.orders[result.OrderID]
	if order == nil {
		t.Fatalf("order was not created")
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", order.Status)
	}
	want := decimal.RequireFromString("39.00")
	if !order.TotalAmount.Equal(want) {
		t.Fatalf("expected total %s from provider amount, got %s", want, order.TotalAmount)
	}
	if len(repo.createdItems) != 1 {
		t.Fatalf("expected one order item, got %d", len(repo.createdItems))
	}
	if !repo.createdItems[0].PriceAtPurchase.Equal(decimal.RequireFromString("19.50")) {
		t.Fatalf("expected sale price snapshot, got %s", repo.createdItems[0].PriceAtPurchase)
	}
	if repo.createdPayment == nil || repo.createdPayment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %+v", repo.createdPayment)
	}
	if repo.createdPayment.Method != enums.PaymentMethodStripe {
		t.Fatalf("expected stripe payment method")
	}
	if repo.addresses != 2 {
		t.Fatalf("expected shipping and billing addresses, got %d", repo.addresses)
	}
	if !carts.cleared || !carts.deleted {
		t.Fatalf("cart must be emptied and deleted, cleared=%v deleted=%v", carts.cleared, carts.deleted)
	}
}

func TestFinalizeFastPathShortCircuits(t *testing.T) {
	repo := newStubOrdersRepo()
	orderID := uuid.New()
	txID := "cs_done"
	repo.payments[txID] = &models.Payment{OrderID: orderID, TransactionID: &txID}
	provider := &stubSessionProvider{}
	svc := newOrderService(t, repo, &stubCartStore{}, provider)

	result, err := svc.FinalizeOrder(context.Background(), txID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !result.AlreadyFinalized || result.OrderID != orderID {
		t.Fatalf("expected short-circuit to existing order, got %+v", result)
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be called on the fast path")
	}
}

func TestFinalizeRejectsUnpaidSession(t *testing.T) {
	repo := newStubOrdersRepo()
	carts, cartID, userID := seedFinalizerFixtures()
	sess := paidSession(cartID, userID)
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	svc := newOrderService(t, repo, carts, &stubSessionProvider{session: sess})

	_, err := svc.FinalizeOrder(context.Background(), "cs_paid")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unpaid session, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("no order may be created for an unpaid session")
	}
}

func TestFinalizeRequiresMetadata(t *testing.T) {
	repo := newStubOrdersRepo()
	carts, cartID, userID := seedFinalizerFixtures()
	sess := paidSession(cartID, userID)
	sess.Metadata = map[string]string{}
	svc := newOrderService(t, repo, carts, &stubSessionProvider{session: sess})

	_, err := svc.FinalizeOrder(context.Background(), "cs_paid")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing metadata, got %v", err)
	}
}

func TestFinalizeUniqueViolationResolvesToWinner(t *testing.T) {
	repo := newStubOrdersRepo()
	carts, cartID, userID := seedFinalizerFixtures()
	winnerOrder := uuid.New()
	txID := "cs_paid"

	repo.createPayErr = errors.New(`duplicate key value violates unique constraint "idx_payments_transaction_id"`)
	svc := newOrderService(t, repo, carts, &stubSessionProvider{session: paidSession(cartID, userID)})

	// The winner's payment lands between our fast-path check and the insert.
	repo.missFirstLookup = true
	repo.payments[txID] = &models.Payment{OrderID: winnerOrder, TransactionID: &txID}

	result, err := svc.FinalizeOrder(context.Background(), txID)
	if err != nil {
		t.Fatalf("finalize should resolve to the winner, got %v", err)
	}
	if !result.AlreadyFinalized || result.OrderID != winnerOrder {
		t.Fatalf("expected winner's order, got %+v", result)
	}
}

func TestFinalizeProviderTimeout(t *testing.T) {
	repo := newStubOrdersRepo()
	carts, _, _ := seedFinalizerFixtures()
	svc := newOrderService(t, repo, carts, &stubSessionProvider{delay: 200 * time.Millisecond})

	_, err := svc.FinalizeOrder(context.Background(), "cs_slow")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error on timeout, got %v", err)
	}
}

func TestGetOrderScopedToOwner(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, &stubCartStore{}, &stubSessionProvider{})

	userID := uuid.New()
	order := &models.Order{UserID: userID, Status: enums.OrderStatusPaid, TotalAmount: decimal.New(10, 0)}
	created, _ := repo.CreateOrder(context.Background(), order)

	if _, err := svc.GetOrder(context.Background(), created.ID, userID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	_, err := svc.GetOrder(context.Background(), created.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign order must read as not found, got %v", err)
	}
}

func TestGetOrderByProviderSessionUnconfirmed(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, &stubCartStore{}, &stubSessionProvider{})

	_, err := svc.GetOrderByProviderSession(context.Background(), "cs_unknown", uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unconfirmed session, got %v", err)
	}
}

func TestListOrdersSummarizes(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, &stubCartStore{}, &stubSessionProvider{})

	userID := uuid.New()
	order := &models.Order{UserID: userID, Status: enums.OrderStatusPaid, TotalAmount: decimal.New(42, 0)}
	created, _ := repo.CreateOrder(context.Background(), order)
	created.Items = []models.OrderItem{{Quantity: 2}, {Quantity: 3}}

	page, err := svc.ListOrders(context.Background(), userID, pagination.Params{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(page.Orders))
	}
	if page.Orders[0].ItemCount != 5 {
		t.Fatalf("expected item count 5, got %d", page.Orders[0].ItemCount)
	}
	if page.NextCursor != "" {
		t.Fatalf("single page must not carry a cursor")
	}
}

func TestListOrdersPaginates(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, &stubCartStore{}, &stubSessionProvider{})

	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := &models.Order{UserID: userID, Status: enums.OrderStatusPaid}
		order.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := repo.CreateOrder(context.Background(), order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	first, err := svc.ListOrders(context.Background(), userID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(first.Orders))
	}
	if first.NextCursor == "" {
		t.Fatalf("expected a next cursor")
	}
	if !first.Orders[0].CreatedAt.After(first.Orders[1].CreatedAt) {
		t.Fatalf("orders must be newest first")
	}

	second, err := svc.ListOrders(context.Background(), userID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Orders) != 1 {
		t.Fatalf("expected 1 remaining order, got %d", len(second.Orders))
	}
	if second.NextCursor != "" {
		t.Fatalf("last page must not carry a cursor")
	}

	if _, err := svc.ListOrders(context.Background(), userID, pagination.Params{Cursor: "not-base64!"}); err == nil {
		t.Fatalf("expected invalid cursor to be rejected")
	}
}
