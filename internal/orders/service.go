package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/stride-labs/storefront-backend/internal/cart"
	"github.com/stride-labs/storefront-backend/internal/checkout"
	"github.com/stride-labs/storefront-backend/pkg/db"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"github.com/stride-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/pagination"
)

const paymentsTransactionConstraint = "idx_payments_transaction_id"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service finalizes paid checkout sessions into orders and serves order reads.
type Service interface {
	FinalizeOrder(ctx context.Context, providerSessionID string) (*FinalizeResult, error)
	GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error)
	GetOrderByProviderSession(ctx context.Context, providerSessionID string, userID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID, page pagination.Params) (*OrderHistoryPage, error)
}

type service struct {
	repo        OrdersRepository
	carts       cart.CartRepository
	tx          txRunner
	provider    checkout.StripeCheckoutClient
	callTimeout time.Duration
	now         func() time.Time
}

// ServiceParams bundles the dependencies required to build an order service.
type ServiceParams struct {
	Repo        OrdersRepository
	CartRepo    cart.CartRepository
	Tx          txRunner
	Provider    checkout.StripeCheckoutClient
	CallTimeout time.Duration
}

// NewService constructs an order service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("checkout provider required")
	}
	timeout := params.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &service{
		repo:        params.Repo,
		carts:       params.CartRepo,
		tx:          params.Tx,
		provider:    params.Provider,
		callTimeout: timeout,
		now:         time.Now,
	}, nil
}

// FinalizeOrder turns a paid provider session into a persisted order exactly
// once. The payments.transaction_id unique index is the arbiter: whichever
// caller commits the payment row first wins, and everyone else resolves to
// the winner's order. Safe to call from the success redirect, the webhook,
// and any retry of either.
func (s *service) FinalizeOrder(ctx context.Context, providerSessionID string) (*FinalizeResult, error) {
	if providerSessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	// Fast path: a committed payment means the session is already finalized.
	if payment, err := s.repo.FindPaymentByTransactionID(ctx, providerSessionID); err == nil {
		return &FinalizeResult{OrderID: payment.OrderID, AlreadyFinalized: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment")
	}

	sess, err := s.retrieveSession(ctx, providerSessionID)
	if err != nil {
		return nil, err
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed")
	}

	cartID, userID, err := requiredMetadata(sess)
	if err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		carts := s.carts.WithTx(tx)

		cartRow, err := carts.FindByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		items, err := carts.ListItems(ctx, cartRow.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart is empty")
		}

		shipping, err := repo.CreateAddress(ctx, addressFromSession(sess, userID))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shipping address")
		}
		// Billing is a copy of shipping today; the hosted page collects a
		// billing address but the provider does not return it on the session.
		billing, err := repo.CreateAddress(ctx, addressFromSession(sess, userID))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create billing address")
		}

		order, err := repo.CreateOrder(ctx, &models.Order{
			UserID:            userID,
			Status:            enums.OrderStatusPaid,
			TotalAmount:       decimal.NewFromInt(sess.AmountTotal).Div(decimal.NewFromInt(100)),
			ShippingAddressID: shipping.ID,
			BillingAddressID:  billing.ID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		orderItems := make([]models.OrderItem, 0, len(items))
		for i := range items {
			item := &items[i]
			price := decimal.Zero
			if item.Variant != nil {
				price = item.Variant.EffectivePrice()
			}
			orderItems = append(orderItems, models.OrderItem{
				OrderID:          order.ID,
				ProductVariantID: item.ProductVariantID,
				Quantity:         item.Quantity,
				PriceAtPurchase:  price,
			})
		}
		if err := repo.CreateOrderItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
		}

		paidAt := s.now().UTC()
		transactionID := sess.ID
		if _, err := repo.CreatePayment(ctx, &models.Payment{
			OrderID:       order.ID,
			Method:        enums.PaymentMethodStripe,
			Status:        enums.PaymentStatusCompleted,
			TransactionID: &transactionID,
			PaidAt:        &paidAt,
		}); err != nil {
			return err
		}

		if err := carts.DeleteItems(ctx, cartRow.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart items")
		}
		if err := carts.Delete(ctx, cartRow.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart")
		}

		orderID = order.ID
		return nil
	})
	if txErr != nil {
		// A concurrent finalization committed first; resolve to its order.
		if db.IsUniqueViolation(txErr, paymentsTransactionConstraint) || db.IsUniqueViolation(txErr, "") {
			if payment, err := s.repo.FindPaymentByTransactionID(ctx, providerSessionID); err == nil {
				return &FinalizeResult{OrderID: payment.OrderID, AlreadyFinalized: true}, nil
			}
		}
		if typed := pkgerrors.As(txErr); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "finalize order")
	}

	return &FinalizeResult{OrderID: orderID}, nil
}

// GetOrder returns the order when it belongs to the requesting user.
func (s *service) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return fromModel(order), nil
}

// GetOrderByProviderSession resolves the success-page lookup. A missing
// payment means the session was never finalized, which the client shows as
// "could not confirm" rather than a hard not-found.
func (s *service) GetOrderByProviderSession(ctx context.Context, providerSessionID string, userID uuid.UUID) (*OrderDTO, error) {
	if providerSessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	payment, err := s.repo.FindPaymentByTransactionID(ctx, providerSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order could not be confirmed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment")
	}
	return s.GetOrder(ctx, payment.OrderID, userID)
}

// ListOrders returns one page of the user's order history, newest first.
func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, page pagination.Params) (*OrderHistoryPage, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(page.Limit)

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(page.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	result := &OrderHistoryPage{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	result.Orders = make([]OrderSummary, 0, len(rows))
	for i := range rows {
		result.Orders = append(result.Orders, summarize(&rows[i]))
	}
	return result, nil
}

func (s *service) retrieveSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items")
	params.AddExpand("customer_details")

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	sess, err := s.provider.GetSession(callCtx, id, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	return sess, nil
}

func requiredMetadata(sess *stripe.CheckoutSession) (cartID, userID uuid.UUID, err error) {
	rawCart := sess.Metadata["cartId"]
	rawUser := sess.Metadata["userId"]
	if rawCart == "" || rawUser == "" {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing metadata")
	}
	cartID, err = uuid.Parse(rawCart)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing metadata")
	}
	userID, err = uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing metadata")
	}
	return cartID, userID, nil
}

func addressFromSession(sess *stripe.CheckoutSession, userID uuid.UUID) *models.Address {
	address := &models.Address{UserID: userID}

	var details *stripe.Address
	if ci := sess.CollectedInformation; ci != nil && ci.ShippingDetails != nil {
		address.FullName = ci.ShippingDetails.Name
		details = ci.ShippingDetails.Address
	}
	if cd := sess.CustomerDetails; cd != nil {
		if address.FullName == "" {
			address.FullName = cd.Name
		}
		if cd.Phone != "" {
			phone := cd.Phone
			address.Phone = &phone
		}
		if details == nil {
			details = cd.Address
		}
	}
	if details != nil {
		address.Line1 = details.Line1
		if details.Line2 != "" {
			line2 := details.Line2
			address.Line2 = &line2
		}
		address.City = details.City
		address.State = details.State
		address.PostalCode = details.PostalCode
		address.Country = details.Country
	}
	return address
}
