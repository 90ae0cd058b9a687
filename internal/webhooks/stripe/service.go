package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/stride-labs/storefront-backend/internal/orders"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/logger"
)

type orderFinalizer interface {
	FinalizeOrder(ctx context.Context, providerSessionID string) (*orders.FinalizeResult, error)
}

// ServiceParams bundles the dependencies for the checkout webhook service.
type ServiceParams struct {
	Orders orderFinalizer
	Logger *logger.Logger
}

// Service turns verified provider events into order finalizations.
type Service struct {
	orders orderFinalizer
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order finalizer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{orders: params.Orders, logg: params.Logger}, nil
}

// HandleEvent dispatches a verified Stripe event. Events we do not care about are
// acknowledged without work so the provider stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.finalize(ctx, event, sess.ID)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"session_id": sess.ID,
		}), "async payment failed for checkout session")
		return nil
	default:
		return nil
	}
}

func (s *Service) finalize(ctx context.Context, event *stripe.Event, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	result, err := s.orders.FinalizeOrder(ctx, sessionID)
	if err != nil {
		return err
	}

	meta := map[string]any{
		"event_id":   event.ID,
		"session_id": sessionID,
		"order_id":   result.OrderID,
	}
	if result.AlreadyFinalized {
		s.logg.Info(s.logg.WithFields(ctx, meta), "checkout session already finalized")
		return nil
	}
	s.logg.Info(s.logg.WithFields(ctx, meta), "order finalized from webhook")
	return nil
}
