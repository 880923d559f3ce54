package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
	"medusa-storefront/internal/event"
	"medusa-storefront/internal/medusa"
	"medusa-storefront/internal/metrics"
	"medusa-storefront/internal/session"
)

const ConfirmationPath = "/order-confirmation"

// publishTimeout bounds the order event write that follows a placed order.
const publishTimeout = 2 * time.Second

type completer interface {
	CompleteCart(ctx context.Context, cartID string) (json.RawMessage, error)
}

// Finalizer turns a cart into an order at most once per session.
type Finalizer struct {
	backend completer
	events  event.Publisher
	logger  *zap.Logger
}

func NewFinalizer(backend completer, events event.Publisher, logger *zap.Logger) *Finalizer {
	if events == nil {
		events = event.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{backend: backend, events: events, logger: logger}
}

type Completion struct {
	Order    *domain.Order `json:"order"`
	Redirect string        `json:"redirect"`
}

func (f *Finalizer) Complete(ctx context.Context, sess *session.Session, cartID string) (*Completion, error) {
	log := f.logger.With(zap.String("cart_id", cartID), zap.String("session_id", sess.ID()))

	if err := sess.BeginCompletion(ctx, cartID); err != nil {
		metrics.CheckoutCompletions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	order, err := f.complete(ctx, cartID)
	if err != nil {
		metrics.CheckoutCompletions.WithLabelValues("failed").Inc()
		if aerr := sess.AbortCompletion(ctx, cartID); aerr != nil {
			log.Error("release completion guard", zap.Error(aerr))
		}
		log.Warn("cart completion failed", zap.Error(err))
		return nil, err
	}

	if err := sess.SaveOrder(ctx, order.ID, order.Raw); err != nil {
		log.Error("cache completed order", zap.String("order_id", order.ID), zap.Error(err))
	}
	if err := sess.ClearCartID(ctx); err != nil {
		log.Error("clear cart pointer", zap.Error(err))
	}
	if err := sess.FinishCompletion(ctx, cartID); err != nil {
		log.Error("mark cart completed", zap.Error(err))
	}
	metrics.CheckoutCompletions.WithLabelValues("completed").Inc()
	log.Info("order placed", zap.String("order_id", order.ID))

	f.publish(ctx, sess, cartID, order)

	return &Completion{
		Order:    order,
		Redirect: ConfirmationPath + "?order_id=" + url.QueryEscape(order.ID),
	}, nil
}

func (f *Finalizer) complete(ctx context.Context, cartID string) (*domain.Order, error) {
	raw, err := f.backend.CompleteCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return interpretCompletion(raw)
}

func (f *Finalizer) publish(ctx context.Context, sess *session.Session, cartID string, order *domain.Order) {
	ev, err := event.New(event.TypeOrderCompleted, order.ID, event.OrderCompleted{
		OrderID:    order.ID,
		DisplayID:  order.DisplayID,
		CartID:     cartID,
		SessionID:  sess.ID(),
		Email:      order.Email,
		Currency:   order.Currency,
		TotalCents: order.TotalCents,
	})
	if err == nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err = f.events.Publish(pctx, ev)
		cancel()
	}
	if err != nil {
		f.logger.Warn("publish order event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// Order returns an order this session placed earlier.
func (f *Finalizer) Order(ctx context.Context, sess *session.Session, orderID string) (*domain.Order, error) {
	raw, err := sess.Order(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("order not found")
		}
		return nil, err
	}
	return medusa.DecodeOrder(raw)
}

type completionBody struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Order json.RawMessage `json:"order"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type idOnly struct {
	ID string `json:"id"`
}

// interpretCompletion reads both the discriminated response
// ({type:"order"|"cart", ...}) and the older undiscriminated shapes.
func interpretCompletion(raw json.RawMessage) (*domain.Order, error) {
	var body completionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, domain.NewTransportError("Unexpected completion response", err)
	}

	if body.Type == "cart" {
		msg := "Failed to complete order"
		if body.Error != nil && strings.TrimSpace(body.Error.Message) != "" {
			msg = body.Error.Message
		}
		return nil, domain.NewProviderError(msg)
	}

	payload := raw
	candidates := []json.RawMessage{body.Data, body.Order}
	switch {
	case body.Type == "order":
		// A discriminated response carries the order under "order" only.
		if isObject(body.Order) {
			payload = body.Order
		}
		candidates = []json.RawMessage{body.Order}
	case isObject(body.Data):
		payload = body.Data
	case isObject(body.Order):
		payload = body.Order
	}

	id := firstID(append([]json.RawMessage{payload}, candidates...)...)
	if id == "" {
		id = body.ID
	}
	if id == "" {
		return nil, domain.NewTransportError("Order ID not found in response", nil)
	}

	order, err := medusa.DecodeOrder(payload)
	if err != nil {
		return nil, domain.NewTransportError("Unexpected completion response", err)
	}
	order.ID = id
	return order, nil
}

func firstID(candidates ...json.RawMessage) string {
	for _, c := range candidates {
		if !isObject(c) {
			continue
		}
		var v idOnly
		if json.Unmarshal(c, &v) == nil && v.ID != "" {
			return v.ID
		}
	}
	return ""
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
