package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"carmarket/internal/apperr"
	"carmarket/internal/lifecycle"
	"carmarket/internal/models"
	"carmarket/internal/notify"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

func (s *Service) Checkout(ctx context.Context, actor policy.Actor, listingID string) (models.Order, error) {
	if !policy.CanCheckout(actor) {
		return models.Order{}, apperr.Forbidden("only buyer accounts can check out")
	}
	l, err := s.loadListing(ctx, actor, listingID)
	if err != nil {
		return models.Order{}, err
	}
	if l.SellerID == actor.ID {
		return models.Order{}, apperr.Validation("cannot buy your own listing")
	}
	if !lifecycle.Purchasable(l.Status) {
		return models.Order{}, apperr.Conflict("listing unavailable")
	}
	o, err := s.orders.CreateOrder(ctx, models.Order{
		ListingID:  l.ID,
		BuyerID:    actor.ID,
		SellerID:   l.SellerID,
		FinalPrice: l.Price,
		Status:     models.OrderPendingPayment,
	})
	if err != nil {
		return models.Order{}, err
	}
	log.Printf("checkout order=%s car_id=%s buyer=%s price=%.2f", o.ID, l.ID, actor.ID, o.FinalPrice)
	return o, nil
}

func (s *Service) loadOrder(ctx context.Context, id string) (models.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, apperr.NotFound("order not found")
	}
	return o, err
}

func (s *Service) ConfirmPayment(ctx context.Context, actor policy.Actor, orderID string) (models.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	paid, err := s.transitionOrder(ctx, actor, o, models.OrderPaid, "order is not awaiting payment")
	if err != nil {
		return models.Order{}, err
	}
	s.notifier.Publish(notify.Event{
		Type:      notify.EventPaymentConfirmed,
		ListingID: paid.ListingID,
		OrderID:   paid.ID,
		ActorID:   actor.ID,
		Recipient: s.userEmail(ctx, paid.SellerID),
		Summary:   fmt.Sprintf("Payment confirmed for order %s", paid.ID),
		Data:      map[string]string{"amount": fmt.Sprintf("%.2f", paid.FinalPrice), "car_id": paid.ListingID},
	})
	return paid, nil
}

func (s *Service) transitionOrder(ctx context.Context, actor policy.Actor, o models.Order, to models.OrderStatus, staleMsg string) (models.Order, error) {
	trigger, ok := lifecycle.OrderTrigger(o.Status, to)
	switch {
	case !ok && !policy.CanViewOrder(actor, o):
		return models.Order{}, apperr.Forbidden("not allowed to modify this order")
	case !ok:
		return models.Order{}, apperr.Conflict(staleMsg)
	case trigger == lifecycle.ByBuyer && !policy.IsOrderBuyer(actor, o):
		return models.Order{}, apperr.Forbidden("only the buyer can confirm payment")
	case trigger == lifecycle.BySellerOps && !policy.CanMutate(actor, policy.OrderSellerSide(o)):
		return models.Order{}, apperr.Forbidden("not allowed to modify this order")
	}
	updated, err := s.orders.TransitionOrder(ctx, o.ID, o.Status, to, lifecycle.SellsListing(to))
	switch {
	case errors.Is(err, store.ErrListingSold):
		log.Printf("order transition lost sale order=%s car_id=%s to=%s", o.ID, o.ListingID, to)
		return models.Order{}, apperr.Conflict("listing already sold")
	case errors.Is(err, store.ErrConflict):
		return models.Order{}, apperr.Conflict(staleMsg)
	case err != nil:
		return models.Order{}, err
	}
	log.Printf("order status changed id=%s from=%s to=%s", o.ID, o.Status, to)
	return updated, nil
}

func (s *Service) MyOrders(ctx context.Context, actor policy.Actor, page Page) ([]models.Order, int, error) {
	return s.orders.ListOrders(ctx, models.OrderQuery{BuyerID: actor.ID, Limit: page.Limit, Offset: page.Offset})
}

func (s *Service) SellerOrders(ctx context.Context, actor policy.Actor, query models.OrderQuery) ([]models.Order, int, error) {
	if !policy.RequireSellerConsole(actor) {
		return nil, 0, apperr.Forbidden("seller role required")
	}
	query.BuyerID = ""
	if !actor.IsAdmin() {
		query.SellerID = actor.ID
	}
	return s.orders.ListOrders(ctx, query)
}

type ManualOrderInput struct {
	ListingID  string  `json:"car_id"`
	BuyerID    string  `json:"buyer_id"`
	FinalPrice float64 `json:"final_price"`
}

func (s *Service) CreateManualOrder(ctx context.Context, actor policy.Actor, in ManualOrderInput) (models.Order, error) {
	price := math.Round(in.FinalPrice*100) / 100
	if strings.TrimSpace(in.ListingID) == "" || strings.TrimSpace(in.BuyerID) == "" {
		return models.Order{}, apperr.Validation("car_id and buyer_id are required")
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.Order{}, apperr.Validation("final_price must be greater than 0")
	}
	l, err := s.loadOwnedListing(ctx, actor, in.ListingID)
	if err != nil {
		return models.Order{}, err
	}
	if !lifecycle.Sellable(l.Status) {
		return models.Order{}, apperr.Conflict("listing unavailable")
	}
	buyer, err := s.users.GetUserByID(ctx, in.BuyerID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, apperr.Validation("buyer not found")
	}
	if err != nil {
		return models.Order{}, err
	}
	if buyer.ID == l.SellerID {
		return models.Order{}, apperr.Validation("cannot buy your own listing")
	}
	if buyer.Role != models.RoleUser || !buyer.IsActive {
		return models.Order{}, apperr.Validation("buyer must be an active user account")
	}
	o, err := s.orders.CreateOrder(ctx, models.Order{
		ListingID:  l.ID,
		BuyerID:    buyer.ID,
		SellerID:   l.SellerID,
		FinalPrice: price,
		Status:     models.OrderDraft,
	})
	if err != nil {
		return models.Order{}, err
	}
	log.Printf("manual order created id=%s car_id=%s buyer=%s actor=%s", o.ID, l.ID, buyer.ID, actor.ID)
	return o, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, actor policy.Actor, orderID string, to models.OrderStatus) (models.Order, error) {
	if to != models.OrderCompleted && to != models.OrderCancelled {
		return models.Order{}, apperr.Validation("status must be completed or cancelled")
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	updated, err := s.transitionOrder(ctx, actor, o, to, "order status changed, reload and retry")
	if err != nil {
		return models.Order{}, err
	}
	if to == models.OrderCompleted {
		s.notifier.Publish(notify.Event{
			Type:      notify.EventOrderCompleted,
			ListingID: updated.ListingID,
			OrderID:   updated.ID,
			ActorID:   actor.ID,
			Recipient: s.userEmail(ctx, updated.BuyerID),
			Summary:   fmt.Sprintf("Order %s completed", updated.ID),
			Data:      map[string]string{"amount": fmt.Sprintf("%.2f", updated.FinalPrice), "car_id": updated.ListingID},
		})
	}
	return updated, nil
}

type DocumentInput struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (s *Service) AddDocument(ctx context.Context, actor policy.Actor, orderID string, in DocumentInput) (models.Order, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	if in.Name == "" || in.Location == "" {
		return models.Order{}, apperr.Validation("name and location are required")
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !policy.CanAttachDocument(actor, o) {
		return models.Order{}, apperr.Forbidden("not allowed to modify this order")
	}
	if !lifecycle.AcceptsDocuments(o.Status) {
		return models.Order{}, apperr.Conflict("order is cancelled")
	}
	if _, err := s.orders.AddDocument(ctx, o.ID, in.Name, in.Location); err != nil {
		return models.Order{}, err
	}
	return s.loadOrder(ctx, o.ID)
}
