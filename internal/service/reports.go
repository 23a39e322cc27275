package service

import (
	"context"
	"fmt"
	"time"

	"carmarket/internal/apperr"
	"carmarket/internal/models"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

const reportWeeks = 8

var saleStatuses = []models.OrderStatus{models.OrderPaid, models.OrderCompleted}

type WeeklyBucket struct {
	Week    string  `json:"week"`
	Sales   int     `json:"sales"`
	Revenue float64 `json:"revenue"`
}

type SellerReport struct {
	TotalRevenue     float64                      `json:"total_revenue"`
	TotalSales       int                          `json:"total_sales"`
	ListingsByStatus map[models.ListingStatus]int `json:"listings_by_status"`
	Weekly           []WeeklyBucket               `json:"weekly_data"`
	OpenInquiries    int                          `json:"open_inquiries"`
}

func (s *Service) SellerReport(ctx context.Context, actor policy.Actor) (SellerReport, error) {
	if !policy.RequireSellerConsole(actor) {
		return SellerReport{}, apperr.Forbidden("seller role required")
	}
	sellerID := actor.ID
	if actor.IsAdmin() {
		sellerID = ""
	}
	totals, err := s.orders.SumSales(ctx, sellerID, saleStatuses)
	if err != nil {
		return SellerReport{}, err
	}
	counts, err := s.listings.CountListingsByStatus(ctx, sellerID)
	if err != nil {
		return SellerReport{}, err
	}
	weeks := lastISOWeeks(s.now(), reportWeeks)
	points, err := s.orders.SalesSince(ctx, sellerID, saleStatuses, weeks[0].start)
	if err != nil {
		return SellerReport{}, err
	}
	open, err := s.inquiries.CountInquiries(ctx, sellerID, models.InquiryOpen)
	if err != nil {
		return SellerReport{}, err
	}
	return SellerReport{
		TotalRevenue:     totals.Revenue,
		TotalSales:       totals.Count,
		ListingsByStatus: counts,
		Weekly:           bucketByWeek(weeks, points),
		OpenInquiries:    open,
	}, nil
}

type isoWeek struct {
	key   string
	start time.Time
}

func lastISOWeeks(now time.Time, n int) []isoWeek {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	monday := day.AddDate(0, 0, -offset)
	out := make([]isoWeek, n)
	for i := 0; i < n; i++ {
		start := monday.AddDate(0, 0, -7*(n-1-i))
		out[i] = isoWeek{key: weekKey(start), start: start}
	}
	return out
}

func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func bucketByWeek(weeks []isoWeek, points []store.SalePoint) []WeeklyBucket {
	out := make([]WeeklyBucket, len(weeks))
	idx := make(map[string]int, len(weeks))
	for i, w := range weeks {
		out[i] = WeeklyBucket{Week: w.key}
		idx[w.key] = i
	}
	for _, p := range points {
		i, ok := idx[weekKey(p.CreatedAt.UTC())]
		if !ok {
			continue
		}
		out[i].Sales++
		out[i].Revenue += p.Amount
	}
	return out
}

type Transaction struct {
	OrderID   string             `json:"order_id"`
	ListingID string             `json:"car_id"`
	BuyerID   string             `json:"buyer_id"`
	SellerID  string             `json:"seller_id"`
	Price     float64            `json:"price"`
	Status    models.OrderStatus `json:"status"`
	Date      time.Time          `json:"date"`
}

type SalesReport struct {
	TotalRevenue       float64             `json:"total_revenue"`
	TotalSales         int                 `json:"total_sales"`
	SellerPerformance  []store.SellerSales `json:"seller_performance"`
	RecentTransactions []Transaction       `json:"recent_transactions"`
}

func (s *Service) SalesReport(ctx context.Context, actor policy.Actor) (SalesReport, error) {
	if err := requireAdmin(actor); err != nil {
		return SalesReport{}, err
	}
	totals, err := s.orders.SumSales(ctx, "", saleStatuses)
	if err != nil {
		return SalesReport{}, err
	}
	perSeller, err := s.orders.SalesBySeller(ctx, saleStatuses)
	if err != nil {
		return SalesReport{}, err
	}
	recent, _, err := s.orders.ListOrders(ctx, models.OrderQuery{Statuses: saleStatuses, Limit: 10})
	if err != nil {
		return SalesReport{}, err
	}
	tx := make([]Transaction, 0, len(recent))
	for _, o := range recent {
		tx = append(tx, Transaction{
			OrderID:   o.ID,
			ListingID: o.ListingID,
			BuyerID:   o.BuyerID,
			SellerID:  o.SellerID,
			Price:     o.FinalPrice,
			Status:    o.Status,
			Date:      o.UpdatedAt,
		})
	}
	return SalesReport{
		TotalRevenue:       totals.Revenue,
		TotalSales:         totals.Count,
		SellerPerformance:  perSeller,
		RecentTransactions: tx,
	}, nil
}
