package lifecycle

import (
	"slices"

	"carmarket/internal/models"
)

type Trigger string

const (
	ByAdmin     Trigger = "admin"
	ByOwner     Trigger = "owner"
	BySale      Trigger = "sale"
	ByBuyer     Trigger = "buyer"
	BySellerOps Trigger = "seller"
)

type listingEdge struct {
	from, to models.ListingStatus
}

var listingEdges = map[listingEdge]Trigger{
	{models.ListingPending, models.ListingAvailable}:  ByAdmin,
	{models.ListingPending, models.ListingRejected}:   ByAdmin,
	{models.ListingAvailable, models.ListingReserved}: ByOwner,
	{models.ListingAvailable, models.ListingSold}:     BySale,
	{models.ListingReserved, models.ListingSold}:      BySale,
}

func ListingTrigger(from, to models.ListingStatus) (Trigger, bool) {
	t, ok := listingEdges[listingEdge{from, to}]
	return t, ok
}

func SellableStatuses() []models.ListingStatus {
	return []models.ListingStatus{models.ListingAvailable, models.ListingReserved}
}

func Purchasable(s models.ListingStatus) bool { return s == models.ListingAvailable }

func Sellable(s models.ListingStatus) bool {
	return slices.Contains(SellableStatuses(), s)
}

func Deletable(s models.ListingStatus) bool { return !s.Terminal() }

func VisibleStatuses() []models.ListingStatus {
	return []models.ListingStatus{models.ListingAvailable, models.ListingReserved, models.ListingSold}
}

func Visible(s models.ListingStatus) bool {
	return slices.Contains(VisibleStatuses(), s)
}

type orderEdge struct {
	from, to models.OrderStatus
}

var orderEdges = map[orderEdge]Trigger{
	{models.OrderPendingPayment, models.OrderPaid}:      ByBuyer,
	{models.OrderPendingPayment, models.OrderCancelled}: BySellerOps,
	{models.OrderDraft, models.OrderCompleted}:          BySellerOps,
	{models.OrderDraft, models.OrderCancelled}:          BySellerOps,
}

func OrderTrigger(from, to models.OrderStatus) (Trigger, bool) {
	t, ok := orderEdges[orderEdge{from, to}]
	return t, ok
}

func SellsListing(to models.OrderStatus) bool {
	return to == models.OrderPaid || to == models.OrderCompleted
}

func AcceptsDocuments(s models.OrderStatus) bool { return s != models.OrderCancelled }

var inquiryEdges = map[models.InquiryStatus][]models.InquiryStatus{
	models.InquiryOpen:      {models.InquiryResponded, models.InquiryClosed},
	models.InquiryResponded: {models.InquiryClosed},
}

func CanTransitionInquiry(from, to models.InquiryStatus) bool {
	for _, s := range inquiryEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}
