package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func ParseRole(v string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(v))); r {
	case RoleUser, RoleSeller, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", v)
	}
}

type ListingStatus string

const (
	ListingPending   ListingStatus = "pending"
	ListingAvailable ListingStatus = "available"
	ListingReserved  ListingStatus = "reserved"
	ListingSold      ListingStatus = "sold"
	ListingRejected  ListingStatus = "rejected"
)

func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingRejected
}

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingPending, ListingAvailable, ListingReserved, ListingSold, ListingRejected:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderDraft          OrderStatus = "draft"
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderCompleted || s == OrderCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderPendingPayment, OrderPaid, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

type InquiryType string

const (
	InquiryGeneral   InquiryType = "general"
	InquiryTestDrive InquiryType = "test_drive"
)

type InquiryStatus string

const (
	InquiryOpen      InquiryStatus = "open"
	InquiryResponded InquiryStatus = "responded"
	InquiryClosed    InquiryStatus = "closed"
)

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	Phone        *string    `json:"phone,omitempty"`
	Address      *string    `json:"address,omitempty"`
	Avatar       *string    `json:"avatar,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Listing struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Price           float64       `json:"price"`
	Description     string        `json:"description"`
	SellerID        string        `json:"seller_id"`
	Status          ListingStatus `json:"status"`
	Brand           string        `json:"brand"`
	Model           string        `json:"model"`
	Year            *int          `json:"year,omitempty"`
	FuelType        string        `json:"fuel_type,omitempty"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type ListingImage struct {
	ID           string    `json:"id"`
	ListingID    string    `json:"car_id"`
	ImageURL     string    `json:"image_url"`
	IsPrimary    bool      `json:"is_primary"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Order struct {
	ID         string          `json:"id"`
	ListingID  string          `json:"car_id"`
	BuyerID    string          `json:"buyer_id"`
	SellerID   string          `json:"seller_id"`
	FinalPrice float64         `json:"final_price"`
	Status     OrderStatus     `json:"status"`
	Documents  []OrderDocument `json:"documents"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type OrderDocument struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"-"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ListingID string    `json:"car_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Inquiry struct {
	ID            string        `json:"id"`
	ListingID     string        `json:"car_id"`
	UserID        string        `json:"user_id"`
	SellerID      string        `json:"seller_id"`
	Message       string        `json:"message"`
	Type          InquiryType   `json:"type"`
	RequestedDate *string       `json:"requested_date,omitempty"`
	Status        InquiryStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"car_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminAction struct {
	ID          string    `json:"id"`
	AdminID     string    `json:"admin_id"`
	AdminEmail  string    `json:"admin_email,omitempty"`
	ActionType  string    `json:"action_type"`
	TargetID    *string   `json:"target_id,omitempty"`
	DetailsJSON string    `json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserQuery struct {
	Q      string
	Role   Role
	Active *bool
	Limit  int
	Offset int
}

type ListingQuery struct {
	SellerID string
	Statuses []ListingStatus
	Q        string
	Brand    string
	FuelType string
	MinPrice *float64
	MaxPrice *float64
	Limit    int
	Offset   int
}

type OrderQuery struct {
	BuyerID  string
	SellerID string
	Statuses []OrderStatus
	Limit    int
	Offset   int
}

type InquiryQuery struct {
	UserID   string
	SellerID string
	Status   InquiryStatus
	Limit    int
	Offset   int
}

type AdminActionQuery struct {
	ActionType string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
