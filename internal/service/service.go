package service

import (
	"context"
	"errors"
	"log"
	"time"

	"carmarket/internal/auth"
	"carmarket/internal/config"
	"carmarket/internal/models"
	"carmarket/internal/notify"
	"carmarket/internal/store"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	EnsureAdmin(ctx context.Context, email, name, passwordHash string) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context, query models.UserQuery) ([]models.User, int, error)
	UpdateUserAdmin(ctx context.Context, id string, patch store.UserAdminPatch) (models.User, error)
	UpdateProfile(ctx context.Context, id string, patch store.ProfilePatch) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	RecordLogin(ctx context.Context, id string) error
}

type ListingRepo interface {
	CreateListing(ctx context.Context, l models.Listing) (models.Listing, error)
	GetListing(ctx context.Context, id string) (models.Listing, error)
	UpdateListingDetails(ctx context.Context, l models.Listing) (models.Listing, error)
	SetListingStatus(ctx context.Context, id string, from []models.ListingStatus, to models.ListingStatus, reason *string) error
	DeleteListing(ctx context.Context, id string) error
	ListListings(ctx context.Context, query models.ListingQuery) ([]models.Listing, int, error)
	CountListingsByStatus(ctx context.Context, sellerID string) (map[models.ListingStatus]int, error)
}

type ImageRepo interface {
	ListImages(ctx context.Context, listingID string) ([]models.ListingImage, error)
	GetImage(ctx context.Context, id string) (models.ListingImage, error)
	AddImages(ctx context.Context, listingID string, urls []string, maxImages int) ([]models.ListingImage, error)
	UpdateImage(ctx context.Context, id string, patch store.ImagePatch) (models.ListingImage, error)
	DeleteImage(ctx context.Context, id string) (models.ListingImage, error)
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o models.Order) (models.Order, error)
	GetOrder(ctx context.Context, id string) (models.Order, error)
	ListOrders(ctx context.Context, query models.OrderQuery) ([]models.Order, int, error)
	TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, sellListing bool) (models.Order, error)
	AddDocument(ctx context.Context, orderID, name, location string) (models.OrderDocument, error)
	SumSales(ctx context.Context, sellerID string, statuses []models.OrderStatus) (store.SalesTotals, error)
	SalesBySeller(ctx context.Context, statuses []models.OrderStatus) ([]store.SellerSales, error)
	SalesSince(ctx context.Context, sellerID string, statuses []models.OrderStatus, since time.Time) ([]store.SalePoint, error)
}

type FavoriteRepo interface {
	AddFavorite(ctx context.Context, userID, listingID string) error
	RemoveFavorite(ctx context.Context, userID, listingID string) (bool, error)
	ListFavoriteIDs(ctx context.Context, userID string) ([]string, error)
}

type InquiryRepo interface {
	CreateInquiry(ctx context.Context, i models.Inquiry) (models.Inquiry, error)
	GetInquiry(ctx context.Context, id string) (models.Inquiry, error)
	ListInquiries(ctx context.Context, query models.InquiryQuery) ([]models.Inquiry, int, error)
	SetInquiryStatus(ctx context.Context, id string, from, to models.InquiryStatus) error
	CountInquiries(ctx context.Context, sellerID string, status models.InquiryStatus) (int, error)
}

type ReviewRepo interface {
	CreateReview(ctx context.Context, r models.Review) (models.Review, error)
	ListReviews(ctx context.Context, listingID string) ([]models.Review, error)
}

type AuditRepo interface {
	InsertAdminAction(ctx context.Context, adminID, actionType, targetID, details string) error
	ListAdminActions(ctx context.Context, query models.AdminActionQuery) ([]models.AdminAction, int, error)
}

type Repos struct {
	Users     UserRepo
	Listings  ListingRepo
	Images    ImageRepo
	Orders    OrderRepo
	Favorites FavoriteRepo
	Inquiries InquiryRepo
	Reviews   ReviewRepo
	Audit     AuditRepo
}

func StoreRepos(st *store.Store) Repos {
	return Repos{
		Users:     st,
		Listings:  st,
		Images:    st,
		Orders:    st,
		Favorites: st,
		Inquiries: st,
		Reviews:   st,
		Audit:     st,
	}
}

type Notifier interface {
	Publish(e notify.Event)
}

type ImageProcessor interface {
	Process(data []byte) ([]byte, error)
}

type MediaStore interface {
	Save(prefix, ext string, data []byte) (string, error)
	Remove(url string) error
}

type Service struct {
	cfg       config.Config
	users     UserRepo
	listings  ListingRepo
	images    ImageRepo
	orders    OrderRepo
	favorites FavoriteRepo
	inquiries InquiryRepo
	reviews   ReviewRepo
	audit     AuditRepo
	tokens    *auth.TokenIssuer
	notifier  Notifier
	processor ImageProcessor
	media     MediaStore
	now       func() time.Time
}

func New(cfg config.Config, repos Repos, tokens *auth.TokenIssuer, notifier Notifier, processor ImageProcessor, media MediaStore) *Service {
	if notifier == nil {
		notifier = discard{}
	}
	return &Service{
		cfg:       cfg,
		users:     repos.Users,
		listings:  repos.Listings,
		images:    repos.Images,
		orders:    repos.Orders,
		favorites: repos.Favorites,
		inquiries: repos.Inquiries,
		reviews:   repos.Reviews,
		audit:     repos.Audit,
		tokens:    tokens,
		notifier:  notifier,
		processor: processor,
		media:     media,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type discard struct{}

func (discard) Publish(notify.Event) {}

type Page struct {
	Limit  int
	Offset int
}

func (s *Service) userEmail(ctx context.Context, id string) string {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("notify recipient lookup failed user=%s err=%v", id, err)
		}
		return ""
	}
	return u.Email
}
