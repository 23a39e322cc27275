package policy

import "carmarket/internal/models"

type Actor struct {
	ID   string
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

type Resource struct {
	OwnerID      string
	AllowedRoles []models.Role
}

func CanMutate(actor Actor, res Resource) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.ID == "" || res.OwnerID != actor.ID {
		return false
	}
	for _, r := range res.AllowedRoles {
		if r == actor.Role {
			return true
		}
	}
	return false
}

func ListingResource(l models.Listing) Resource {
	return Resource{OwnerID: l.SellerID, AllowedRoles: []models.Role{models.RoleSeller}}
}

func OrderSellerSide(o models.Order) Resource {
	return Resource{OwnerID: o.SellerID, AllowedRoles: []models.Role{models.RoleSeller}}
}

func OrderBuyerSide(o models.Order) Resource {
	return Resource{OwnerID: o.BuyerID, AllowedRoles: []models.Role{models.RoleUser}}
}

func InquirySellerSide(i models.Inquiry) Resource {
	return Resource{OwnerID: i.SellerID, AllowedRoles: []models.Role{models.RoleSeller}}
}

func CanCreateListing(a Actor) bool {
	return a.Role == models.RoleSeller || a.Role == models.RoleAdmin
}

func CanCheckout(a Actor) bool {
	return a.ID != "" && a.Role == models.RoleUser
}

// IsOrderBuyer holds only for the order's own buyer; admins do not pay on
// someone else's behalf.
func IsOrderBuyer(a Actor, o models.Order) bool {
	return !a.IsAdmin() && CanMutate(a, OrderBuyerSide(o))
}

func CanViewListing(a Actor, l models.Listing) bool {
	switch l.Status {
	case models.ListingPending, models.ListingRejected:
		return a.IsAdmin() || (a.ID != "" && a.ID == l.SellerID)
	}
	return true
}

func CanViewOrder(a Actor, o models.Order) bool {
	return a.IsAdmin() || (a.ID != "" && (a.ID == o.BuyerID || a.ID == o.SellerID))
}

func CanAttachDocument(a Actor, o models.Order) bool {
	return CanViewOrder(a, o)
}

func RequireSellerConsole(a Actor) bool {
	return a.Role == models.RoleSeller || a.Role == models.RoleAdmin
}
