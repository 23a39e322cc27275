package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	appdb "carmarket/internal/db"
	"carmarket/internal/lifecycle"
	"carmarket/internal/models"
)

const orderColumns = `id,car_id,buyer_id,seller_id,final_price,status,created_at,updated_at`

func scanOrder(row scanner) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.FinalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *Store) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	now := time.Now().UTC()
	o.ID = uuid.NewString()
	o.CreatedAt, o.UpdatedAt = now, now
	o.Documents = []models.OrderDocument{}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO orders(`+orderColumns+`) VALUES(?,?,?,?,?,?,?,?)`),
		o.ID, o.ListingID, o.BuyerID, o.SellerID, o.FinalPrice, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, s.q(`SELECT `+orderColumns+` FROM orders WHERE id=?`), id))
	if err == sql.ErrNoRows {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	o.Documents, err = s.listDocuments(ctx, o.ID)
	return o, err
}

func (s *Store) ListOrders(ctx context.Context, query models.OrderQuery) ([]models.Order, int, error) {
	var w where
	if query.BuyerID != "" {
		w.add("buyer_id=?", query.BuyerID)
	}
	if query.SellerID != "" {
		w.add("seller_id=?", query.SellerID)
	}
	if len(query.Statuses) > 0 {
		vals := make([]string, 0, len(query.Statuses))
		for _, st := range query.Statuses {
			vals = append(vals, string(st))
		}
		w.in("status", vals)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM orders`+w.sql()), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := clampLimit(query.Limit)
	args := append(append([]any{}, w.args...), limit, query.Offset)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+orderColumns+` FROM orders`+w.sql()+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()
	for i := range out {
		docs, err := s.listDocuments(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Documents = docs
	}
	return out, total, nil
}

// TransitionOrder moves the order from "from" to "to". When sellListing is set
// the order's listing is switched to sold in the same transaction, and only if
// it is still available or reserved; otherwise ErrListingSold is returned and
// nothing changes.
func (s *Store) TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, sellListing bool) (models.Order, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, s.q(`UPDATE orders SET status=?, updated_at=? WHERE id=? AND status=?`), to, now, id, from)
		if err != nil {
			return err
		}
		if err := affectedOne(res, ErrConflict); err != nil {
			return err
		}
		if !sellListing {
			return nil
		}
		var carID string
		if err := tx.QueryRowContext(ctx, s.q(`SELECT car_id FROM orders WHERE id=?`), id).Scan(&carID); err != nil {
			return err
		}
		return setListingStatus(ctx, tx, s.q, carID, lifecycle.SellableStatuses(), models.ListingSold, nil, ErrListingSold)
	})
	if err != nil {
		return models.Order{}, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) listDocuments(ctx context.Context, orderID string) ([]models.OrderDocument, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id,order_id,name,location,created_at FROM order_documents WHERE order_id=? ORDER BY seq ASC`), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.OrderDocument{}
	for rows.Next() {
		var d models.OrderDocument
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Name, &d.Location, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) AddDocument(ctx context.Context, orderID, name, location string) (models.OrderDocument, error) {
	d := models.OrderDocument{OrderID: orderID, Name: name, Location: location}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.withTx(ctx, func(tx *sql.Tx) error {
			var seq int
			if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(seq),0)+1 FROM order_documents WHERE order_id=?`), orderID).Scan(&seq); err != nil {
				return err
			}
			d.ID = uuid.NewString()
			d.CreatedAt = time.Now().UTC()
			if _, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO order_documents(id,order_id,seq,name,location,created_at) VALUES(?,?,?,?,?,?)`),
				d.ID, d.OrderID, seq, d.Name, d.Location, d.CreatedAt,
			); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, s.q(`UPDATE orders SET updated_at=? WHERE id=?`), d.CreatedAt, orderID)
			return err
		})
		if !appdb.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return models.OrderDocument{}, err
	}
	return d, nil
}

type SalesTotals struct {
	Revenue float64 `json:"total_revenue"`
	Count   int     `json:"total_sales"`
}

func (s *Store) SumSales(ctx context.Context, sellerID string, statuses []models.OrderStatus) (SalesTotals, error) {
	w := salesWhere(sellerID, statuses)
	var t SalesTotals
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COALESCE(SUM(final_price),0), COUNT(1) FROM orders`+w.sql()), w.args...).Scan(&t.Revenue, &t.Count)
	return t, err
}

type SellerSales struct {
	SellerID   string  `json:"seller_id"`
	SellerName string  `json:"seller_name"`
	Revenue    float64 `json:"revenue"`
	Count      int     `json:"sales"`
}

func (s *Store) SalesBySeller(ctx context.Context, statuses []models.OrderStatus) ([]SellerSales, error) {
	w := salesWhere("", statuses)
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT o.seller_id, COALESCE(u.name,''), COALESCE(SUM(o.final_price),0) AS revenue, COUNT(1) FROM orders o LEFT JOIN users u ON u.id=o.seller_id`+
			prefixWhere(w, "o.")+` GROUP BY o.seller_id, u.name ORDER BY revenue DESC`),
		w.args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SellerSales{}
	for rows.Next() {
		var ss SellerSales
		if err := rows.Scan(&ss.SellerID, &ss.SellerName, &ss.Revenue, &ss.Count); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

type SalePoint struct {
	Amount    float64
	CreatedAt time.Time
}

func (s *Store) SalesSince(ctx context.Context, sellerID string, statuses []models.OrderStatus, since time.Time) ([]SalePoint, error) {
	w := salesWhere(sellerID, statuses)
	w.add("created_at>=?", since.UTC())
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT final_price, created_at FROM orders`+w.sql()+` ORDER BY created_at ASC`), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SalePoint{}
	for rows.Next() {
		var p SalePoint
		if err := rows.Scan(&p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func salesWhere(sellerID string, statuses []models.OrderStatus) where {
	var w where
	if sellerID != "" {
		w.add("seller_id=?", sellerID)
	}
	vals := make([]string, 0, len(statuses))
	for _, st := range statuses {
		vals = append(vals, string(st))
	}
	w.in("status", vals)
	return w
}

func prefixWhere(w where, prefix string) string {
	if len(w.clauses) == 0 {
		return ""
	}
	q := where{}
	for _, c := range w.clauses {
		q.clauses = append(q.clauses, prefix+c)
	}
	return q.sql()
}
