package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/storage"
)

const auctionColumns = `id, property_id, seller_id, title, starting_price, current_price, min_increment,
	deposit_amount, start_time, end_time, payment_window_seconds, status, winning_bid_id, winner_id,
	payment_deadline, payment_status, payment_ref, bid_count, version, created_at, updated_at`

type auctionRow struct {
	ID              string       `db:"id"`
	PropertyID      string       `db:"property_id"`
	SellerID        string       `db:"seller_id"`
	Title           string       `db:"title"`
	StartingPrice   float64      `db:"starting_price"`
	CurrentPrice    float64      `db:"current_price"`
	MinIncrement    float64      `db:"min_increment"`
	DepositAmount   float64      `db:"deposit_amount"`
	StartTime       time.Time    `db:"start_time"`
	EndTime         time.Time    `db:"end_time"`
	PaymentWindow   int64        `db:"payment_window_seconds"`
	Status          string       `db:"status"`
	WinningBidID    string       `db:"winning_bid_id"`
	WinnerID        string       `db:"winner_id"`
	PaymentDeadline sql.NullTime `db:"payment_deadline"`
	PaymentStatus   string       `db:"payment_status"`
	PaymentRef      string       `db:"payment_ref"`
	BidCount        int          `db:"bid_count"`
	Version         int64        `db:"version"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func toAuctionRow(a auction.Auction) auctionRow {
	row := auctionRow{
		ID:            a.ID,
		PropertyID:    a.PropertyID,
		SellerID:      a.SellerID,
		Title:         a.Title,
		StartingPrice: a.StartingPrice,
		CurrentPrice:  a.CurrentPrice,
		MinIncrement:  a.MinIncrement,
		DepositAmount: a.DepositAmount,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		PaymentWindow: int64(a.PaymentWindow / time.Second),
		Status:        string(a.Status),
		WinningBidID:  a.WinningBidID,
		WinnerID:      a.WinnerID,
		PaymentStatus: string(a.PaymentStatus),
		PaymentRef:    a.PaymentRef,
		BidCount:      a.BidCount,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.PaymentDeadline != nil {
		row.PaymentDeadline = sql.NullTime{Time: *a.PaymentDeadline, Valid: true}
	}
	return row
}

func (r auctionRow) toAuction() auction.Auction {
	a := auction.Auction{
		ID:            r.ID,
		PropertyID:    r.PropertyID,
		SellerID:      r.SellerID,
		Title:         r.Title,
		StartingPrice: r.StartingPrice,
		CurrentPrice:  r.CurrentPrice,
		MinIncrement:  r.MinIncrement,
		DepositAmount: r.DepositAmount,
		StartTime:     r.StartTime.UTC(),
		EndTime:       r.EndTime.UTC(),
		PaymentWindow: time.Duration(r.PaymentWindow) * time.Second,
		Status:        auction.Status(r.Status),
		WinningBidID:  r.WinningBidID,
		WinnerID:      r.WinnerID,
		PaymentStatus: auction.PaymentStatus(r.PaymentStatus),
		PaymentRef:    r.PaymentRef,
		BidCount:      r.BidCount,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.PaymentDeadline.Valid {
		deadline := r.PaymentDeadline.Time.UTC()
		a.PaymentDeadline = &deadline
	}
	return a
}

// --- AuctionStore -----------------------------------------------------------

func (s *Store) CreateAuction(ctx context.Context, a auction.Auction) (auction.Auction, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO auctions (`+auctionColumns+`)
		VALUES (:id, :property_id, :seller_id, :title, :starting_price, :current_price, :min_increment,
			:deposit_amount, :start_time, :end_time, :payment_window_seconds, :status, :winning_bid_id, :winner_id,
			:payment_deadline, :payment_status, :payment_ref, :bid_count, :version, :created_at, :updated_at)
	`, toAuctionRow(a))
	if err != nil {
		return auction.Auction{}, mapErr("auction", a.ID, err)
	}
	return a, nil
}

// UpdateAuction writes a only if the stored version still equals a.Version.
func (s *Store) UpdateAuction(ctx context.Context, a auction.Auction) (auction.Auction, error) {
	return s.updateAuction(ctx, s.db, a)
}

func (s *Store) updateAuction(ctx context.Context, q sqlx.QueryerContext, a auction.Auction) (auction.Auction, error) {
	a.UpdatedAt = time.Now().UTC()
	query, args, err := s.db.BindNamed(`
		UPDATE auctions
		SET title = :title, current_price = :current_price, min_increment = :min_increment,
			deposit_amount = :deposit_amount, start_time = :start_time, end_time = :end_time,
			payment_window_seconds = :payment_window_seconds, status = :status,
			winning_bid_id = :winning_bid_id, winner_id = :winner_id, payment_deadline = :payment_deadline,
			payment_status = :payment_status, payment_ref = :payment_ref, bid_count = :bid_count,
			version = version + 1, updated_at = :updated_at
		WHERE id = :id AND version = :version
		RETURNING version, created_at
	`, toAuctionRow(a))
	if err != nil {
		return auction.Auction{}, err
	}

	err = q.QueryRowxContext(ctx, query, args...).Scan(&a.Version, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing auction from a stale version.
		var exists bool
		if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, a.ID); err != nil {
			return auction.Auction{}, err
		}
		if !exists {
			return auction.Auction{}, fmt.Errorf("auction %s: %w", a.ID, storage.ErrNotFound)
		}
		return auction.Auction{}, fmt.Errorf("auction %s version %d: %w", a.ID, a.Version, storage.ErrConflict)
	}
	if err != nil {
		return auction.Auction{}, mapErr("auction", a.ID, err)
	}
	return a, nil
}

func (s *Store) GetAuction(ctx context.Context, id string) (auction.Auction, error) {
	var row auctionRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id); err != nil {
		return auction.Auction{}, mapErr("auction", id, err)
	}
	return row.toAuction(), nil
}

func (s *Store) ListAuctions(ctx context.Context, filter auction.Filter) ([]auction.Auction, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PropertyID != "" {
		args = append(args, filter.PropertyID)
		clauses = append(clauses, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		clauses = append(clauses, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY end_time, id"

	var rows []auctionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]auction.Auction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toAuction())
	}
	return result, nil
}

// --- bids -------------------------------------------------------------------

const bidColumns = `id, auction_id, user_id, amount, winning, created_at`

type bidRow struct {
	ID        string    `db:"id"`
	AuctionID string    `db:"auction_id"`
	UserID    string    `db:"user_id"`
	Amount    float64   `db:"amount"`
	Winning   bool      `db:"winning"`
	CreatedAt time.Time `db:"created_at"`
}

// RecordBid saves the auction, demotes the previous winning bids and inserts
// b in one transaction.
func (s *Store) RecordBid(ctx context.Context, a auction.Auction, b auction.Bid) (auction.Auction, auction.Bid, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.AuctionID = a.ID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return auction.Auction{}, auction.Bid{}, err
	}
	defer tx.Rollback()

	saved, err := s.updateAuction(ctx, tx, a)
	if err != nil {
		return auction.Auction{}, auction.Bid{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE bids SET winning = FALSE WHERE auction_id = $1 AND winning`, a.ID); err != nil {
		return auction.Auction{}, auction.Bid{}, err
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO bids (`+bidColumns+`)
		VALUES (:id, :auction_id, :user_id, :amount, :winning, :created_at)
	`, bidRow(b))
	if err != nil {
		return auction.Auction{}, auction.Bid{}, mapErr("bid", b.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return auction.Auction{}, auction.Bid{}, err
	}
	return saved, b, nil
}

func (s *Store) ListBids(ctx context.Context, auctionID string) ([]auction.Bid, error) {
	var rows []bidRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bidColumns+`
		FROM bids
		WHERE auction_id = $1
		ORDER BY created_at DESC, amount DESC
	`, auctionID)
	if err != nil {
		return nil, err
	}
	result := make([]auction.Bid, 0, len(rows))
	for _, row := range rows {
		result = append(result, auction.Bid(row))
	}
	return result, nil
}

// --- deposits ---------------------------------------------------------------

const depositColumns = `id, auction_id, user_id, amount, reference, status, created_at, updated_at`

type depositRow struct {
	ID        string    `db:"id"`
	AuctionID string    `db:"auction_id"`
	UserID    string    `db:"user_id"`
	Amount    float64   `db:"amount"`
	Reference string    `db:"reference"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r depositRow) toDeposit() auction.Deposit {
	return auction.Deposit{
		ID:        r.ID,
		AuctionID: r.AuctionID,
		UserID:    r.UserID,
		Amount:    r.Amount,
		Reference: r.Reference,
		Status:    auction.DepositStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *Store) CreateDeposit(ctx context.Context, d auction.Deposit) (auction.Deposit, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deposits (`+depositColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.AuctionID, d.UserID, d.Amount, d.Reference, string(d.Status), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return auction.Deposit{}, mapErr("deposit", d.AuctionID+"/"+d.UserID, err)
	}
	return d, nil
}

func (s *Store) UpdateDeposit(ctx context.Context, d auction.Deposit) (auction.Deposit, error) {
	d.UpdatedAt = time.Now().UTC()
	var row depositRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE deposits
		SET amount = $2, reference = $3, status = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+depositColumns, d.ID, d.Amount, d.Reference, string(d.Status), d.UpdatedAt)
	if err != nil {
		return auction.Deposit{}, mapErr("deposit", d.ID, err)
	}
	return row.toDeposit(), nil
}

func (s *Store) GetDepositByUser(ctx context.Context, auctionID, userID string) (auction.Deposit, error) {
	var row depositRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+depositColumns+`
		FROM deposits
		WHERE auction_id = $1 AND user_id = $2
	`, auctionID, userID)
	if err != nil {
		return auction.Deposit{}, mapErr("deposit", auctionID+"/"+userID, err)
	}
	return row.toDeposit(), nil
}

func (s *Store) ListDeposits(ctx context.Context, auctionID string) ([]auction.Deposit, error) {
	var rows []depositRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+depositColumns+`
		FROM deposits
		WHERE auction_id = $1
		ORDER BY created_at, id
	`, auctionID)
	if err != nil {
		return nil, err
	}
	result := make([]auction.Deposit, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDeposit())
	}
	return result, nil
}
