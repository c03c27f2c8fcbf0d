package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"foodshare-api/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const listingColumns = `
	id, title, description, price_cents, original_price_cents, category,
	storage_condition, package_status, expiry_label,
	latitude, longitude, address, city, district, image_ref,
	creator_id, creator_display_name, status, reserved_by, reserved_by_display_name,
	created_at, updated_at`

const matchColumns = `
	id, listing_id, listing_title, listing_image_ref, giver_id, giver_display_name,
	seeker_id, seeker_display_name, status, created_at, updated_at`

// PostgresStore is the relational backend. Conditional writes are single
// UPDATE statements guarded by the expected status.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Printf("[POSTGRES] %s failed: %v", op, err)
	return unavailable(op, err)
}

func pgCode(err error) string {
	var e *pgconn.PgError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func scanListing(row pgx.Row) (*model.FoodListing, error) {
	var (
		l        model.FoodListing
		lat, lng *float64
	)
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.PriceCents, &l.OriginalPriceCents, &l.Category,
		&l.StorageCondition, &l.PackageStatus, &l.ExpiryLabel,
		&lat, &lng, &l.Location.Address, &l.Location.City, &l.Location.District, &l.ImageRef,
		&l.CreatorID, &l.CreatorDisplayName, &l.Status, &l.ReservedBy, &l.ReservedByDisplayName,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		l.Location.Coordinates = &model.Coordinates{Latitude: *lat, Longitude: *lng}
	}
	return &l, nil
}

func scanMatch(row pgx.Row) (*model.MatchRequest, error) {
	var m model.MatchRequest
	err := row.Scan(
		&m.ID, &m.ListingID, &m.ListingTitle, &m.ListingImageRef, &m.GiverID, &m.GiverDisplayName,
		&m.SeekerID, &m.SeekerDisplayName, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func coordinateArgs(loc model.Location) (lat, lng *float64) {
	if c := loc.Coordinates; c != nil {
		return &c.Latitude, &c.Longitude
	}
	return nil, nil
}

func (s *PostgresStore) CreateListing(ctx context.Context, l *model.FoodListing) (*model.FoodListing, error) {
	lat, lng := coordinateArgs(l.Location)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO listings (
			id, title, description, price_cents, original_price_cents, category,
			storage_condition, package_status, expiry_label,
			latitude, longitude, address, city, district, image_ref,
			creator_id, creator_display_name, status, reserved_by, reserved_by_display_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING `+listingColumns,
		uuid.NewString(), l.Title, l.Description, l.PriceCents, l.OriginalPriceCents, l.Category,
		l.StorageCondition, l.PackageStatus, l.ExpiryLabel,
		lat, lng, l.Location.Address, l.Location.City, l.Location.District, l.ImageRef,
		l.CreatorID, l.CreatorDisplayName, l.Status, l.ReservedBy, l.ReservedByDisplayName,
	)
	out, err := scanListing(row)
	if err != nil {
		return nil, pgErr("create listing", err)
	}
	return out, nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.FoodListing, error) {
	out, err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("listing", id)
	}
	if err != nil {
		return nil, pgErr("get listing", err)
	}
	return out, nil
}

// missedPrecondition tells a missing row from one whose status moved on.
func (s *PostgresStore) missedPrecondition(ctx context.Context, id string) error {
	if _, err := s.GetListing(ctx, id); err != nil {
		return err
	}
	return conflict("listing", id)
}

func (s *PostgresStore) UpdateListingContentIf(ctx context.Context, id string, pre model.Precondition, in model.ListingInput) (*model.FoodListing, error) {
	lat, lng := coordinateArgs(in.Location)
	row := s.pool.QueryRow(ctx, `
		UPDATE listings SET
			title = $4, description = $5, price_cents = $6, original_price_cents = $7,
			category = $8, storage_condition = $9, package_status = $10, expiry_label = $11,
			latitude = $12, longitude = $13, address = $14, city = $15, district = $16,
			image_ref = $17, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND ($3::text = '' OR reserved_by = $3::text)
		RETURNING `+listingColumns,
		id, pre.Status, pre.ReservedBy,
		in.Title, in.Description, in.PriceCents, in.OriginalPriceCents,
		in.Category, in.StorageCondition, in.PackageStatus, in.ExpiryLabel,
		lat, lng, in.Location.Address, in.Location.City, in.Location.District,
		in.ImageRef,
	)
	out, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missedPrecondition(ctx, id)
	}
	if err != nil {
		return nil, pgErr("update listing", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateListingStatusIf(ctx context.Context, id string, pre model.Precondition, change model.StatusChange) (*model.FoodListing, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE listings SET
			status = $4::text,
			reserved_by = CASE WHEN $4::text = 'available' THEN NULL WHEN $4::text = 'reserved' THEN $5::text ELSE reserved_by END,
			reserved_by_display_name = CASE WHEN $4::text = 'available' THEN NULL WHEN $4::text = 'reserved' THEN $6::text ELSE reserved_by_display_name END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2 AND ($3::text = '' OR reserved_by = $3::text)
		RETURNING `+listingColumns,
		id, pre.Status, pre.ReservedBy, change.Status, change.ReservedBy, change.ReservedByDisplayName,
	)
	out, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missedPrecondition(ctx, id)
	}
	if err != nil {
		return nil, pgErr("update listing status", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteListingIf(ctx context.Context, id string, pre model.Precondition) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM listings
		WHERE id = $1 AND status = $2 AND ($3::text = '' OR reserved_by = $3::text)
	`, id, pre.Status, pre.ReservedBy)
	if err != nil {
		return pgErr("delete listing", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missedPrecondition(ctx, id)
	}
	return nil
}

func (s *PostgresStore) queryListings(ctx context.Context, op, where string, args ...any) ([]model.FoodListing, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE `+where, args...)
	if err != nil {
		return nil, pgErr(op, err)
	}
	defer rows.Close()

	out := make([]model.FoodListing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, pgErr(op, err)
		}
		out = append(out, *l)
	}
	return out, pgErr(op, rows.Err())
}

// pageClause appends the keyset condition, order and limit for page to a
// WHERE clause whose arguments are args.
func pageClause(where string, args []any, page Page) (string, []any) {
	if page.After != nil {
		args = append(args, page.After.CreatedAt, page.After.ID)
		where += fmt.Sprintf(` AND (created_at, id) < ($%d::timestamptz, $%d::text)`, len(args)-1, len(args))
	}
	args = append(args, limitOrDefault(page.Limit))
	return where + fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)), args
}

func (s *PostgresStore) ListAvailable(ctx context.Context, page Page) ([]model.FoodListing, error) {
	where, args := pageClause(`status = $1`, []any{model.ListingAvailable}, page)
	return s.queryListings(ctx, "list available", where, args...)
}

func (s *PostgresStore) ListByCreator(ctx context.Context, creatorID string, page Page) ([]model.FoodListing, error) {
	where, args := pageClause(`creator_id = $1`, []any{creatorID}, page)
	return s.queryListings(ctx, "list by creator", where, args...)
}

func (s *PostgresStore) ListReservedBy(ctx context.Context, userID string, page Page) ([]model.FoodListing, error) {
	where, args := pageClause(`reserved_by = $1`, []any{userID}, page)
	return s.queryListings(ctx, "list reserved by", where, args...)
}

// CreateMatch relies on the partial unique index over (listing_id, seeker_id)
// for non-rejected requests.
func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.MatchRequest) (*model.MatchRequest, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO matches (
			id, listing_id, listing_title, listing_image_ref, giver_id, giver_display_name,
			seeker_id, seeker_display_name, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+matchColumns,
		uuid.NewString(), m.ListingID, m.ListingTitle, m.ListingImageRef, m.GiverID, m.GiverDisplayName,
		m.SeekerID, m.SeekerDisplayName, m.Status,
	)
	out, err := scanMatch(row)
	if pgCode(err) == pgUniqueViolation {
		existing, err := scanMatch(s.pool.QueryRow(ctx, `
			SELECT `+matchColumns+` FROM matches
			WHERE listing_id = $1 AND seeker_id = $2 AND status <> 'rejected'
		`, m.ListingID, m.SeekerID))
		if err != nil {
			return nil, pgErr("get active request", err)
		}
		return existing, ErrDuplicateMatch
	}
	if err != nil {
		return nil, pgErr("create request", err)
	}
	return out, nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*model.MatchRequest, error) {
	out, err := scanMatch(s.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("request", id)
	}
	if err != nil {
		return nil, pgErr("get request", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateMatchStatusIf(ctx context.Context, id string, expected, next model.MatchStatus) (*model.MatchRequest, error) {
	out, err := scanMatch(s.pool.QueryRow(ctx, `
		UPDATE matches SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+matchColumns, id, expected, next))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.GetMatch(ctx, id); err != nil {
			return nil, err
		}
		return nil, conflict("request", id)
	}
	if err != nil {
		return nil, pgErr("update request status", err)
	}
	return out, nil
}

func matchWhere(f MatchFilter) (string, []any) {
	conditions := []string{"TRUE"}
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.ListingID != "" {
		add("listing_id", f.ListingID)
	}
	if f.GiverID != "" {
		add("giver_id", f.GiverID)
	}
	if f.SeekerID != "" {
		add("seeker_id", f.SeekerID)
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	return strings.Join(conditions, " AND "), args
}

func (s *PostgresStore) ListMatches(ctx context.Context, f MatchFilter) ([]model.MatchRequest, error) {
	where, args := matchWhere(f)
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE %s ORDER BY created_at DESC, id LIMIT %d`,
		matchColumns, where, limitOrDefault(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pgErr("list requests", err)
	}
	defer rows.Close()

	out := make([]model.MatchRequest, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, pgErr("list requests", err)
		}
		out = append(out, *m)
	}
	return out, pgErr("list requests", rows.Err())
}

func (s *PostgresStore) CountMatches(ctx context.Context, f MatchFilter) (int, error) {
	where, args := matchWhere(f)
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM matches WHERE "+where, args...).Scan(&n); err != nil {
		return 0, pgErr("count requests", err)
	}
	return n, nil
}

func (s *PostgresStore) AddMessage(ctx context.Context, matchID string, msg *model.Message) (*model.Message, error) {
	out := *msg
	out.MatchID = matchID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, match_id, sender_id, sender_display_name, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, uuid.NewString(), matchID, msg.SenderID, msg.SenderDisplayName, msg.Text).Scan(&out.ID, &out.CreatedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return nil, notFound("request", matchID)
	}
	if err != nil {
		return nil, pgErr("add message", err)
	}
	return &out, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, match_id, sender_id, sender_display_name, text, created_at FROM (
			SELECT * FROM messages WHERE match_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, matchID, limitOrDefault(limit))
	if err != nil {
		return nil, pgErr("list messages", err)
	}
	defer rows.Close()

	out := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.SenderDisplayName, &m.Text, &m.CreatedAt); err != nil {
			return nil, pgErr("list messages", err)
		}
		out = append(out, m)
	}
	return out, pgErr("list messages", rows.Err())
}
