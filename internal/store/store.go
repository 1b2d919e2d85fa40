package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"saladas-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewStoreWithDB(db), nil
}

// NewStoreWithDB wraps an existing connection
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListStores retrieves all stores ordered by name
func (s *Store) ListStores(ctx context.Context) ([]models.Store, error) {
	stores := []models.Store{}
	err := s.db.SelectContext(ctx, &stores, "SELECT id, name, created_at FROM stores ORDER BY name")
	return stores, err
}

// GetStore retrieves a store by ID
func (s *Store) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st, "SELECT id, name, created_at FROM stores WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListSaladTypes retrieves the salad catalog
func (s *Store) ListSaladTypes(ctx context.Context) ([]models.SaladType, error) {
	types := []models.SaladType{}
	err := s.db.SelectContext(ctx, &types,
		"SELECT id, name, sale_price, validity_days, requires_sauce FROM salad_types ORDER BY name")
	return types, err
}

// GetSaladTypesByIDs retrieves multiple salad types by IDs
func (s *Store) GetSaladTypesByIDs(ctx context.Context, ids []int64) ([]models.SaladType, error) {
	if len(ids) == 0 {
		return []models.SaladType{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, name, sale_price, validity_days, requires_sauce FROM salad_types WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var types []models.SaladType
	err = s.db.SelectContext(ctx, &types, query, args...)
	return types, err
}

// ListSauces retrieves all sauces
func (s *Store) ListSauces(ctx context.Context) ([]models.Sauce, error) {
	sauces := []models.Sauce{}
	err := s.db.SelectContext(ctx, &sauces, "SELECT id, name, price FROM sauces ORDER BY name")
	return sauces, err
}

// GetSaucesByIDs retrieves multiple sauces by IDs
func (s *Store) GetSaucesByIDs(ctx context.Context, ids []int64) ([]models.Sauce, error) {
	if len(ids) == 0 {
		return []models.Sauce{}, nil
	}

	query, args, err := sqlx.In("SELECT id, name, price FROM sauces WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var sauces []models.Sauce
	err = s.db.SelectContext(ctx, &sauces, query, args...)
	return sauces, err
}

const userColumns = `u.id, u.email, u.full_name, u.password_hash, u.profile_id, p.username AS profile,
	u.store_id, COALESCE(st.name, '') AS store_name, u.created_at`

const userJoins = `FROM users u
	JOIN profiles p ON p.id = u.profile_id
	LEFT JOIN stores st ON st.id = u.store_id`

// GetUserByEmail retrieves a user with its profile name
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" "+userJoins+" WHERE LOWER(u.email) = LOWER($1)", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user with its profile name
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" "+userJoins+" WHERE u.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureProfile inserts a profile if missing and returns its ID
func (s *Store) EnsureProfile(ctx context.Context, profile models.Profile) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO profiles (username) VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`, string(profile))
	return id, err
}

// EnsureStore inserts a store if missing and returns its ID
func (s *Store) EnsureStore(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO stores (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name)
	return id, err
}

// UpsertSaladType inserts or refreshes a catalog entry by name
func (s *Store) UpsertSaladType(ctx context.Context, st *models.SaladType) error {
	return s.db.GetContext(ctx, &st.ID, `
		INSERT INTO salad_types (name, sale_price, validity_days, requires_sauce)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			sale_price = EXCLUDED.sale_price,
			validity_days = EXCLUDED.validity_days,
			requires_sauce = EXCLUDED.requires_sauce
		RETURNING id`, st.Name, st.SalePrice, st.ValidityDays, st.RequiresSauce)
}

// UpsertSauce inserts or refreshes a sauce by name
func (s *Store) UpsertSauce(ctx context.Context, sauce *models.Sauce) error {
	return s.db.GetContext(ctx, &sauce.ID, `
		INSERT INTO sauces (name, price) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET price = EXCLUDED.price
		RETURNING id`, sauce.Name, sauce.Price)
}

// UpsertUser inserts or refreshes a user by email
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	return s.db.GetContext(ctx, &user.ID, `
		INSERT INTO users (email, full_name, password_hash, profile_id, store_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			password_hash = EXCLUDED.password_hash,
			profile_id = EXCLUDED.profile_id,
			store_id = EXCLUDED.store_id
		RETURNING id`, user.Email, user.FullName, user.PasswordHash, user.ProfileID, user.StoreID)
}

// lockKey serializes writers on key until the transaction ends
func lockKey(ctx context.Context, tx *sqlx.Tx, key string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return nil
}
