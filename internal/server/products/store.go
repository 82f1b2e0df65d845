// Package products is the catalog lookup the cart validates against:
// does a product exist, and what are its current price and old price.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID       string
	Brand    string
	Model    string
	Image    string
	Price    decimal.Decimal
	OldPrice *decimal.Decimal
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, brand, model, image, price, old_price FROM products WHERE id = ?`, id)

	var (
		p        Product
		price    string
		oldPrice sql.NullString
	)
	err := row.Scan(&p.ID, &p.Brand, &p.Model, &p.Image, &price, &oldPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("price[%s] is not valid: %w", price, err)
	}
	if oldPrice.Valid {
		old, err := decimal.NewFromString(oldPrice.String)
		if err != nil {
			return nil, fmt.Errorf("old price[%s] is not valid: %w", oldPrice.String, err)
		}
		p.OldPrice = &old
	}

	return &p, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
