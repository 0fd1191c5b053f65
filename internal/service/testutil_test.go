package service_test

import (
	"io"
	"testing"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/rowsource"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Foreign keys on, so the suite sees the same constraints Postgres
	// enforces in production.
	db, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	// One in-memory database per connection; keep the pool at a single conn
	// so every query sees the migrated schema.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &model.Stock{}, &model.Sale{}, &model.UploadedFile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func createOwner(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:    email,
		FullName: "Test Owner",
		IsActive: true,
	}
	if err := user.SetPassword("secret-password"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return user
}

func createStock(t *testing.T, db *gorm.DB, ownerID uuid.UUID, name string, qty int, price string, minStock int) *model.Stock {
	t.Helper()

	p, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	stock := &model.Stock{
		UserID:      ownerID,
		ProductName: name,
		Quantity:    qty,
		Price:       p,
		MinStock:    minStock,
	}
	if err := db.Create(stock).Error; err != nil {
		t.Fatalf("create stock: %v", err)
	}
	return stock
}

func reloadStock(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Stock {
	t.Helper()

	var stock model.Stock
	if err := db.First(&stock, "id = ?", id).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	return &stock
}

// sliceSource feeds fixed rows to the reconciliation engine.
type sliceSource struct {
	rows []rowsource.Row
	pos  int
}

func (s *sliceSource) Next() (rowsource.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceSource) Reset() error {
	s.pos = 0
	return nil
}

func (s *sliceSource) Close() error { return nil }
