package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSeedEmptyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(SeedEmail, sqlmock.AnyArg(), "Super Admin", "SUPER_ADMIN", true, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := Seed(context.Background(), db, "dev-password"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSeedSkipsPopulatedDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	if err := Seed(context.Background(), db, ""); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(context.Background(), testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Other test packages may share the database, so it is not cleared.
	ctx := context.Background()
	if err := Seed(ctx, db, ""); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(ctx, db, ""); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var users int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users < 1 {
		t.Errorf("expected at least 1 user, got %d", users)
	}
}
