package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateMigrationsDir(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir invalid: %v", err)
	}
}

func TestMigrationsCoverCoreTables(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var all strings.Builder
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join("migrations", e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		all.Write(b)
	}
	sql := all.String()

	tables := []string{
		"users", "guests", "products", "product_variants",
		"carts", "cart_items", "addresses", "orders", "order_items", "payments",
	}
	for _, table := range tables {
		if !strings.Contains(sql, "CREATE TABLE "+table) {
			t.Fatalf("missing CREATE TABLE %s", table)
		}
	}

	constraints := []string{
		"carts_owner_xor",
		"cart_items_quantity_positive",
		"idx_cart_items_cart_variant",
		"idx_payments_transaction_id",
	}
	for _, c := range constraints {
		if !strings.Contains(sql, c) {
			t.Fatalf("missing constraint or index %s", c)
		}
	}
}
