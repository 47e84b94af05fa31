package cmd

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/tender"
)

type countingLookup struct {
	calls int
	res   models.PriceResult
	err   error
}

func (l *countingLookup) Lookup(ctx context.Context, name string) (models.PriceResult, error) {
	l.calls++
	return l.res, l.err
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCachedLookup(t *testing.T) {
	database := openTestDB(t)
	next := &countingLookup{res: models.PriceResult{
		Regular:  models.Found("1 020 ₽"),
		Business: models.NotFound(),
		Link:     "https://market.yandex.ru/card/1",
	}}
	c := &cachedLookup{database: database, next: next, ttl: time.Hour}

	for i := 0; i < 3; i++ {
		res, err := c.Lookup(context.Background(), "Ручка шариковая")
		if err != nil {
			t.Fatalf("Lookup #%d: %v", i, err)
		}
		if res.Regular.Text != "1 020 ₽" || res.Link != "https://market.yandex.ru/card/1" {
			t.Errorf("Lookup #%d returned %+v", i, res)
		}
		if res.Business.IsFound() {
			t.Errorf("Lookup #%d: business price should stay not found", i)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected 1 marketplace call, got %d", next.calls)
	}
}

func TestCachedLookupSkipsFailures(t *testing.T) {
	database := openTestDB(t)
	next := &countingLookup{err: errors.New("timeout")}
	c := &cachedLookup{database: database, next: next, ttl: time.Hour}

	for i := 0; i < 2; i++ {
		if _, err := c.Lookup(context.Background(), "Степлер"); err == nil {
			t.Fatal("Expected the lookup error to surface")
		}
	}
	if next.calls != 2 {
		t.Errorf("Failed lookups must not be cached: expected 2 calls, got %d", next.calls)
	}
}

func TestAutoOutputName(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := autoOutputName(now, false); got != "results_20250304_050607.xlsx" {
		t.Errorf("autoOutputName() = %q", got)
	}
	if got := autoOutputName(now, true); got != "results_20250304_050607_auth.xlsx" {
		t.Errorf("autoOutputName(auth) = %q", got)
	}
}

func TestReleaserRunsOnceInReverse(t *testing.T) {
	var order []string
	rel := &releaser{}
	rel.add(func() { order = append(order, "db") })
	rel.add(func() { order = append(order, "browser") })

	code := -1
	exit := rel.exitFunc(func(c int) { code = c })
	exit(130)
	rel.release()

	if code != 130 {
		t.Errorf("exit code = %d, expected 130", code)
	}
	if len(order) != 2 || order[0] != "browser" || order[1] != "db" {
		t.Errorf("release order = %v, expected [browser db]", order)
	}
}

func TestDescribeTable(t *testing.T) {
	tests := []struct {
		name     string
		table    tender.SourceTable
		expected string
	}{
		{
			name:     "total row found",
			table:    tender.SourceTable{Sheet: "Лист1", NameCol: 2, HeaderRow: 5, StartRow: 6, EndRow: 42, TotalFound: true},
			expected: `sheet "Лист1", names in column B, rows 6-41`,
		},
		{
			name:     "no total row",
			table:    tender.SourceTable{Sheet: "Sheet1", NameCol: 1, HeaderRow: 1, StartRow: 2, EndRow: 10},
			expected: `sheet "Sheet1", names in column A, rows 2-9 (no total row)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeTable(&tt.table); got != tt.expected {
				t.Errorf("describeTable() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
