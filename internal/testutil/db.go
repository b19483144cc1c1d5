// Package testutil builds sqlite-backed stores carrying the production schema
// for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/atelier/internal/migration"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens an in-memory sqlite database with the embedded schema. One
// connection is shared, so nested statements inside a transaction must run
// on the transaction handle.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.ApplySQLite(sqlDB); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}

// NewNode returns a snowflake node for test ids.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

type OrgFixture struct {
	ID                   snowflake.ID
	Name                 string
	Plan                 string
	CommissionRate       decimal.Decimal
	StripeAccountID      string
	StripeSecretKeyEnc   string
	StripePublishableKey string
	InvoicesMonthCount   int64
	QuotesMonthCount     int64
	CountersPeriod       string
}

// InsertOrg writes an organization row.
func InsertOrg(t testing.TB, db *gorm.DB, org OrgFixture) {
	t.Helper()
	if org.Name == "" {
		org.Name = "Org " + org.ID.String()
	}
	if org.Plan == "" {
		org.Plan = "free"
	}
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO organizations (id, name, slug, plan, invoices_month_count, quotes_month_count, counters_period,
			stripe_account_id, stripe_secret_key_enc, stripe_publishable_key, commission_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, "org-"+org.ID.String(), org.Plan, org.InvoicesMonthCount, org.QuotesMonthCount, org.CountersPeriod,
		nullable(org.StripeAccountID), nullable(org.StripeSecretKeyEnc), nullable(org.StripePublishableKey),
		org.CommissionRate, now, now,
	).Error
	if err != nil {
		t.Fatalf("insert org: %v", err)
	}
}

func InsertMember(t testing.TB, db *gorm.DB, orgID, userID snowflake.ID, role string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO organization_members (org_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		orgID, userID, role, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("insert member: %v", err)
	}
}

func InsertContact(t testing.TB, db *gorm.DB, orgID, contactID snowflake.ID, name string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO contacts (id, org_id, name, created_at) VALUES (?, ?, ?, ?)`,
		contactID, orgID, name, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("insert contact: %v", err)
	}
}

func InsertProject(t testing.TB, db *gorm.DB, orgID, projectID snowflake.ID, name string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO projects (id, org_id, name, created_at) VALUES (?, ?, ?, ?)`,
		projectID, orgID, name, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("insert project: %v", err)
	}
}

// Count runs a COUNT(*) query and returns the result.
func Count(t testing.TB, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
