// Package export renders issued invoices as spreadsheet CSV and as a French
// Fichier des Écritures Comptables.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/money"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dateLayout    = "2006-01-02"
	fecDateLayout = "20060102"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// FeatureError denies an export the organization's plan does not include.
type FeatureError struct {
	Feature string
	Plan    string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature_unavailable: %s on plan %s", e.Feature, e.Plan)
}

func (e *FeatureError) UpgradeRequired() bool { return true }

// File is a rendered export ready to be streamed as an attachment.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Documents documentdomain.Repository
	Orgs      orgdomain.Repository
	Plans     *config.PlanLimitsHolder
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	documents documentdomain.Repository
	orgs      orgdomain.Repository
	plans     *config.PlanLimitsHolder
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("export"),
		clock:     p.Clock,
		documents: p.Documents,
		orgs:      p.Orgs,
		plans:     p.Plans,
	}
}

var Module = fx.Module("export",
	fx.Provide(NewService),
)

// InvoicesCSV lists issued invoices whose issue date falls in [from, to).
// Zero bounds default to the current calendar year.
func (s *Service) InvoicesCSV(ctx context.Context, orgID snowflake.ID, from, to time.Time) (*File, error) {
	org, err := s.organization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	from, to, err = s.period(from, to)
	if err != nil {
		return nil, err
	}

	rows, err := s.documents.ListIssuedInvoices(ctx, s.db, documentdomain.ExportFilter{OrgID: orgID, From: from, To: to})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{
		"number", "issue_date", "due_date", "client", "status", "currency",
		"subtotal", "vat_amount", "total", "paid_at",
	}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.Number,
			row.IssueDate.UTC().Format(dateLayout),
			formatOptionalDate(row.DueDate, dateLayout),
			row.ClientName,
			string(row.Status),
			row.Currency,
			money.Format(row.Subtotal, "."),
			money.Format(row.VATAmount, "."),
			money.Format(row.Total, "."),
			formatOptionalDate(row.PaidAt, dateLayout),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.log.Info("invoice csv exported",
		zap.String("org_id", orgID.String()),
		zap.Int("rows", len(rows)),
	)
	return &File{
		Name:        fmt.Sprintf("%s-invoices-%s-%s.csv", slug.Make(org.Name), from.Format(fecDateLayout), to.AddDate(0, 0, -1).Format(fecDateLayout)),
		ContentType: "text/csv; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

func (s *Service) organization(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrNotFound
	}
	return org, nil
}

func (s *Service) period(from, to time.Time) (time.Time, time.Time, error) {
	if from.IsZero() && to.IsZero() {
		year := s.clock.Now().UTC().Year()
		return yearStart(year), yearStart(year + 1), nil
	}
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	return from.UTC(), to.UTC(), nil
}

// ParseYear validates the year query parameter of the FEC export.
func ParseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year < 2000 || year > 9999 {
		return 0, ErrInvalidPeriod
	}
	return year, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func formatOptionalDate(value *time.Time, layout string) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(layout)
}
