package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/atelier/internal/config"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/money"
	"go.uber.org/zap"
)

const (
	fecJournalCode = "VT"
	fecJournalLib  = "Ventes"

	accountClients = "411"
	accountSales   = "706"
	accountVAT     = "44571"
)

var fecHeader = []string{
	"JournalCode", "JournalLib", "EcritureNum", "EcritureDate", "CompteNum", "CompteLib",
	"CompAuxNum", "CompAuxLib", "PieceRef", "PieceDate", "EcritureLib", "Debit", "Credit",
	"EcritureLet", "DateLet", "ValidDate", "Montantdevise", "Idevise",
}

type fecEntry struct {
	account      string
	accountLabel string
	auxNum       string
	auxLabel     string
	debit        int64
	credit       int64
}

// FEC renders the sales journal of a fiscal year. Each issued invoice is
// balanced over three entries: the client receivable, the sales revenue and
// the collected VAT.
func (s *Service) FEC(ctx context.Context, orgID snowflake.ID, year int) (*File, error) {
	org, err := s.organization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !s.plans.Limits(org.Plan).HasFeature(config.FeatureFECExport) {
		return nil, &FeatureError{Feature: config.FeatureFECExport, Plan: org.Plan}
	}
	if year < 2000 || year > 9999 {
		return nil, ErrInvalidPeriod
	}

	rows, err := s.documents.ListIssuedInvoices(ctx, s.db, documentdomain.ExportFilter{
		OrgID: orgID,
		From:  yearStart(year),
		To:    yearStart(year + 1),
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	w.UseCRLF = true
	if err := w.Write(fecHeader); err != nil {
		return nil, err
	}

	for i, row := range rows {
		num := fmt.Sprintf("%s%06d", fecJournalCode, i+1)
		date := row.IssueDate.UTC().Format(fecDateLayout)
		label := fecLabel("Facture " + row.Number + " " + row.ClientName)
		validDate := date
		if row.SentAt != nil {
			validDate = row.SentAt.UTC().Format(fecDateLayout)
		}

		entries := []fecEntry{
			{
				account:      accountClients,
				accountLabel: "Clients",
				auxNum:       "C" + row.ClientID.String(),
				auxLabel:     fecLabel(row.ClientName),
				debit:        row.Total,
			},
			{account: accountSales, accountLabel: "Prestations de services", credit: row.Subtotal},
			{account: accountVAT, accountLabel: "TVA collectée", credit: row.VATAmount},
		}
		for _, entry := range entries {
			if err := w.Write([]string{
				fecJournalCode,
				fecJournalLib,
				num,
				date,
				entry.account,
				entry.accountLabel,
				entry.auxNum,
				entry.auxLabel,
				row.Number,
				date,
				label,
				money.Format(entry.debit, ","),
				money.Format(entry.credit, ","),
				"",
				"",
				validDate,
				"",
				"",
			}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.log.Info("fec exported",
		zap.String("org_id", orgID.String()),
		zap.Int("year", year),
		zap.Int("invoices", len(rows)),
	)
	return &File{
		Name:        fmt.Sprintf("%sFEC%d1231.txt", strings.ToUpper(strings.ReplaceAll(slug.Make(org.Name), "-", "")), year),
		ContentType: "text/tab-separated-values; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

// fecLabel strips the characters that would break the tab-separated layout.
func fecLabel(value string) string {
	return strings.Join(strings.FieldsFunc(value, func(r rune) bool {
		return r == '\t' || r == '\n' || r == '\r'
	}), " ")
}
