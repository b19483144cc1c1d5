package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type DocType string

const (
	DocTypeInvoice DocType = "invoice"
	DocTypeQuote   DocType = "quote"
)

func ParseDocType(value string) (DocType, error) {
	switch DocType(strings.ToLower(strings.TrimSpace(value))) {
	case DocTypeInvoice:
		return DocTypeInvoice, nil
	case DocTypeQuote:
		return DocTypeQuote, nil
	default:
		return "", ErrInvalidDocType
	}
}

const (
	MaxAffixLength = 20
	MinPadding     = 1
	MaxPadding     = 10
)

// Sequence is the numbering configuration and counter of one document type
// within an organization.
type Sequence struct {
	OrgID         snowflake.ID `gorm:"primaryKey" json:"org_id"`
	DocType       DocType      `gorm:"primaryKey;type:text" json:"doc_type"`
	Prefix        string       `gorm:"type:text;not null" json:"prefix"`
	Suffix        string       `gorm:"type:text;not null" json:"suffix"`
	CurrentNumber int64        `gorm:"not null" json:"current_number"`
	PaddingLength int          `gorm:"not null" json:"padding_length"`
	IncludeYear   bool         `gorm:"not null" json:"include_year"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Sequence) TableName() string { return "document_sequences" }

// Defaults returns the configuration used before an organization customizes
// its numbering.
func Defaults(orgID snowflake.ID, docType DocType) Sequence {
	prefix := "FAC"
	if docType == DocTypeQuote {
		prefix = "DEV"
	}
	return Sequence{
		OrgID:         orgID,
		DocType:       docType,
		Prefix:        prefix,
		PaddingLength: 4,
		IncludeYear:   true,
	}
}

// Format renders number n under the sequence configuration, e.g.
// FAC-2026-0042. It is pure and does not touch the counter.
func (s Sequence) Format(year int, n int64) string {
	var b strings.Builder
	b.WriteString(s.Prefix)
	if s.IncludeYear {
		b.WriteString("-")
		b.WriteString(strconv.Itoa(year))
	}
	b.WriteString("-")
	b.WriteString(fmt.Sprintf("%0*d", s.PaddingLength, n))
	b.WriteString(s.Suffix)
	return b.String()
}

// UpdateRequest carries a partial configuration change. Nil fields keep
// their stored value.
type UpdateRequest struct {
	Prefix        *string `json:"prefix"`
	Suffix        *string `json:"suffix"`
	PaddingLength *int    `json:"padding_length"`
	IncludeYear   *bool   `json:"include_year"`
	CurrentNumber *int64  `json:"current_number"`
}

// Apply merges the request onto cfg and validates the result. It does not
// check the rewind rule, which needs the stored counter.
func (r UpdateRequest) Apply(cfg Sequence) (Sequence, error) {
	if r.Prefix != nil {
		cfg.Prefix = strings.TrimSpace(*r.Prefix)
	}
	if r.Suffix != nil {
		cfg.Suffix = strings.TrimSpace(*r.Suffix)
	}
	if r.PaddingLength != nil {
		cfg.PaddingLength = *r.PaddingLength
	}
	if r.IncludeYear != nil {
		cfg.IncludeYear = *r.IncludeYear
	}
	if r.CurrentNumber != nil {
		cfg.CurrentNumber = *r.CurrentNumber
	}

	switch {
	case cfg.Prefix == "" || len(cfg.Prefix) > MaxAffixLength:
		return cfg, ErrInvalidPrefix
	case len(cfg.Suffix) > MaxAffixLength:
		return cfg, ErrInvalidSuffix
	case cfg.PaddingLength < MinPadding || cfg.PaddingLength > MaxPadding:
		return cfg, ErrInvalidPadding
	case cfg.CurrentNumber < 0:
		return cfg, ErrSequenceRewind
	}
	return cfg, nil
}

var (
	ErrInvalidDocType = errors.New("invalid_doc_type")
	ErrInvalidPrefix  = errors.New("invalid_prefix")
	ErrInvalidSuffix  = errors.New("invalid_suffix")
	ErrInvalidPadding = errors.New("invalid_padding_length")
	ErrSequenceRewind = errors.New("sequence_rewind")
)
