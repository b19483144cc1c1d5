package domain

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
)

var transitions = map[DocType]map[Status][]Status{
	DocTypeInvoice: {
		StatusDraft:   {StatusSent, StatusCancelled},
		StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
		StatusOverdue: {StatusPaid, StatusCancelled},
		StatusPaid:    {StatusRefunded},
	},
	DocTypeQuote: {
		StatusDraft: {StatusSent},
		StatusSent:  {StatusAccepted, StatusRejected, StatusExpired},
	},
}

// CanTransition reports whether from -> to is an edge of the document's
// lifecycle graph.
func CanTransition(docType DocType, from, to Status) bool {
	for _, next := range transitions[docType][from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether status belongs to the document type at all.
func ValidStatus(docType DocType, status Status) bool {
	if status == StatusDraft {
		return true
	}
	for _, nexts := range transitions[docType] {
		for _, next := range nexts {
			if next == status {
				return true
			}
		}
	}
	return false
}

// TimestampColumn names the column stamped when a document enters status.
func TimestampColumn(status Status) string {
	switch status {
	case StatusSent:
		return "sent_at"
	case StatusPaid:
		return "paid_at"
	case StatusCancelled:
		return "cancelled_at"
	case StatusRefunded:
		return "refunded_at"
	case StatusAccepted:
		return "accepted_at"
	case StatusRejected:
		return "rejected_at"
	case StatusExpired:
		return "expired_at"
	default:
		return ""
	}
}

// Editable reports whether lines and amounts may still change.
func (s Status) Editable() bool { return s == StatusDraft }

// Issued reports whether an invoice in this status counts as issued revenue.
func (s Status) Issued() bool {
	switch s {
	case StatusSent, StatusPaid, StatusOverdue, StatusRefunded:
		return true
	default:
		return false
	}
}
