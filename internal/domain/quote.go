package domain

import "github.com/shopspring/decimal"

// QuoteOutcome classifies how a quote request was answered
type QuoteOutcome string

const (
	OutcomeQuoted             QuoteOutcome = "quoted"
	OutcomeNoMaterials        QuoteOutcome = "no_materials"
	OutcomeNoneMatched        QuoteOutcome = "none_matched"
	OutcomeCatalogUnavailable QuoteOutcome = "catalog_unavailable"
)

// Mention is one candidate material reference found in a request
type Mention struct {
	RawMention string           `json:"rawMention"`
	Quantity   *decimal.Decimal `json:"quantity,omitempty"` // nil when not stated; zero is kept so it can be questioned
	Unit       string           `json:"unit,omitempty"`     // as stated by the requester
}

// RequestLineItem is a mention plus its match result
type RequestLineItem struct {
	Mention
	MatchedEntryID int     `json:"matchedEntryId,omitempty"` // 0 when unmatched
	MatchScore     float64 `json:"matchScore"`
}

// Matched reports whether the line resolved to a catalog entry
func (l RequestLineItem) Matched() bool {
	return l.MatchedEntryID != 0
}

// QuoteLine is a matched line item with its computed price
type QuoteLine struct {
	RequestLineItem
	EntryName      string          `json:"entryName"`
	CatalogUnit    string          `json:"catalogUnit"`
	UnitPrice      int64           `json:"unitPrice"`
	BilledQuantity decimal.Decimal `json:"billedQuantity"`
	LineTotal      int64           `json:"lineTotal"`
}

// Quote is the answer to one material request
type Quote struct {
	Outcome           QuoteOutcome `json:"outcome"`
	LineItems         []QuoteLine  `json:"lineItems"`
	UnmatchedMentions []string     `json:"unmatchedMentions"`
	UnpricedMentions  []string     `json:"unpricedMentions"` // matched, but the quantity is zero or too large to price
	Subtotal          int64        `json:"subtotal"`
	ResponseText      string       `json:"responseText"`
	CatalogVersion    int64        `json:"catalogVersion"`
	Currency          string       `json:"currency"`
}
