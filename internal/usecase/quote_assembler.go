package usecase

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/materialquote/backend/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Customer-facing reply texts
const (
	msgSendYourList = "Hello! Send me your building material requirements as:\n\n" +
		"* Text message\n* Voice note\n* Photo of your list\n\n" +
		"I'll send you the prices right away!"
	msgNoneMatched = "Sorry, we could not identify any materials from your message. " +
		"Please check the spelling, send the item names with quantities, or contact us directly."
	msgCatalogUnavailable = "Sorry, our price list is not available at the moment. Please contact us directly."
	msgQuoteHeader        = "Here are your prices:"
	msgUnmatchedNote      = "not found, please check spelling or contact us."
	msgCheckQuantities    = "Sorry, we could not price your request. Please check the quantities below."
	msgUnpricedNote       = "please check the quantity."
)

var errUnpriceable = errors.New("quantity cannot be priced")

// QuoteAssembler matches mentions, prices the matched lines and renders the reply
type QuoteAssembler struct {
	matcher *MatchingService
	workers int
}

// NewQuoteAssembler creates an assembler. workers bounds how many mentions are
// matched at once; zero or less means GOMAXPROCS.
func NewQuoteAssembler(matcher *MatchingService, workers int) *QuoteAssembler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &QuoteAssembler{matcher: matcher, workers: workers}
}

// Assemble builds the quote for the given mentions against one catalog snapshot
func (a *QuoteAssembler) Assemble(mentions []domain.Mention, catalog *domain.Catalog) *domain.Quote {
	quote := &domain.Quote{
		LineItems:         []domain.QuoteLine{},
		UnmatchedMentions: []string{},
		UnpricedMentions:  []string{},
		CatalogVersion:    catalog.Version(),
		Currency:          catalog.Currency(),
	}

	if len(mentions) == 0 {
		quote.Outcome = domain.OutcomeNoMaterials
		quote.ResponseText = msgSendYourList
		return quote
	}

	subtotal := decimal.Zero
	for i, item := range a.matchAll(mentions, catalog) {
		if !item.Matched() {
			quote.UnmatchedMentions = append(quote.UnmatchedMentions, mentions[i].RawMention)
			continue
		}
		entry, _ := catalog.Lookup(item.MatchedEntryID)
		line, err := priceLine(item, entry)
		if err == nil {
			_, err = domain.RoundMinor(subtotal.Add(decimal.NewFromInt(line.LineTotal)))
		}
		if err != nil {
			quote.UnpricedMentions = append(quote.UnpricedMentions, mentions[i].RawMention)
			continue
		}
		quote.LineItems = append(quote.LineItems, line)
		subtotal = subtotal.Add(decimal.NewFromInt(line.LineTotal))
	}
	quote.Subtotal = subtotal.IntPart()

	if len(quote.LineItems) == 0 {
		quote.Outcome = domain.OutcomeNoneMatched
		quote.ResponseText = msgNoneMatched
		if len(quote.UnpricedMentions) > 0 {
			quote.ResponseText = msgCheckQuantities + renderNotes(quote)
		}
		return quote
	}

	quote.Outcome = domain.OutcomeQuoted
	quote.ResponseText = renderQuote(quote)
	return quote
}

// matchAll runs the matcher for every mention concurrently; results keep mention order
func (a *QuoteAssembler) matchAll(mentions []domain.Mention, catalog *domain.Catalog) []domain.RequestLineItem {
	items := make([]domain.RequestLineItem, len(mentions))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, m := range mentions {
		g.Go(func() error {
			res := a.matcher.FindBestMatch(m.RawMention, catalog)
			item := domain.RequestLineItem{Mention: m, MatchScore: res.Score}
			if res.Matched {
				item.MatchedEntryID = res.EntryID
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait() // matching never fails

	return items
}

// priceLine computes price x quantity in minor units; a missing quantity bills as 1.
// A stated zero quantity and a total beyond int64 return errUnpriceable.
func priceLine(item domain.RequestLineItem, entry domain.CatalogEntry) (domain.QuoteLine, error) {
	qty := decimal.NewFromInt(1)
	if item.Quantity != nil {
		qty = *item.Quantity
	}
	if !qty.IsPositive() {
		return domain.QuoteLine{}, errUnpriceable
	}

	total, err := domain.RoundMinor(decimal.NewFromInt(entry.Price).Mul(qty))
	if err != nil {
		return domain.QuoteLine{}, errUnpriceable
	}

	return domain.QuoteLine{
		RequestLineItem: item,
		EntryName:       entry.Name,
		CatalogUnit:     entry.Unit,
		UnitPrice:       entry.Price,
		BilledQuantity:  qty,
		LineTotal:       total,
	}, nil
}

// renderQuote formats matched lines, the subtotal and any unmatched-mention notes
func renderQuote(q *domain.Quote) string {
	var b strings.Builder
	b.WriteString(msgQuoteHeader)
	b.WriteString("\n\n")

	for i, line := range q.LineItems {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatLine(q.Currency, line))
	}

	fmt.Fprintf(&b, "\nSubtotal: %s", domain.FormatMoney(q.Currency, q.Subtotal))
	b.WriteString(renderNotes(q))

	return b.String()
}

// renderNotes lists unpriced then unmatched mentions, or returns "" when there are none
func renderNotes(q *domain.Quote) string {
	if len(q.UnpricedMentions) == 0 && len(q.UnmatchedMentions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nNote:")
	for _, m := range q.UnpricedMentions {
		fmt.Fprintf(&b, "\n- %q — %s", m, msgUnpricedNote)
	}
	for _, m := range q.UnmatchedMentions {
		fmt.Fprintf(&b, "\n- %q — %s", m, msgUnmatchedNote)
	}
	return b.String()
}

// formatLine renders "name — qty unit @ price/unit = total". A stated unit that differs
// from the catalog unit is shown next to it; no conversion is attempted.
func formatLine(currency string, line domain.QuoteLine) string {
	unit := line.CatalogUnit
	stated := ""
	if line.Unit != "" && !strings.EqualFold(line.Unit, line.CatalogUnit) {
		unit = line.Unit
		stated = fmt.Sprintf(" (priced per %s)", line.CatalogUnit)
	}

	return fmt.Sprintf("%s — %s %s%s @ %s/%s = %s",
		line.EntryName,
		line.BilledQuantity.String(),
		unit,
		stated,
		domain.FormatMoney(currency, line.UnitPrice),
		line.CatalogUnit,
		domain.FormatMoney(currency, line.LineTotal),
	)
}
