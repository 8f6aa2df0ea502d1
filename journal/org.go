package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatMatchOrg renders a match and its orders as an Org-mode block
// suitable for pasting into a trading journal. Structured facts live in a
// PROPERTIES drawer for easy search; a narrative placeholder follows.
func FormatMatchOrg(m MatchRecord, orders []OrderRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Match: @%s (%s)\n", m.Author, shortID(m.MatchID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":MATCH_ID: %s\n", m.MatchID)
	fmt.Fprintf(&b, ":RULE: %s\n", m.Rule)
	fmt.Fprintf(&b, ":AUTHOR: %s\n", m.Author)
	fmt.Fprintf(&b, ":TIME: %s\n", m.Time.UTC().Format(time.RFC3339))
	b.WriteString(":END:\n")
	fmt.Fprintf(&b, "\n%s\n", m.Text)

	for _, o := range orders {
		b.WriteString("\n")
		b.WriteString(FormatOrderOrg(o))
	}

	b.WriteString("\n*** Review\n- \n")
	return b.String()
}

// FormatOrderOrg renders one order outcome.
func FormatOrderOrg(o OrderRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** Order: %s %s %s [%s]\n", o.Side, o.Kind, o.ProductID, o.Status)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ORDER_ID: %s\n", o.OrderID)
	fmt.Fprintf(&b, ":CLIENT_OID: %s\n", o.ClientOID)
	if o.Size != "" {
		fmt.Fprintf(&b, ":SIZE: %s\n", o.Size)
	}
	if o.Funds != "" {
		fmt.Fprintf(&b, ":FUNDS: %s\n", o.Funds)
	}
	if o.Price != "" {
		fmt.Fprintf(&b, ":PRICE: %s\n", o.Price)
	}
	fmt.Fprintf(&b, ":STATUS: %s\n", o.Status)
	if o.Detail != "" {
		fmt.Fprintf(&b, ":DETAIL: %s\n", o.Detail)
	}
	fmt.Fprintf(&b, ":TIME: %s\n", o.Time.UTC().Format(time.RFC3339))
	b.WriteString(":END:\n")
	return b.String()
}

// FormatMatchesOrg renders multiple matches separated by blank lines. The
// ordersByMatch lookup may be nil.
func FormatMatchesOrg(matches []MatchRecord, ordersByMatch map[string][]OrderRecord) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatMatchOrg(m, ordersByMatch[m.MatchID]))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
