package printer

import (
	"fmt"
	"strings"

	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/pricing"
)

// Ticket is the rendered kitchen ticket sent to the print agent.
type Ticket struct {
	OrderID string   `json:"orderId"`
	Header  string   `json:"header"`
	Lines   []string `json:"lines"`
	Footer  string   `json:"footer"`
}

// Render lays the order out for a 32-column thermal printer. Companion lines
// are indented under their set so the kitchen reads bundles as one dish.
func Render(o *order.Order) Ticket {
	header := "TAKE OUT"
	if o.Type == order.TypeDineIn {
		table := order.DefaultTable
		if o.TableNumber != nil {
			table = *o.TableNumber
		}
		header = "TABLE " + table
	}

	var lines []string
	for _, l := range o.Lines {
		indent := ""
		if l.Companion {
			indent = "  "
		}
		lines = append(lines, fmt.Sprintf("%s%dx %s", indent, l.Quantity, l.ItemName))
		for _, opt := range l.Options {
			lines = append(lines, "    + "+opt.Name)
		}
	}

	footer := fmt.Sprintf("TOTAL %s", pricing.FormatUSD(o.Total))
	if o.Tip > 0 {
		footer = fmt.Sprintf("TOTAL %s (tip %s)", pricing.FormatUSD(o.Total), pricing.FormatUSD(o.Tip))
	}
	return Ticket{
		OrderID: o.ID,
		Header:  header,
		Lines:   lines,
		Footer:  footer,
	}
}

// Text flattens the ticket for plain-text transports and logs.
func (t Ticket) Text() string {
	var b strings.Builder
	b.WriteString(t.Header)
	b.WriteString("\n")
	for _, line := range t.Lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(t.Footer)
	return b.String()
}
