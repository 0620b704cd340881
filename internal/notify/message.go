package notify

import (
	"fmt"
	"strings"
	"time"

	"stock-watch/internal/model"
)

const subjectPrefix = "[stock-watch]"

// Render builds the subject and plain text body for an event
func Render(ev model.NotificationEvent) (subject, body string) {
	subject = fmt.Sprintf("%s %s: %s", subjectPrefix, ev.Kind.Title(), ev.Product.DisplayName())

	var b strings.Builder
	b.WriteString(ev.Kind.Title())
	b.WriteString("\n\n")
	if ev.Product.Name != "" {
		fmt.Fprintf(&b, "Product: %s\n", ev.Product.Name)
	}
	fmt.Fprintf(&b, "URL: %s\n", ev.Product.URL)
	fmt.Fprintf(&b, "Quantity: %s → %s\n",
		model.FormatQuantity(ev.PreviousQuantity), model.FormatQuantity(ev.NewQuantity))
	fmt.Fprintf(&b, "Status: %s\n", stockLabel(ev.InStock))
	if !ev.ObservedAt.IsZero() {
		fmt.Fprintf(&b, "Observed at: %s\n", ev.ObservedAt.UTC().Format(time.RFC3339))
	}
	return subject, b.String()
}

func stockLabel(inStock bool) string {
	if inStock {
		return "IN STOCK"
	}
	return "OUT OF STOCK"
}
