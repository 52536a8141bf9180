package notify

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kinds mirror the lifecycle events sent by the consignment engine.
const (
	kindSubmitted = "delivery.submitted"
	kindVerified  = "delivery.verified"
	kindCompleted = "delivery.completed"
	kindCancelled = "delivery.cancelled"
)

var printer = message.NewPrinter(language.Indonesian)

// Render builds the human-readable body shown to suppliers, with Indonesian number grouping.
func Render(kind string, payload map[string]any) string {
	id := asInt64(payload["trx_id"])
	date, _ := payload["date"].(string)
	switch kind {
	case kindSubmitted:
		return printer.Sprintf("Pengiriman #%d untuk %s tercatat: %d item direncanakan.", id, date, asInt64(payload["total_items_in"]))
	case kindVerified:
		return printer.Sprintf("Pengiriman #%d tanggal %s diterima toko: %d item masuk.", id, date, asInt64(payload["total_items_in"]))
	case kindCompleted:
		payout := asDecimal(payload["total_payout"])
		return printer.Sprintf("Pengiriman #%d tanggal %s selesai: %d item terjual, pembayaran Rp%.2f.",
			id, date, asInt64(payload["total_items_sold"]), payout.InexactFloat64())
	case kindCancelled:
		reason, _ := payload["reason"].(string)
		return printer.Sprintf("Pengiriman #%d tanggal %s dibatalkan: %s.", id, date, reason)
	default:
		return fmt.Sprintf("%s #%d", kind, id)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func asDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(n)
	default:
		return decimal.Zero
	}
}
