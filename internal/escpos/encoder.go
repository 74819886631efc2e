// internal/escpos/encoder.go
package escpos

import (
	"strings"

	"github.com/shopspring/decimal"

	"pos-printer/internal/model"
)

const (
	// DefaultFooter is printed when the document carries no footer
	DefaultFooter = "Thank you for your business!"

	currencySymbol = "£"
	dateLayout     = "02/01/2006 15:04"
	trailingFeed   = 3
)

// Encode renders a receipt into the byte stream sent to the printer. The
// output depends only on its arguments.
func Encode(doc *model.ReceiptDocument, settings model.PrinterSettings) []byte {
	return Render(Layout(doc, settings))
}

// DrawerPulse returns the standalone cash drawer kick command
func DrawerPulse() []byte {
	return Render(NewBuilder(0).DrawerPulse().Directives())
}

// Layout builds the directive stream for a receipt
func Layout(doc *model.ReceiptDocument, settings model.PrinterSettings) []Directive {
	if doc == nil {
		doc = &model.ReceiptDocument{}
	}
	width := settings.LineWidth()
	b := NewBuilder(width)

	b.Init().CodePage(codePageFor(settings.CharacterSet))

	// Header
	b.Align(AlignCenter).Size(SizeDouble).Line(doc.ShopName).Size(SizeNormal)
	if doc.ShopAddress != "" {
		b.Line(doc.ShopAddress)
	}
	if doc.ShopPhone != "" {
		b.Line("Tel: " + doc.ShopPhone)
	}
	if doc.ShopEmail != "" {
		b.Line(doc.ShopEmail)
	}
	if doc.TaxNumber != "" {
		b.Line("VAT No: " + doc.TaxNumber)
	}
	b.Blank().Align(AlignLeft).Divider()

	// Transaction details
	b.Line("Transaction: " + doc.TransactionID)
	b.Line("Date: " + doc.Date.Format(dateLayout))
	if doc.StaffName != "" {
		b.Line("Staff: " + doc.StaffName)
	}
	if doc.CustomerName != "" {
		b.Line("Customer: " + doc.CustomerName)
	}
	b.Divider()

	// Items
	for _, item := range doc.Items {
		name := ShortenName(item.Name, width)
		b.Line(FormatItemLine(name, item.Quantity, amount(item.Price), amount(item.Total), width))
		if item.SKU != "" {
			b.Line("  SKU: " + item.SKU)
		}
	}
	if fee := doc.ServiceFee; fee != nil {
		b.Divider().KeyValue(fee.Name+":", money(fee.Amount))
	}
	b.Divider()

	// Totals
	b.KeyValue("Subtotal:", money(doc.Subtotal))
	if doc.VAT.IsPositive() {
		b.KeyValue("VAT (20%):", money(doc.VAT))
	}
	b.Bold(true).KeyValue("TOTAL:", money(doc.Total)).Bold(false)
	b.Blank()

	// Payment
	b.KeyValue("Payment:", strings.ToUpper(doc.PaymentMethod))
	if doc.BalanceUsed.IsPositive() {
		b.KeyValue("Balance Used:", money(doc.BalanceUsed))
	}
	if doc.Notes != "" {
		b.Line("Notes: " + doc.Notes)
	}
	b.Divider()

	// Footer
	footer := doc.Footer
	if footer == "" {
		footer = DefaultFooter
	}
	b.Align(AlignCenter).Line(footer)
	if settings.PrintBarcode && doc.TransactionID != "" {
		b.Barcode(doc.TransactionID)
	}
	b.Align(AlignLeft).Feed(trailingFeed)

	if settings.ShouldCut() {
		b.Cut()
	}
	return b.Directives()
}

func codePageFor(cs model.CharacterSet) byte {
	if cs == model.CharsetPC437 {
		return CodePagePC437
	}
	return CodePagePC858
}

// amount renders a value with two decimals and no currency symbol
func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func money(d decimal.Decimal) string {
	return currencySymbol + d.StringFixed(2)
}
