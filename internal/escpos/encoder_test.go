package escpos

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-printer/internal/model"
)

func sampleReceipt() *model.ReceiptDocument {
	return &model.ReceiptDocument{
		ShopName:      "Corner Shop",
		ShopAddress:   "1 High Street",
		ShopPhone:     "01234 567890",
		TransactionID: "TX-1001",
		Date:          time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
		Items: []model.LineItem{
			{Name: "Widget", Quantity: 2, Price: decimal.RequireFromString("5.00"), Total: decimal.RequireFromString("10.00"), SKU: "W-1"},
		},
		Subtotal:      decimal.RequireFromString("10.00"),
		VAT:           decimal.RequireFromString("2.00"),
		Total:         decimal.RequireFromString("12.00"),
		PaymentMethod: "cash",
	}
}

func settings80() model.PrinterSettings {
	return model.PrinterSettings{PaperWidth: model.Paper80mm, ConnectionKind: model.ConnectionUSB}
}

// textLines returns the printed lines of a directive stream
func textLines(ops []Directive) []string {
	var sb strings.Builder
	for _, d := range ops {
		if d.Op == OpText {
			sb.WriteString(d.Text)
		}
	}
	return strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
}

func indexOfPrefix(lines []string, prefix string) int {
	for i, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return i
		}
	}
	return -1
}

func TestLayoutTotalsBlock(t *testing.T) {
	lines := textLines(Layout(sampleReceipt(), settings80()))

	want := []string{
		"Subtotal:                                 £10.00",
		"VAT (20%):                                 £2.00",
		"TOTAL:                                    £12.00",
	}
	i := indexOfPrefix(lines, "Subtotal:")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, want, lines[i:i+3])

	p := indexOfPrefix(lines, "Payment:")
	require.GreaterOrEqual(t, p, 0)
	assert.Equal(t, "Payment:                                    CASH", lines[p])

	for _, l := range append(want, lines[p]) {
		assert.Equal(t, 48, utf8.RuneCountInString(l))
	}
}

func TestLayoutOmitsZeroVAT(t *testing.T) {
	doc := sampleReceipt()
	doc.VAT = decimal.Zero
	doc.Total = doc.Subtotal

	lines := textLines(Layout(doc, settings80()))
	assert.Equal(t, -1, indexOfPrefix(lines, "VAT"))
}

func TestLayoutTotalIsEmphasized(t *testing.T) {
	ops := Layout(sampleReceipt(), settings80())

	for i, d := range ops {
		if d.Op == OpText && strings.HasPrefix(d.Text, "TOTAL:") {
			require.Greater(t, i, 0)
			assert.Equal(t, Directive{Op: OpEmphasis, On: true}, ops[i-1])
			assert.Equal(t, Directive{Op: OpEmphasis, On: false}, ops[i+1])
			return
		}
	}
	t.Fatal("TOTAL line not found")
}

func TestLayoutOrder(t *testing.T) {
	doc := sampleReceipt()
	doc.StaffName = "Alex"
	doc.CustomerName = "Sam"
	doc.BalanceUsed = decimal.RequireFromString("1.50")
	doc.Notes = "Gift wrap"
	doc.ServiceFee = &model.ServiceFee{Name: "Service", Amount: decimal.RequireFromString("0.50")}

	lines := textLines(Layout(doc, model.PrinterSettings{PaperWidth: model.Paper58mm}))
	divider := Divider(32)

	order := []string{
		"Corner Shop",
		"1 High Street",
		"Tel: 01234 567890",
		"",
		divider,
		"Transaction: TX-1001",
		"Date: 09/03/2024 14:05",
		"Staff: Alex",
		"Customer: Sam",
		divider,
		"Widget           2  5.00  10.00",
		"  SKU: W-1",
		divider,
		"Service:                   £0.50",
		divider,
		"Subtotal:                 £10.00",
		"VAT (20%):                 £2.00",
		"TOTAL:                    £12.00",
		"",
		"Payment:                    CASH",
		"Balance Used:              £1.50",
		"Notes: Gift wrap",
		divider,
		DefaultFooter,
	}
	assert.Equal(t, order, lines)
}

func TestEncodeFraming(t *testing.T) {
	out := Encode(sampleReceipt(), settings80())

	assert.True(t, bytes.HasPrefix(out, []byte{ESC, '@', ESC, 't', CodePagePC858}))
	assert.True(t, bytes.HasSuffix(out, []byte{ESC, 'd', 3, GS, 'V', 0x41, 0x00}))
	assert.True(t, bytes.Contains(out, []byte{ESC, 'a', 0x01, ESC, '!', 0x30}), "centered double sized shop name")
	assert.True(t, bytes.Contains(out, []byte{0x9C, '1', '2', '.', '0', '0'}), "pound sign in code page 858")
}

func TestEncodeAutoCut(t *testing.T) {
	s := settings80()

	s.AutoCut = model.BoolPtr(false)
	out := Encode(sampleReceipt(), s)
	assert.True(t, bytes.HasSuffix(out, []byte{ESC, 'd', 3}))
	assert.False(t, bytes.Contains(out, Commands.Cut))

	s.AutoCut = model.BoolPtr(true)
	assert.True(t, bytes.HasSuffix(Encode(sampleReceipt(), s), Commands.Cut))
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := Encode(sampleReceipt(), settings80())
	b := Encode(sampleReceipt(), settings80())
	assert.Equal(t, a, b)
}

func TestEncodeDoesNotMutateDocument(t *testing.T) {
	doc := sampleReceipt()
	doc.Items[0].Name = strings.Repeat("x", 60)
	before := *doc
	beforeItems := append([]model.LineItem(nil), doc.Items...)

	Encode(doc, settings80())

	assert.Equal(t, before.ShopName, doc.ShopName)
	assert.Equal(t, beforeItems, doc.Items)
}

func TestEncodeFooterAndBarcode(t *testing.T) {
	doc := sampleReceipt()
	doc.Footer = "See you soon"

	s := settings80()
	s.PrintBarcode = true
	out := Encode(doc, s)

	assert.True(t, bytes.Contains(out, []byte("See you soon\n")))
	assert.False(t, bytes.Contains(out, []byte(DefaultFooter)))
	assert.True(t, bytes.Contains(out, append([]byte{GS, 'k', 0x04}, []byte("TX-1001\x00")...)))

	s.PrintBarcode = false
	assert.False(t, bytes.Contains(Encode(doc, s), []byte{GS, 'k'}))
}

func TestEncodePC437(t *testing.T) {
	s := settings80()
	s.CharacterSet = model.CharsetPC437
	out := Encode(sampleReceipt(), s)
	assert.True(t, bytes.HasPrefix(out, []byte{ESC, '@', ESC, 't', CodePagePC437}))
	assert.True(t, bytes.Contains(out, []byte{0x9C}))
}

func TestRenderUnencodableRune(t *testing.T) {
	out := Render(NewBuilder(32).Init().CodePage(CodePagePC858).Text("a→b").Directives())
	assert.Equal(t, []byte{ESC, '@', ESC, 't', CodePagePC858, 'a', '?', 'b'}, out)
}

func TestDrawerPulse(t *testing.T) {
	assert.Equal(t, []byte{0x1B, 'p', 0x00, 0x19, 0xFA}, DrawerPulse())
}

func TestRenderCommandTable(t *testing.T) {
	ops := NewBuilder(32).
		Align(AlignRight).
		Underline(true).Underline(false).
		Size(SizeDoubleHeight).Size(SizeDoubleWidth).Size(SizeNormal).
		Feed(5).
		Directives()

	want := []byte{
		ESC, 'a', 0x02,
		ESC, '-', 0x01, ESC, '-', 0x00,
		ESC, '!', 0x10, ESC, '!', 0x20, ESC, '!', 0x00,
		ESC, 'd', 5,
	}
	assert.Equal(t, want, Render(ops))
}
