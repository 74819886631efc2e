package escpos

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Fixed numeric columns of an item line
const (
	qtyColumn   = 3
	priceColumn = 6
	totalColumn = 7

	// name column = width - itemFixedColumns
	itemFixedColumns = 17
)

// Divider returns a dashed rule of width columns
func Divider(width int) string {
	if width <= 0 {
		return ""
	}
	return strings.Repeat("-", width)
}

// NameColumnWidth is the width of the item name column for a line width
func NameColumnWidth(width int) int {
	if width < itemFixedColumns {
		return 0
	}
	return width - itemFixedColumns
}

// FormatLine justifies left and right across exactly width columns. When both
// do not fit, left is truncated so that right stays intact behind one space.
// Columns are counted in runes.
func FormatLine(left, right string, width int) string {
	if width <= 0 {
		return ""
	}
	rl := utf8.RuneCountInString(right)
	if rl >= width {
		return truncate(right, width)
	}

	ll := utf8.RuneCountInString(left)
	if ll+rl+1 > width {
		left = truncate(left, width-rl-1)
		ll = width - rl - 1
	}
	return left + strings.Repeat(" ", width-ll-rl) + right
}

// FormatItemLine lays out one item as name, quantity, unit price and line
// total in fixed columns: name width-17, then 3, 6 and 7. The name is clipped
// or padded to its column. Numbers are right aligned and never clipped, so a
// value wider than its column pushes the rest of the line right.
func FormatItemLine(name string, qty int, price, total string, width int) string {
	nameWidth := NameColumnWidth(width)
	return padRight(truncate(name, nameWidth), nameWidth) +
		padLeft(strconv.Itoa(qty), qtyColumn) +
		padLeft(price, priceColumn) +
		padLeft(total, totalColumn)
}

// ShortenName applies the coarse item name truncation used when listing
// items: names longer than width-20 are cut to width-23 runes plus "...".
func ShortenName(name string, width int) string {
	limit := width - 20
	if limit < 0 || utf8.RuneCountInString(name) <= limit {
		return name
	}
	keep := width - 23
	if keep < 0 {
		keep = 0
	}
	return truncate(name, keep) + "..."
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func padLeft(s string, n int) string {
	if c := utf8.RuneCountInString(s); c < n {
		return strings.Repeat(" ", n-c) + s
	}
	return s
}

func padRight(s string, n int) string {
	if c := utf8.RuneCountInString(s); c < n {
		return s + strings.Repeat(" ", n-c)
	}
	return s
}
