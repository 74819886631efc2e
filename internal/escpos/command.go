// internal/escpos/command.go
package escpos

const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

// Commands holds the fixed ESC/POS sequences the encoder emits
var Commands = struct {
	// Basic commands
	Initialize []byte

	// Text formatting
	BoldOn       []byte
	BoldOff      []byte
	UnderlineOn  []byte
	UnderlineOff []byte

	// Text size
	SizeNormal       []byte
	SizeDoubleHeight []byte
	SizeDoubleWidth  []byte
	SizeDouble       []byte

	// Text alignment
	AlignLeft   []byte
	AlignCenter []byte
	AlignRight  []byte

	// Character sets
	SelectCodePage []byte // + code page byte

	// Paper handling
	FeedLines []byte // + line count byte
	Cut       []byte

	// Cash drawer
	DrawerPulse []byte

	// Barcodes
	BarcodeCode39 []byte // + payload + NUL
}{
	Initialize: []byte{ESC, '@'},

	BoldOn:       []byte{ESC, 'E', 0x01},
	BoldOff:      []byte{ESC, 'E', 0x00},
	UnderlineOn:  []byte{ESC, '-', 0x01},
	UnderlineOff: []byte{ESC, '-', 0x00},

	SizeNormal:       []byte{ESC, '!', 0x00},
	SizeDoubleHeight: []byte{ESC, '!', 0x10},
	SizeDoubleWidth:  []byte{ESC, '!', 0x20},
	SizeDouble:       []byte{ESC, '!', 0x30},

	AlignLeft:   []byte{ESC, 'a', 0x00},
	AlignCenter: []byte{ESC, 'a', 0x01},
	AlignRight:  []byte{ESC, 'a', 0x02},

	SelectCodePage: []byte{ESC, 't'},

	FeedLines: []byte{ESC, 'd'},
	Cut:       []byte{GS, 'V', 0x41, 0x00}, // partial cut after feed

	DrawerPulse: []byte{ESC, 'p', 0x00, 0x19, 0xFA}, // pin 2, 25ms on, 250ms off

	BarcodeCode39: []byte{GS, 'k', 0x04},
}

// Code page numbers selected with ESC t n
const (
	CodePagePC437 byte = 0
	CodePagePC858 byte = 19
)
