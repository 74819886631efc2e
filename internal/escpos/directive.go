package escpos

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
)

// Op is the kind of a single printer directive
type Op int

const (
	OpInit Op = iota
	OpCodePage
	OpText
	OpAlign
	OpEmphasis
	OpUnderline
	OpSize
	OpFeed
	OpCut
	OpDrawerPulse
	OpBarcode
)

func (o Op) String() string {
	switch o {
	case OpInit:
		return "init"
	case OpCodePage:
		return "code-page"
	case OpText:
		return "text"
	case OpAlign:
		return "align"
	case OpEmphasis:
		return "emphasis"
	case OpUnderline:
		return "underline"
	case OpSize:
		return "size"
	case OpFeed:
		return "feed"
	case OpCut:
		return "cut"
	case OpDrawerPulse:
		return "drawer-pulse"
	case OpBarcode:
		return "barcode"
	}
	return "unknown"
}

// Alignment of subsequent text
type Alignment byte

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// Size of subsequent text
type Size byte

const (
	SizeNormal Size = iota
	SizeDoubleHeight
	SizeDoubleWidth
	SizeDouble
)

// Directive is one typed operation of the printer program. Only the fields
// relevant to Op are set.
type Directive struct {
	Op       Op
	Text     string
	Align    Alignment
	On       bool
	Size     Size
	Lines    int
	CodePage byte
}

// Builder accumulates a directive stream
type Builder struct {
	ops   []Directive
	width int
}

// NewBuilder creates a builder for a roll of the given column width
func NewBuilder(width int) *Builder {
	if width <= 0 {
		width = 32
	}
	return &Builder{width: width}
}

// Width returns the column width of the builder
func (b *Builder) Width() int {
	return b.width
}

func (b *Builder) add(d Directive) *Builder {
	b.ops = append(b.ops, d)
	return b
}

// Init resets the printer to power-on state
func (b *Builder) Init() *Builder {
	return b.add(Directive{Op: OpInit})
}

// CodePage selects the printer character table for subsequent text
func (b *Builder) CodePage(n byte) *Builder {
	return b.add(Directive{Op: OpCodePage, CodePage: n})
}

// Text writes s without a line terminator
func (b *Builder) Text(s string) *Builder {
	return b.add(Directive{Op: OpText, Text: s})
}

// Line writes s followed by a line feed
func (b *Builder) Line(s string) *Builder {
	return b.Text(s + "\n")
}

// Blank writes an empty line
func (b *Builder) Blank() *Builder {
	return b.Text("\n")
}

// Divider writes a full-width dashed rule
func (b *Builder) Divider() *Builder {
	return b.Line(Divider(b.width))
}

// KeyValue writes left and right justified to the full line width
func (b *Builder) KeyValue(left, right string) *Builder {
	return b.Line(FormatLine(left, right, b.width))
}

func (b *Builder) Align(a Alignment) *Builder {
	return b.add(Directive{Op: OpAlign, Align: a})
}

func (b *Builder) Bold(on bool) *Builder {
	return b.add(Directive{Op: OpEmphasis, On: on})
}

func (b *Builder) Underline(on bool) *Builder {
	return b.add(Directive{Op: OpUnderline, On: on})
}

func (b *Builder) Size(s Size) *Builder {
	return b.add(Directive{Op: OpSize, Size: s})
}

// Feed advances the paper n lines
func (b *Builder) Feed(n int) *Builder {
	return b.add(Directive{Op: OpFeed, Lines: n})
}

func (b *Builder) Cut() *Builder {
	return b.add(Directive{Op: OpCut})
}

func (b *Builder) DrawerPulse() *Builder {
	return b.add(Directive{Op: OpDrawerPulse})
}

// Barcode prints payload as CODE39
func (b *Builder) Barcode(payload string) *Builder {
	return b.add(Directive{Op: OpBarcode, Text: payload})
}

// Directives returns a copy of the accumulated stream
func (b *Builder) Directives() []Directive {
	out := make([]Directive, len(b.ops))
	copy(out, b.ops)
	return out
}

// Render converts a directive stream into printer bytes. Text is encoded with
// the code page most recently selected in the stream, PC437 until then.
func Render(ops []Directive) []byte {
	var buf bytes.Buffer
	table := charmap.CodePage437

	for _, d := range ops {
		switch d.Op {
		case OpInit:
			buf.Write(Commands.Initialize)
			table = charmap.CodePage437
		case OpCodePage:
			buf.Write(Commands.SelectCodePage)
			buf.WriteByte(d.CodePage)
			table = codePageTable(d.CodePage)
		case OpText:
			writeEncoded(&buf, table, d.Text)
		case OpAlign:
			switch d.Align {
			case AlignCenter:
				buf.Write(Commands.AlignCenter)
			case AlignRight:
				buf.Write(Commands.AlignRight)
			default:
				buf.Write(Commands.AlignLeft)
			}
		case OpEmphasis:
			if d.On {
				buf.Write(Commands.BoldOn)
			} else {
				buf.Write(Commands.BoldOff)
			}
		case OpUnderline:
			if d.On {
				buf.Write(Commands.UnderlineOn)
			} else {
				buf.Write(Commands.UnderlineOff)
			}
		case OpSize:
			switch d.Size {
			case SizeDoubleHeight:
				buf.Write(Commands.SizeDoubleHeight)
			case SizeDoubleWidth:
				buf.Write(Commands.SizeDoubleWidth)
			case SizeDouble:
				buf.Write(Commands.SizeDouble)
			default:
				buf.Write(Commands.SizeNormal)
			}
		case OpFeed:
			buf.Write(Commands.FeedLines)
			buf.WriteByte(clampByte(d.Lines))
		case OpCut:
			buf.Write(Commands.Cut)
		case OpDrawerPulse:
			buf.Write(Commands.DrawerPulse)
		case OpBarcode:
			buf.Write(Commands.BarcodeCode39)
			buf.WriteString(code39Payload(d.Text))
			buf.WriteByte(0x00)
		}
	}
	return buf.Bytes()
}

func codePageTable(n byte) *charmap.Charmap {
	if n == CodePagePC858 {
		return charmap.CodePage858
	}
	return charmap.CodePage437
}

// writeEncoded transcodes s rune by rune; runes missing from the table print as '?'
func writeEncoded(buf *bytes.Buffer, table *charmap.Charmap, s string) {
	for _, r := range s {
		if r < 0x80 {
			buf.WriteByte(byte(r))
			continue
		}
		if b, ok := table.EncodeRune(r); ok {
			buf.WriteByte(b)
			continue
		}
		buf.WriteByte('?')
	}
}

func clampByte(n int) byte {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return byte(n)
}

// code39Payload upper-cases s and replaces characters CODE39 cannot carry
func code39Payload(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, byte(r-'a'+'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, byte(r))
		case r == ' ', r == '-', r == '.', r == '$', r == '/', r == '+', r == '%':
			out = append(out, byte(r))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
