package model

import (
	"fmt"
)

// DefaultPrinterPort is the raw ESC/POS socket port
const DefaultPrinterPort = 9100

// PaperWidth is the physical roll width in millimetres
type PaperWidth int

const (
	Paper58mm PaperWidth = 58
	Paper80mm PaperWidth = 80
)

// LineWidth returns the character column count for the roll
func (w PaperWidth) LineWidth() int {
	if w == Paper58mm {
		return 32
	}
	return 48
}

// Valid reports whether w is one of the supported rolls
func (w PaperWidth) Valid() bool {
	return w == Paper58mm || w == Paper80mm
}

// CharacterSet selects the printer code page used for text
type CharacterSet string

const (
	CharsetPC858 CharacterSet = "PC858"
	CharsetPC437 CharacterSet = "PC437"
)

// PrinterSettings is the caller owned configuration of one printing session
type PrinterSettings struct {
	PaperWidth     PaperWidth     `json:"paper_width"`
	ConnectionKind ConnectionKind `json:"connection_kind"`
	Address        string         `json:"address,omitempty"`
	Port           int            `json:"port,omitempty"`
	// AutoCut is nil when unset; only an explicit false suppresses the cut.
	AutoCut      *bool        `json:"auto_cut,omitempty"`
	OpenDrawer   bool         `json:"open_drawer"`
	CharacterSet CharacterSet `json:"character_set,omitempty"`
	PrintBarcode bool         `json:"print_barcode"`
	// Device narrows the chooser to one device: "VVVV:PPPP" for USB, an
	// address or name for Bluetooth.
	Device string `json:"device,omitempty"`
}

// LineWidth returns the column count for the configured paper
func (s PrinterSettings) LineWidth() int {
	return s.PaperWidth.LineWidth()
}

// ShouldCut reports whether a cut follows the receipt
func (s PrinterSettings) ShouldCut() bool {
	return s.AutoCut == nil || *s.AutoCut
}

// NetworkPort returns the configured port or the ESC/POS default
func (s PrinterSettings) NetworkPort() int {
	if s.Port <= 0 {
		return DefaultPrinterPort
	}
	return s.Port
}

// Validate checks the fields every transport depends on
func (s PrinterSettings) Validate() error {
	if s.PaperWidth != 0 && !s.PaperWidth.Valid() {
		return fmt.Errorf("unsupported paper width %dmm", s.PaperWidth)
	}
	if _, err := ParseConnectionKind(string(s.ConnectionKind)); err != nil {
		return err
	}
	switch s.CharacterSet {
	case "", CharsetPC858, CharsetPC437:
	default:
		return fmt.Errorf("unsupported character set %q", s.CharacterSet)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}

// BoolPtr is a convenience for optional flags
func BoolPtr(v bool) *bool {
	return &v
}
