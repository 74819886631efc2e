// internal/model/device.go
package model

import (
	"fmt"
	"strings"
)

// ConnectionKind selects the transport used to reach a printer
type ConnectionKind string

const (
	ConnectionUSB       ConnectionKind = "usb"
	ConnectionNetwork   ConnectionKind = "network"
	ConnectionWiFi      ConnectionKind = "wifi"
	ConnectionBluetooth ConnectionKind = "bluetooth"
)

// IsNetwork reports whether the kind is carried over TCP/IP. network and wifi
// are the same protocol under different labels.
func (k ConnectionKind) IsNetwork() bool {
	return k == ConnectionNetwork || k == ConnectionWiFi
}

// ParseConnectionKind normalizes a user supplied connection label
func ParseConnectionKind(s string) (ConnectionKind, error) {
	kind := ConnectionKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case ConnectionUSB, ConnectionNetwork, ConnectionWiFi, ConnectionBluetooth:
		return kind, nil
	case "ble":
		return ConnectionBluetooth, nil
	}
	return "", fmt.Errorf("unknown connection kind %q", s)
}

// PrinterBrand identifies a thermal printer manufacturer
type PrinterBrand string

const (
	BrandEpson    PrinterBrand = "EPSON"
	BrandStar     PrinterBrand = "STAR"
	BrandCitizen  PrinterBrand = "CITIZEN"
	BrandBixolon  PrinterBrand = "BIXOLON"
	BrandSNBC     PrinterBrand = "SNBC"
	BrandRongta   PrinterBrand = "RONGTA"
	BrandXprinter PrinterBrand = "XPRINTER"
	BrandGeneric  PrinterBrand = "GENERIC"
)

// DiscoveredPrinter is a candidate printer reported by a scanner. It carries
// no session and is only a hint for PrinterSettings.
type DiscoveredPrinter struct {
	Name         string         `json:"name"`
	Address      string         `json:"address"`
	Port         int            `json:"port,omitempty"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	Connection   ConnectionKind `json:"connection"`
	VendorID     string         `json:"vendor_id,omitempty"`
	ProductID    string         `json:"product_id,omitempty"`
}
