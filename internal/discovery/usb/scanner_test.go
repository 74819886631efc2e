package usb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-printer/internal/model"
)

func enumeratorOf(devices []Descriptor, err error) Enumerator {
	return func(ctx context.Context, filter func(vendor, product uint16, printerClass bool) bool) ([]Descriptor, error) {
		var out []Descriptor
		for _, d := range devices {
			if filter(d.VendorID, d.ProductID, d.PrinterClass) {
				out = append(out, d)
			}
		}
		return out, err
	}
}

func TestScanIdentifiesKnownModels(t *testing.T) {
	devices := []Descriptor{
		{VendorID: 0x046D, ProductID: 0xC52B, Product: "Unifying Receiver"},
		{VendorID: 0x0416, ProductID: 0x5011, Product: "POS58 Printer"},
		{VendorID: 0x04B8, ProductID: 0x0215, Manufacturer: "EPSON", Serial: "X1"},
	}
	s := NewScanner(zap.NewNop(), nil).WithEnumerator(enumeratorOf(devices, nil))

	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 2)

	epson := printers[0]
	assert.Equal(t, "EPSON TM-T20III", epson.Name)
	assert.Equal(t, "04b8:0215", epson.Address)
	assert.Equal(t, "EPSON", epson.Manufacturer)
	assert.Equal(t, "TM-T20III", epson.Model)
	assert.Equal(t, model.ConnectionUSB, epson.Connection)

	generic := printers[1]
	assert.Equal(t, "GENERIC POS58 Printer", generic.Name)
	assert.Equal(t, "Winbond Electronics", generic.Manufacturer)
}

func TestScanPrinterClassOutsideAllowList(t *testing.T) {
	devices := []Descriptor{{VendorID: 0x1234, ProductID: 0x0001, PrinterClass: true}}

	s := NewScanner(zap.NewNop(), &Config{FilterByClass: true}).WithEnumerator(enumeratorOf(devices, nil))
	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 1)
	assert.Equal(t, "USB Printer 1234:0001", printers[0].Name)

	s = NewScanner(zap.NewNop(), &Config{FilterByClass: false}).WithEnumerator(enumeratorOf(devices, nil))
	printers, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, printers)
}

func TestScanCustomVendors(t *testing.T) {
	devices := []Descriptor{
		{VendorID: 0x04B8, ProductID: 0x0202},
		{VendorID: 0x1FC9, ProductID: 0x2016, Product: "Thermal"},
	}
	s := NewScanner(zap.NewNop(), &Config{Vendors: []uint16{0x1FC9}}).WithEnumerator(enumeratorOf(devices, nil))

	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 1)
	assert.Equal(t, "1fc9", printers[0].VendorID)
}

func TestScanDeduplicates(t *testing.T) {
	d := Descriptor{VendorID: 0x04B8, ProductID: 0x0202, Serial: "A", Bus: 1, Address: 4}
	s := NewScanner(zap.NewNop(), nil).WithEnumerator(enumeratorOf([]Descriptor{d, d}, nil))

	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, printers, 1)
}

func TestScanEnumerationError(t *testing.T) {
	s := NewScanner(zap.NewNop(), nil).WithEnumerator(enumeratorOf(nil, errors.New("LIBUSB_ERROR_ACCESS")))
	_, err := s.Scan(context.Background())
	assert.ErrorContains(t, err, "enumeration failed")

	partial := []Descriptor{{VendorID: 0x04B8, ProductID: 0x0202}}
	s = NewScanner(zap.NewNop(), nil).WithEnumerator(enumeratorOf(partial, errors.New("LIBUSB_ERROR_ACCESS")))
	printers, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, printers, 1)
}

func TestDeviceDatabase(t *testing.T) {
	db := NewDeviceDatabase()
	assert.NotNil(t, db.VendorInfo(0x04B8))
	assert.Nil(t, db.VendorInfo(0xFFFF))
	assert.Equal(t, "TSP654II", db.VendorInfo(0x0519).ProductModel(0x0003))

	ids := db.VendorIDs()
	assert.Equal(t, uint16(0x0416), ids[0])
	assert.Contains(t, ids, uint16(0x20D1))
}
