// internal/discovery/usb/database.go
package usb

import (
	"sort"

	"pos-printer/internal/model"
)

// DeviceDatabase names known thermal printer vendors and models
type DeviceDatabase struct {
	vendors map[uint16]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Brand    model.PrinterBrand
	Name     string
	products map[uint16]string
}

// NewDeviceDatabase creates and initializes the device database
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[uint16]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

func (db *DeviceDatabase) initializeDatabase() {
	db.AddVendor(0x04B8, &VendorInfo{Brand: model.BrandEpson, Name: "Seiko Epson Corporation"})
	db.AddProduct(0x04B8, 0x0202, "TM-T88IV")
	db.AddProduct(0x04B8, 0x0203, "TM-T88V")
	db.AddProduct(0x04B8, 0x0214, "TM-T88VI")
	db.AddProduct(0x04B8, 0x0215, "TM-T20III")
	db.AddProduct(0x04B8, 0x0216, "TM-T82III")
	db.AddProduct(0x04B8, 0x0217, "TM-m30")
	db.AddProduct(0x04B8, 0x0E15, "TM-T20II")
	db.AddProduct(0x04B8, 0x0E28, "TM-m30II")

	db.AddVendor(0x0519, &VendorInfo{Brand: model.BrandStar, Name: "Star Micronics Co., Ltd."})
	db.AddProduct(0x0519, 0x0001, "TSP143III")
	db.AddProduct(0x0519, 0x0002, "TSP143IIIU")
	db.AddProduct(0x0519, 0x0003, "TSP654II")

	db.AddVendor(0x1CBE, &VendorInfo{Brand: model.BrandCitizen, Name: "Citizen Systems Japan Co., Ltd."})
	db.AddProduct(0x1CBE, 0x0001, "CT-S310II")
	db.AddProduct(0x1CBE, 0x0002, "CT-S4000")

	db.AddVendor(0x1504, &VendorInfo{Brand: model.BrandBixolon, Name: "BIXOLON Co., Ltd."})
	db.AddProduct(0x1504, 0x0006, "SRP-330II")
	db.AddProduct(0x1504, 0x0007, "SRP-350III")

	db.AddVendor(0x154F, &VendorInfo{Brand: model.BrandSNBC, Name: "Shandong New Beiyang"})
	db.AddVendor(0x0FE6, &VendorInfo{Brand: model.BrandXprinter, Name: "ICS Advent"})
	db.AddVendor(0x0416, &VendorInfo{Brand: model.BrandGeneric, Name: "Winbond Electronics"})
	db.AddVendor(0x0DD4, &VendorInfo{Brand: model.BrandGeneric, Name: "Custom Engineering SPA"})
	db.AddVendor(0x20D1, &VendorInfo{Brand: model.BrandRongta, Name: "Rongta Technology"})
}

// VendorInfo retrieves vendor information, or nil
func (db *DeviceDatabase) VendorInfo(vendorID uint16) *VendorInfo {
	return db.vendors[vendorID]
}

// ProductModel returns the model name for a product, or ""
func (vi *VendorInfo) ProductModel(productID uint16) string {
	return vi.products[productID]
}

// VendorIDs returns every known vendor ID in ascending order
func (db *DeviceDatabase) VendorIDs() []uint16 {
	ids := make([]uint16, 0, len(db.vendors))
	for id := range db.vendors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddVendor adds a new vendor to the database
func (db *DeviceDatabase) AddVendor(vendorID uint16, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[uint16]string)
	}
	db.vendors[vendorID] = info
}

// AddProduct adds a new product to an existing vendor
func (db *DeviceDatabase) AddProduct(vendorID, productID uint16, modelName string) {
	if vendor, exists := db.vendors[vendorID]; exists {
		vendor.products[productID] = modelName
	}
}
