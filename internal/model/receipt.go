// internal/model/receipt.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one sold product on a receipt
type LineItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	SKU      string          `json:"sku,omitempty"`
}

// ServiceFee is an optional named surcharge printed below the items
type ServiceFee struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ReceiptDocument is the semantic content of a receipt. Totals are rendered as
// supplied and never recomputed.
type ReceiptDocument struct {
	ShopName    string `json:"shop_name"`
	ShopAddress string `json:"shop_address,omitempty"`
	ShopPhone   string `json:"shop_phone,omitempty"`
	ShopEmail   string `json:"shop_email,omitempty"`
	TaxNumber   string `json:"tax_number,omitempty"`

	TransactionID string    `json:"transaction_id"`
	Date          time.Time `json:"date"`

	Items      []LineItem  `json:"items"`
	ServiceFee *ServiceFee `json:"service_fee,omitempty"`

	Subtotal decimal.Decimal `json:"subtotal"`
	VAT      decimal.Decimal `json:"vat"`
	Total    decimal.Decimal `json:"total"`

	PaymentMethod string          `json:"payment_method"`
	StaffName     string          `json:"staff_name,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	BalanceUsed   decimal.Decimal `json:"balance_used"`
	Notes         string          `json:"notes,omitempty"`
	Footer        string          `json:"footer,omitempty"`
}
