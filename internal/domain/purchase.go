package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// PurchaseLineSource says where a purchased line's product comes from: an
// existing catalog entry or a product described inline.
type PurchaseLineSource interface {
	isPurchaseLineSource()
}

type ExistingProduct struct {
	ProductID string
}

type NewProduct struct {
	Name         string          `json:"name"`
	HSNCode      string          `json:"hsn_code"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit,omitempty"`
	GSTRate      int             `json:"gst_rate"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

func (ExistingProduct) isPurchaseLineSource() {}
func (NewProduct) isPurchaseLineSource()      {}

var (
	errPurchaseSourceMissing   = errors.New("item needs product_id or new_product")
	errPurchaseSourceAmbiguous = errors.New("item must not carry both product_id and new_product")
)

// PurchaseItemInput is the wire shape of a purchase line.
type PurchaseItemInput struct {
	ProductID     string          `json:"product_id,omitempty"`
	NewProduct    *NewProduct     `json:"new_product,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	GSTRate       int             `json:"gst_rate"`
}

func (in PurchaseItemInput) Source() (PurchaseLineSource, error) {
	id := strings.TrimSpace(in.ProductID)
	switch {
	case id != "" && in.NewProduct != nil:
		return nil, errPurchaseSourceAmbiguous
	case id != "":
		return ExistingProduct{ProductID: id}, nil
	case in.NewProduct != nil:
		np := *in.NewProduct
		np.Name = strings.TrimSpace(np.Name)
		np.HSNCode = strings.TrimSpace(np.HSNCode)
		np.Category = strings.TrimSpace(np.Category)
		np.Unit = strings.TrimSpace(np.Unit)
		return np, nil
	default:
		return nil, errPurchaseSourceMissing
	}
}
