package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/xid"
)

type purchaseItem struct {
	source domain.PurchaseLineSource
	input  domain.PurchaseItemInput
}

// CreatePurchase records stock received from a supplier. Every item is
// validated before anything is written; items are then applied in order and
// effects of earlier items persist if a later one fails.
func (s *Service) CreatePurchase(ctx context.Context, scope domain.ShopScope, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	req.SupplierName = strings.TrimSpace(req.SupplierName)
	req.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	if req.SupplierName == "" {
		return domain.Purchase{}, store.Invalid("supplier_name", "required")
	}
	if len(req.Items) == 0 {
		return domain.Purchase{}, store.Invalid("items", "at least one item is required")
	}

	items := make([]purchaseItem, 0, len(req.Items))
	for i, in := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		src, err := in.Source()
		if err != nil {
			return domain.Purchase{}, store.Invalid(field, err.Error())
		}
		if in.Quantity < 1 {
			return domain.Purchase{}, store.Invalid(field+".quantity", "must be greater than zero")
		}
		if !in.PurchasePrice.IsPositive() {
			return domain.Purchase{}, store.Invalid(field+".purchase_price", "must be greater than zero")
		}
		if !domain.IsValidGSTSlab(in.GSTRate) {
			return domain.Purchase{}, store.Invalid(field+".gst_rate", "must be one of 0, 5, 12, 18, 28")
		}
		if np, ok := src.(domain.NewProduct); ok {
			if err := validateNewProduct(field+".new_product", np); err != nil {
				return domain.Purchase{}, err
			}
		}
		items = append(items, purchaseItem{source: src, input: in})
	}

	now := s.now().UTC()
	purchase := domain.Purchase{
		ID:            xid.New("pur"),
		ShopID:        scope.ShopID,
		SupplierName:  req.SupplierName,
		InvoiceNumber: req.InvoiceNumber,
		PurchaseDate:  now,
		Items:         make([]domain.PurchaseLine, 0, len(items)),
		TotalAmount:   decimal.Zero,
		TotalGST:      decimal.Zero,
		CreatedAt:     now,
	}
	if req.PurchaseDate != nil && !req.PurchaseDate.IsZero() {
		purchase.PurchaseDate = req.PurchaseDate.UTC()
	}

	for _, item := range items {
		product, priceOverride, err := s.resolvePurchaseProduct(ctx, item.source)
		if err != nil {
			return domain.Purchase{}, err
		}
		if _, err := s.repo.ReceiveStock(ctx, scope, product.ID, item.input.Quantity, priceOverride, product.SellingPrice); err != nil {
			return domain.Purchase{}, err
		}

		amount := domain.RoundMoney(decimal.NewFromInt(int64(item.input.Quantity)).Mul(item.input.PurchasePrice))
		purchase.TotalAmount = purchase.TotalAmount.Add(amount)
		purchase.TotalGST = purchase.TotalGST.Add(domain.LineGST(amount, item.input.GSTRate))
		purchase.Items = append(purchase.Items, domain.PurchaseLine{
			ProductID:     product.ID,
			ProductName:   product.Name,
			Quantity:      item.input.Quantity,
			PurchasePrice: item.input.PurchasePrice,
			GSTRate:       item.input.GSTRate,
		})
	}

	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return domain.Purchase{}, err
	}

	s.invalidateReports(ctx, scope)
	s.logAudit(ctx, scope, auditPurchase, "purchase", created.ID, fmt.Sprintf("supplier=%s,items=%d,total=%s", created.SupplierName, len(created.Items), created.TotalAmount))
	return *created, nil
}

func (s *Service) ListPurchases(ctx context.Context, scope domain.ShopScope) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx, scope, time.Time{}, time.Time{})
}

// resolvePurchaseProduct returns the catalog product for a line and the
// shop price it carries, zero when the line sets none.
func (s *Service) resolvePurchaseProduct(ctx context.Context, src domain.PurchaseLineSource) (*domain.Product, decimal.Decimal, error) {
	switch v := src.(type) {
	case domain.ExistingProduct:
		product, err := s.repo.GetProduct(ctx, v.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		return product, decimal.Zero, nil
	case domain.NewProduct:
		product, err := s.repo.FindProductByName(ctx, v.Name)
		if errors.Is(err, store.ErrNotFound) {
			product, err = s.repo.CreateProduct(ctx, domain.Product{
				ID:           xid.New("prd"),
				Name:         v.Name,
				HSNCode:      v.HSNCode,
				Category:     v.Category,
				Unit:         v.Unit,
				GSTRate:      v.GSTRate,
				SellingPrice: v.SellingPrice,
			})
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		return product, v.SellingPrice, nil
	default:
		return nil, decimal.Zero, store.Invalid("items", "unknown product source")
	}
}

func validateNewProduct(field string, np domain.NewProduct) error {
	switch {
	case np.Name == "":
		return store.Invalid(field+".name", "required")
	case np.HSNCode == "":
		return store.Invalid(field+".hsn_code", "required")
	case np.Category == "":
		return store.Invalid(field+".category", "required")
	case !domain.IsValidGSTSlab(np.GSTRate):
		return store.Invalid(field+".gst_rate", "must be one of 0, 5, 12, 18, 28")
	case np.SellingPrice.IsNegative():
		return store.Invalid(field+".selling_price", "must not be negative")
	}
	return nil
}
