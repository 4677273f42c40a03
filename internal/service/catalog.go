package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
	"vyapaar/backend/internal/xid"
)

const FilterLowStock = "low-stock"

func (s *Service) CreateProduct(ctx context.Context, scope domain.ShopScope, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.HSNCode = strings.TrimSpace(req.HSNCode)
	req.Category = strings.TrimSpace(req.Category)
	req.Unit = strings.TrimSpace(req.Unit)

	switch {
	case req.Name == "":
		return domain.Product{}, store.Invalid("name", "required")
	case req.HSNCode == "":
		return domain.Product{}, store.Invalid("hsn_code", "required")
	case req.Category == "":
		return domain.Product{}, store.Invalid("category", "required")
	case req.GSTRate == nil:
		return domain.Product{}, store.Invalid("gst_rate", "required")
	case !domain.IsValidGSTSlab(*req.GSTRate):
		return domain.Product{}, store.Invalid("gst_rate", "must be one of 0, 5, 12, 18, 28")
	case !req.SellingPrice.IsPositive():
		return domain.Product{}, store.Invalid("selling_price", "must be greater than zero")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:           xid.New("prd"),
		Name:         req.Name,
		HSNCode:      req.HSNCode,
		Category:     req.Category,
		Unit:         req.Unit,
		GSTRate:      *req.GSTRate,
		SellingPrice: req.SellingPrice,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, scope, auditProductCreate, "product", created.ID, fmt.Sprintf("name=%s,price=%s,gst=%d", created.Name, created.SellingPrice, created.GSTRate))
	return *created, nil
}

// ListProducts is the shop's stock view of active products. filter may be
// empty or "low-stock".
func (s *Service) ListProducts(ctx context.Context, scope domain.ShopScope, filter string) ([]domain.ProductStockView, error) {
	filter = strings.TrimSpace(filter)
	if filter != "" && filter != FilterLowStock {
		return nil, store.Invalid("filter", "unsupported filter")
	}

	items, err := s.repo.ListInventory(ctx, scope)
	if err != nil {
		return nil, err
	}

	views := make([]domain.ProductStockView, 0, len(items))
	for _, item := range items {
		if !item.Product.Active {
			continue
		}
		status := domain.StockStatusFor(item.Inventory.CurrentStock)
		if filter == FilterLowStock && status != domain.StockLow {
			continue
		}

		price := item.Product.SellingPrice
		if item.Inventory.SellingPrice.IsPositive() {
			price = item.Inventory.SellingPrice
		}
		views = append(views, domain.ProductStockView{
			ID:       item.Product.ID,
			Name:     item.Product.Name,
			HSNCode:  item.Product.HSNCode,
			Category: item.Product.Category,
			GSTRate:  item.Product.GSTRate,
			Price:    price,
			Stock:    item.Inventory.CurrentStock,
			Status:   status,
		})
	}
	return views, nil
}

func (s *Service) ListCatalog(ctx context.Context, includeArchived bool) ([]domain.Product, error) {
	return s.repo.ListCatalog(ctx, includeArchived)
}

func (s *Service) UpdateProductPricing(ctx context.Context, scope domain.ShopScope, productID string, req domain.ProductPricingRequest) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, store.Invalid("id", "required")
	}
	if req.SellingPrice == nil || !req.SellingPrice.IsPositive() {
		return domain.Product{}, store.Invalid("selling_price", "must be greater than zero")
	}
	if req.GSTRate == nil || !domain.IsValidGSTSlab(*req.GSTRate) {
		return domain.Product{}, store.Invalid("gst_rate", "must be one of 0, 5, 12, 18, 28")
	}

	updated, err := s.repo.UpdateProductPricing(ctx, productID, *req.SellingPrice, *req.GSTRate)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.SetInventoryPrice(ctx, scope, productID, *req.SellingPrice); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, err
	}

	s.invalidateReports(ctx, scope)
	s.logAudit(ctx, scope, auditProductPricing, "product", updated.ID, fmt.Sprintf("price=%s,gst=%d", updated.SellingPrice, updated.GSTRate))
	return *updated, nil
}

func (s *Service) ArchiveProduct(ctx context.Context, scope domain.ShopScope, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, store.Invalid("id", "required")
	}

	archived, err := s.repo.SetProductActive(ctx, productID, false)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateReports(ctx, scope)
	s.logAudit(ctx, scope, auditProductArchive, "product", archived.ID, "name="+archived.Name)
	return *archived, nil
}
