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

// CreateSale bills a customer.
//
// Lines are priced first without touching stock. Stock is then taken item by
// item with a conditional decrement; when one item runs short the sale fails
// but earlier decrements stay applied.
func (s *Service) CreateSale(ctx context.Context, scope domain.ShopScope, req domain.SaleCreateRequest) (domain.Sale, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerAddress = strings.TrimSpace(req.CustomerAddress)
	req.CustomerTaxID = strings.TrimSpace(req.CustomerTaxID)

	if req.CustomerName == "" {
		return domain.Sale{}, store.Invalid("customer_name", "required")
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, store.Invalid("items", "at least one item is required")
	}
	received := decimal.Zero
	if req.AmountReceived != nil {
		received = *req.AmountReceived
	}
	if received.IsNegative() {
		return domain.Sale{}, store.Invalid("amount_received", "must not be negative")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.Sale{}, store.Invalid(fmt.Sprintf("items[%d].product_id", i), "required")
		}
		if item.Quantity < 1 {
			return domain.Sale{}, store.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	subtotal := decimal.Zero
	totalGST := decimal.Zero
	for _, item := range req.Items {
		line, err := s.priceSaleLine(ctx, scope, strings.TrimSpace(item.ProductID), item.Quantity)
		if err != nil {
			return domain.Sale{}, err
		}
		subtotal = subtotal.Add(line.Amount())
		totalGST = totalGST.Add(line.GST())
		lines = append(lines, line)
	}

	grandTotal := subtotal.Add(totalGST)
	if received.GreaterThan(grandTotal) {
		return domain.Sale{}, store.Invalid("amount_received", "exceeds grand total")
	}

	for _, line := range lines {
		if _, err := s.repo.DecrementStock(ctx, scope, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, store.ErrInsufficientStock) {
				return domain.Sale{}, fmt.Errorf("%w for %s", err, line.ProductName)
			}
			return domain.Sale{}, err
		}
	}

	now := s.now().UTC()
	pending := grandTotal.Sub(received)
	sale := domain.Sale{
		ID:              xid.New("sale"),
		ShopID:          scope.ShopID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		CustomerTaxID:   req.CustomerTaxID,
		Items:           lines,
		Subtotal:        subtotal,
		TotalGST:        totalGST,
		GrandTotal:      grandTotal,
		AmountReceived:  received,
		PendingAmount:   pending,
		PaymentStatus:   domain.DerivePaymentStatus(received, pending),
		SaleDate:        now,
		CreatedAt:       now,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx, scope)
	s.logAudit(ctx, scope, auditSale, "sale", created.ID, fmt.Sprintf("customer=%s,total=%s,received=%s", created.CustomerName, created.GrandTotal, created.AmountReceived))

	if created.CustomerPhone != "" {
		if _, err := s.repo.UpsertCustomerSale(ctx, scope, domain.CustomerSaleEntry{
			Phone:      created.CustomerPhone,
			Name:       created.CustomerName,
			Address:    created.CustomerAddress,
			TaxID:      created.CustomerTaxID,
			GrandTotal: created.GrandTotal,
			Received:   created.AmountReceived,
			Pending:    created.PendingAmount,
			At:         created.CreatedAt,
		}); err != nil {
			return domain.Sale{}, err
		}
	}

	return *created, nil
}

// priceSaleLine snapshots one line. A missing inventory row counts as no
// stock; the shop price wins over the catalog price when set.
func (s *Service) priceSaleLine(ctx context.Context, scope domain.ShopScope, productID string, qty int) (domain.SaleLine, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.SaleLine{}, err
	}

	inv, err := s.repo.GetInventory(ctx, scope, product.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleLine{}, fmt.Errorf("%w for %s", store.ErrInsufficientStock, product.Name)
		}
		return domain.SaleLine{}, err
	}

	price := product.SellingPrice
	if inv.SellingPrice.IsPositive() {
		price = inv.SellingPrice
	}
	if !price.IsPositive() {
		return domain.SaleLine{}, store.Invalid("selling_price", "missing for "+product.Name)
	}

	return domain.SaleLine{
		ProductID:    product.ID,
		ProductName:  product.Name,
		HSNCode:      product.HSNCode,
		Quantity:     qty,
		SellingPrice: price,
		GSTRate:      product.GSTRate,
	}, nil
}

func (s *Service) ListSales(ctx context.Context, scope domain.ShopScope) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, scope, store.SaleQuery{})
}

func (s *Service) GetSale(ctx context.Context, scope domain.ShopScope, saleID string) (domain.Sale, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.Sale{}, store.Invalid("id", "required")
	}
	sale, err := s.repo.GetSale(ctx, scope, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// SalesBetween lists sales with saleDate in [from, to), oldest first.
func (s *Service) SalesBetween(ctx context.Context, scope domain.ShopScope, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, scope, store.SaleQuery{From: from, To: to, OldestFirst: true})
}
