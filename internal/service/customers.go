package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vyapaar/backend/internal/domain"
	"vyapaar/backend/internal/store"
)

// ReceivePayment allocates a customer payment to their outstanding sales,
// oldest first. Whatever exceeds the total due is reported as unallocated.
func (s *Service) ReceivePayment(ctx context.Context, scope domain.ShopScope, phone string, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.PaymentResponse{}, store.Invalid("phone", "required")
	}
	if !req.Amount.IsPositive() {
		return domain.PaymentResponse{}, store.Invalid("amount", "must be greater than zero")
	}

	if _, err := s.repo.GetCustomer(ctx, scope, phone); err != nil {
		return domain.PaymentResponse{}, err
	}

	outstanding, err := s.repo.ListSales(ctx, scope, store.SaleQuery{
		CustomerPhone: phone,
		PendingOnly:   true,
		OldestFirst:   true,
	})
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	remaining := req.Amount
	allocations := make([]domain.PaymentAllocation, 0, len(outstanding))
	for _, sale := range outstanding {
		if !remaining.IsPositive() {
			break
		}
		applied, updated, err := s.repo.ApplySalePayment(ctx, scope, sale.ID, remaining)
		if errors.Is(err, store.ErrNotFound) {
			// settled by a concurrent payment
			continue
		}
		if err != nil {
			return domain.PaymentResponse{}, err
		}
		remaining = remaining.Sub(applied)
		allocations = append(allocations, domain.PaymentAllocation{
			SaleID:        updated.ID,
			Applied:       applied,
			PendingAmount: updated.PendingAmount,
			PaymentStatus: updated.PaymentStatus,
		})
	}

	allocated := req.Amount.Sub(remaining)
	if allocated.IsPositive() {
		if err := s.repo.ApplyCustomerPayment(ctx, scope, phone, allocated, s.now().UTC()); err != nil {
			return domain.PaymentResponse{}, err
		}
		s.invalidateReports(ctx, scope)
	}

	s.logAudit(ctx, scope, auditPayment, "customer", phone, fmt.Sprintf("amount=%s,allocated=%s,sales=%d", req.Amount, allocated, len(allocations)))
	return domain.PaymentResponse{
		Phone:       phone,
		Allocated:   allocated,
		Unallocated: remaining,
		Allocations: allocations,
	}, nil
}

// ListCustomers returns the shop's customers with money totals recomputed
// from their sales.
func (s *Service) ListCustomers(ctx context.Context, scope domain.ShopScope) ([]domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx, scope)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.CustomerLedgerTotals(ctx, scope)
	if err != nil {
		return nil, err
	}

	for i := range customers {
		entry, ok := totals[customers[i].Phone]
		if !ok {
			entry = domain.LedgerTotals{TotalSpent: decimal.Zero, TotalReceived: decimal.Zero, TotalPending: decimal.Zero}
		}
		customers[i].TotalSpent = entry.TotalSpent
		customers[i].TotalReceived = entry.TotalReceived
		customers[i].TotalPending = entry.TotalPending
	}
	return customers, nil
}

func (s *Service) CustomerHistory(ctx context.Context, scope domain.ShopScope, phone string) ([]domain.Sale, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, store.Invalid("phone", "required")
	}
	if _, err := s.repo.GetCustomer(ctx, scope, phone); err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, scope, store.SaleQuery{CustomerPhone: phone})
}
