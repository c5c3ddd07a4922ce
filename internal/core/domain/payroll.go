package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/shopspring/decimal"
)

// MaxDebtDeductionRate caps how much of a gross salary one payroll run may claw back.
var MaxDebtDeductionRate = decimal.NewFromFloat(0.3)

// SalaryCalculation is the pure outcome of applying debt to a salary.
type SalaryCalculation struct {
	BaseSalary    decimal.Decimal `json:"baseSalary"`
	CurrentDebt   decimal.Decimal `json:"currentDebt"`
	MaxDeduction  decimal.Decimal `json:"maxDeduction"`
	DebtDeduction decimal.Decimal `json:"debtDeduction"`
	NetSalary     decimal.Decimal `json:"netSalary"`
	RemainingDebt decimal.Decimal `json:"remainingDebt"`
}

// CalculateSalary computes deduction = min(debt, 30% of base).
func CalculateSalary(baseSalary, currentDebt decimal.Decimal) (SalaryCalculation, error) {
	if !baseSalary.IsPositive() {
		return SalaryCalculation{}, fmt.Errorf("%w: base salary must be positive", apperrors.ErrValidation)
	}
	debt := clampZero(currentDebt)
	maxDeduction := baseSalary.Mul(MaxDebtDeductionRate)
	deduction := decimal.Min(debt, maxDeduction)
	return SalaryCalculation{
		BaseSalary:    baseSalary,
		CurrentDebt:   debt,
		MaxDeduction:  maxDeduction,
		DebtDeduction: deduction,
		NetSalary:     baseSalary.Sub(deduction),
		RemainingDebt: debt.Sub(deduction),
	}, nil
}

// PayrollStatus is the state of a payroll record.
type PayrollStatus string

const PayrollPaid PayrollStatus = "paid"

// PayrollRecord is one processed salary payment.
type PayrollRecord struct {
	PayrollID        string          `json:"id"`
	DriverID         string          `json:"driverId"`
	AdminID          string          `json:"adminId"`
	GrossSalary      decimal.Decimal `json:"grossSalary"`
	DebtDeduction    decimal.Decimal `json:"debtDeduction"`
	NetSalary        decimal.Decimal `json:"netSalary"`
	PreviousDebt     decimal.Decimal `json:"previousDebt"`
	RemainingDebt    decimal.Decimal `json:"remainingDebt"`
	PaymentReference string          `json:"paymentReference"`
	DebtsSettled     []string        `json:"debtsSettled"`
	Status           PayrollStatus   `json:"status"`
	ProcessedAt      time.Time       `json:"processedAt"`
}

// DebtAllocation is the result of spreading a deduction over pending debts.
type DebtAllocation struct {
	Updated   []DebtRecord
	Remainder *DebtRecord
	Applied   decimal.Decimal
}

// SettledIDs lists the debts flipped to paid.
func (a DebtAllocation) SettledIDs() []string {
	ids := make([]string, 0, len(a.Updated))
	for _, d := range a.Updated {
		ids = append(ids, d.DebtID)
	}
	return ids
}

// AllocateDeduction retires pending debts oldest-first with the deduction.
// A debt only partly covered is marked paid for the covered amount, keeping the
// original amount as an annotation, and a new pending debt carries the rest.
func AllocateDeduction(pending []DebtRecord, deduction decimal.Decimal, payrollID, adminID, remainderID string, now time.Time) DebtAllocation {
	debts := make([]DebtRecord, 0, len(pending))
	for _, d := range pending {
		if d.Status == DebtPending {
			debts = append(debts, d)
		}
	}
	sort.SliceStable(debts, func(i, j int) bool {
		return debts[i].CreatedAt.Before(debts[j].CreatedAt)
	})

	alloc := DebtAllocation{Applied: decimal.Zero}
	left := deduction
	reference := "SALARY_" + payrollID
	for _, d := range debts {
		if !left.IsPositive() {
			break
		}
		d.Status = DebtPaid
		d.PaidAt = timePtr(now)
		d.PaidBy = &adminID
		d.PaymentReference = &reference

		if left.GreaterThanOrEqual(d.Amount) {
			left = left.Sub(d.Amount)
			alloc.Applied = alloc.Applied.Add(d.Amount)
			alloc.Updated = append(alloc.Updated, d)
			continue
		}

		original := d.Amount
		covered := left
		rest := original.Sub(covered)
		d.OriginalAmount = &original
		d.PaidAmount = &covered
		d.Amount = covered
		alloc.Applied = alloc.Applied.Add(covered)
		alloc.Updated = append(alloc.Updated, d)

		originalID := d.DebtID
		alloc.Remainder = &DebtRecord{
			DebtID:         remainderID,
			DriverID:       d.DriverID,
			Amount:         rest,
			Reason:         d.Reason,
			Description:    d.Description + RemainderSuffix,
			Status:         DebtPending,
			SettlementID:   d.SettlementID,
			OriginalDebtID: &originalID,
			CreatedAt:      now,
			CreatedBy:      adminID,
		}
		left = decimal.Zero
	}
	return alloc
}

// DriverPerformance summarizes a courier's work over a period.
type DriverPerformance struct {
	Period              DateRange       `json:"-"`
	DeliveriesTotal     int             `json:"deliveriesTotal"`
	CompletedDeliveries int             `json:"completedDeliveries"`
	PackagesDelivered   int             `json:"packagesDelivered"`
	PackagesFailed      int             `json:"packagesFailed"`
	AmountCollected     decimal.Decimal `json:"amountCollected"`
}

// ComputePerformance scans deliveries touched inside the period.
func ComputePerformance(deliveries []Delivery, period DateRange) DriverPerformance {
	perf := DriverPerformance{Period: period, AmountCollected: decimal.Zero}
	for _, d := range deliveries {
		if !period.Contains(d.CreatedAt) {
			continue
		}
		perf.DeliveriesTotal++
		if d.Status == DeliveryDelivered || d.Status == DeliveryTransferred {
			perf.CompletedDeliveries++
		}
		for _, p := range d.Packages {
			switch {
			case p.Status.HoldsCash():
				perf.PackagesDelivered++
				perf.AmountCollected = perf.AmountCollected.Add(p.Amount)
			case p.Status == PackageFailed:
				perf.PackagesFailed++
			}
		}
	}
	return perf
}

// SalaryPreview is the read-only salary computation shown before paying.
type SalaryPreview struct {
	DriverID     string            `json:"driverId"`
	DriverName   string            `json:"driverName"`
	Calculation  SalaryCalculation `json:"calculation"`
	Performance  DriverPerformance `json:"performance"`
	PendingDebts []DebtRecord      `json:"pendingDebts"`
}

// PayrollHistory lists a courier's payroll runs with totals.
type PayrollHistory struct {
	Records         []PayrollRecord `json:"payrolls"`
	TotalGross      decimal.Decimal `json:"totalGross"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TotalNet        decimal.Decimal `json:"totalNet"`
}

// NewPayrollHistory totals the given records.
func NewPayrollHistory(records []PayrollRecord) PayrollHistory {
	h := PayrollHistory{
		Records:         records,
		TotalGross:      decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNet:        decimal.Zero,
	}
	for _, r := range records {
		h.TotalGross = h.TotalGross.Add(r.GrossSalary)
		h.TotalDeductions = h.TotalDeductions.Add(r.DebtDeduction)
		h.TotalNet = h.TotalNet.Add(r.NetSalary)
	}
	return h
}
