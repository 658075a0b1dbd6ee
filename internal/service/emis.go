package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/emi"
	"github.com/Dan9191/card-service/internal/events"
	"github.com/Dan9191/card-service/internal/models"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100

	RateSourceProvided = "provided"
	RateSourceKeyRate  = "key_rate"

	paymentInstallment = "installment"
	paymentPreClose    = "preclose"
	paymentAutoPay     = "autopay"
)

// CreateEMIInput describes a new installment plan. InterestRate falls back
// to the suggested market rate when omitted.
type CreateEMIInput struct {
	CardID       int64      `json:"card_id"`
	Principal    float64    `json:"principal_amount"`
	InterestRate *float64   `json:"interest_rate"`
	TenureMonths int        `json:"tenure_months"`
	StartDate    *time.Time `json:"start_date"`
	Description  string     `json:"description"`
	MerchantName string     `json:"merchant_name"`
	ProductName  string     `json:"product_name"`
}

// EMIDetails holds the descriptive fields of a plan that may change after creation
type EMIDetails struct {
	Description  *string `json:"description"`
	MerchantName *string `json:"merchant_name"`
	ProductName  *string `json:"product_name"`
}

// PaymentInput is an installment payment. Amount defaults to the installment,
// PaymentDate to now.
type PaymentInput struct {
	Amount      *float64   `json:"amount"`
	PaymentDate *time.Time `json:"payment_date"`
}

// PaymentResult is a plan after a payment together with the booked transaction
type PaymentResult struct {
	EMI         models.EMIView      `json:"emi"`
	Split       emi.Split           `json:"payment"`
	Transaction *models.Transaction `json:"transaction"`
}

// CalculateInput is a calculator request
type CalculateInput struct {
	Principal    float64  `json:"principal_amount"`
	InterestRate *float64 `json:"interest_rate"`
	TenureMonths int      `json:"tenure_months"`
}

// CreateEMI opens a plan against one of the user's usable cards
func (s *Service) CreateEMI(ctx context.Context, userID int64, in CreateEMIInput) (*models.EMIView, error) {
	rate, _, err := s.resolveRate(ctx, in.InterestRate)
	if err != nil {
		return nil, err
	}
	if err := emi.Validate(in.Principal, rate, in.TenureMonths); err != nil {
		return nil, err
	}

	card, err := s.store.GetCard(ctx, userID, in.CardID)
	if err != nil {
		return nil, err
	}
	if !card.Usable() {
		return nil, fmt.Errorf("%w: card is not active or is blocked", models.ErrInvalidState)
	}

	now := s.now()
	start := now
	if in.StartDate != nil && !in.StartDate.IsZero() {
		start = *in.StartDate
	}

	e, err := emi.New(emi.Params{
		Code:         newCode("EMI"),
		UserID:       userID,
		CardID:       card.ID,
		Principal:    models.RoundCents(in.Principal),
		AnnualRate:   rate,
		Months:       in.TenureMonths,
		StartDate:    start,
		Description:  strings.TrimSpace(in.Description),
		MerchantName: strings.TrimSpace(in.MerchantName),
		ProductName:  strings.TrimSpace(in.ProductName),
	})
	if err != nil {
		return nil, err
	}
	e.CreatedAt, e.UpdatedAt = now, now

	if err := s.store.CreateEMI(ctx, &e); err != nil {
		return nil, err
	}

	s.metrics.EMICreated()
	s.log.Infof("EMI %s created for user %d: principal %.2f at %.2f%% over %d months, installment %.2f",
		e.Code, userID, e.PrincipalAmount, e.InterestRate, e.TenureMonths, e.InstallmentAmount)
	s.notify(ctx, models.Notification{
		UserID: userID,
		Title:  "EMI Created",
		Message: fmt.Sprintf("Your EMI of %s for %d months has been set up. First installment due on %s.",
			models.FormatAmount(e.InstallmentAmount), e.TenureMonths, e.NextDueDate.Format("2006-01-02")),
		Category:          models.CategoryEMI,
		Priority:          models.PriorityMedium,
		RelatedEntityType: "emi",
		RelatedEntityID:   e.Code,
	})
	s.publish(ctx, events.EMICreated, s.emiEvent(e, e.PrincipalAmount))

	view := s.view(e)
	return &view, nil
}

// ListEMIs returns one page of the user's plans
func (s *Service) ListEMIs(ctx context.Context, userID int64, filter models.EMIFilter) (*models.EMIPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}

	emis, total, err := s.store.ListEMIs(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	page := &models.EMIPage{
		EMIs:        make([]models.EMIView, 0, len(emis)),
		Total:       total,
		Pages:       (total + filter.PerPage - 1) / filter.PerPage,
		CurrentPage: filter.Page,
		PerPage:     filter.PerPage,
	}
	for _, e := range emis {
		page.EMIs = append(page.EMIs, s.view(e))
	}
	return page, nil
}

// GetEMI returns one of the user's plans
func (s *Service) GetEMI(ctx context.Context, userID, emiID int64) (*models.EMIView, error) {
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, err
	}
	view := s.view(*e)
	return &view, nil
}

// UpdateEMIDetails changes the descriptive fields of a plan
func (s *Service) UpdateEMIDetails(ctx context.Context, userID, emiID int64, d EMIDetails) (*models.EMIView, error) {
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, err
	}
	if d.Description != nil {
		e.Description = strings.TrimSpace(*d.Description)
	}
	if d.MerchantName != nil {
		e.MerchantName = strings.TrimSpace(*d.MerchantName)
	}
	if d.ProductName != nil {
		e.ProductName = strings.TrimSpace(*d.ProductName)
	}
	e.UpdatedAt = s.now()
	if err := s.store.UpdateEMI(ctx, e); err != nil {
		return nil, err
	}
	view := s.view(*e)
	return &view, nil
}

// PayEMI pays an installment from the plan's card. Without an amount one
// installment is paid. The card is debited the full amount; whatever exceeds
// the remaining balance is absorbed by the plan and counted in its total paid.
func (s *Service) PayEMI(ctx context.Context, userID, emiID int64, in PaymentInput) (*PaymentResult, error) {
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	if in.PaymentDate != nil && !in.PaymentDate.IsZero() {
		paidAt = *in.PaymentDate
	}
	amount := e.InstallmentAmount
	if in.Amount != nil {
		amount = models.RoundCents(*in.Amount)
		if amount <= 0 {
			return nil, fmt.Errorf("%w: payment amount must be positive", models.ErrValidation)
		}
	}
	return s.applyPayment(ctx, e, amount, paidAt, paymentInstallment)
}

// PreCloseEMI settles the whole plan. The charge is the payoff amount: the
// remaining balance plus the interest of the current period. A given amount
// may not be lower than that and is never charged beyond it.
func (s *Service) PreCloseEMI(ctx context.Context, userID, emiID int64, amount *float64) (*PaymentResult, error) {
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, err
	}

	payoff := emi.PayoffAmount(*e)
	if amount != nil && models.RoundCents(*amount) < payoff {
		return nil, fmt.Errorf("%w: pre-closure requires at least %s", models.ErrValidation, models.FormatAmount(payoff))
	}
	return s.applyPayment(ctx, e, payoff, s.now(), paymentPreClose)
}

// SetAutoPay turns automatic installment payment on or off
func (s *Service) SetAutoPay(ctx context.Context, userID, emiID int64, enabled bool, day int) (*models.EMIView, error) {
	if enabled && (day < 1 || day > 31) {
		return nil, fmt.Errorf("%w: auto-pay date must be between 1 and 31", models.ErrValidation)
	}
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EMIStatusActive {
		return nil, fmt.Errorf("%w: EMI %s is %s", models.ErrInvalidState, e.Code, e.Status)
	}

	e.AutoPayEnabled = enabled
	e.AutoPayDay = 0
	if enabled {
		e.AutoPayDay = day
	}
	e.UpdatedAt = s.now()
	if err := s.store.UpdateEMI(ctx, e); err != nil {
		return nil, err
	}

	s.log.Infof("Auto-pay for EMI %s set to %t (day %d)", e.Code, enabled, e.AutoPayDay)
	view := s.view(*e)
	return &view, nil
}

// CancelEMI cancels an active plan
func (s *Service) CancelEMI(ctx context.Context, userID, emiID int64) (*models.EMIView, error) {
	return s.transition(ctx, userID, emiID, emi.Cancel, events.EMICancelled, "EMI Cancelled", "has been cancelled")
}

// MarkEMIDefaulted marks an active plan as defaulted
func (s *Service) MarkEMIDefaulted(ctx context.Context, userID, emiID int64) (*models.EMIView, error) {
	return s.transition(ctx, userID, emiID, emi.MarkDefaulted, events.EMIDefaulted, "EMI Defaulted", "has been marked as defaulted")
}

// EMISummary aggregates all of the user's plans
func (s *Service) EMISummary(ctx context.Context, userID int64) (*models.EMISummary, error) {
	emis, _, err := s.store.ListEMIs(ctx, userID, models.EMIFilter{})
	if err != nil {
		return nil, err
	}
	summary := emi.Summarize(emis, s.now(), s.config.ReminderWindowDays)
	return &summary, nil
}

// Calculate prices a plan without creating it
func (s *Service) Calculate(ctx context.Context, in CalculateInput) (*models.Quote, error) {
	rate, source, err := s.resolveRate(ctx, in.InterestRate)
	if err != nil {
		return nil, err
	}
	if err := emi.Validate(in.Principal, rate, in.TenureMonths); err != nil {
		return nil, err
	}
	q := emi.Quote(models.RoundCents(in.Principal), rate, in.TenureMonths, s.now())
	q.RateSource = source
	return &q, nil
}

// EMISchedule projects the full amortization schedule of a plan
func (s *Service) EMISchedule(ctx context.Context, userID, emiID int64) (*models.EMI, []models.ScheduleEntry, error) {
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, nil, err
	}
	return e, emi.Schedule(e.PrincipalAmount, e.InterestRate, e.TenureMonths, e.StartDate), nil
}

func (s *Service) applyPayment(ctx context.Context, e *models.EMI, amount float64, paidAt time.Time, kind string) (*PaymentResult, error) {
	if e.Status != models.EMIStatusActive {
		return nil, fmt.Errorf("%w: EMI %s is %s", models.ErrInvalidState, e.Code, e.Status)
	}

	card, err := s.store.GetCard(ctx, e.UserID, e.CardID)
	if err != nil {
		return nil, err
	}
	if !card.Usable() {
		return nil, fmt.Errorf("%w: card is not active or is blocked", models.ErrInvalidState)
	}
	if _, err := card.Debit(amount); err != nil {
		return nil, err
	}

	updated, split, err := emi.ApplyPayment(*e, amount, paidAt)
	if err != nil {
		return nil, err
	}
	now := s.now()
	updated.UpdatedAt = now
	card.LastUsed = &paidAt
	card.UpdatedAt = now

	emiID := updated.ID
	txn := &models.Transaction{
		Code:             newCode("TXN"),
		UserID:           updated.UserID,
		CardID:           card.ID,
		EMIID:            &emiID,
		MerchantName:     "EMI Payment",
		MerchantCategory: "emi",
		Description:      fmt.Sprintf("Installment %d/%d of %s", updated.CurrentInstallment, updated.TotalInstallments, updated.Code),
		Amount:           amount,
		Currency:         models.Currency,
		Type:             models.TransactionDebit,
		Status:           models.TransactionCompleted,
		PaymentMethod:    kind,
		TransactionDate:  paidAt,
		CreatedAt:        now,
	}
	if kind == paymentPreClose {
		txn.Description = "Pre-closure of " + updated.Code
	}

	if err := s.store.SavePayment(ctx, &updated, card, txn); err != nil {
		return nil, err
	}

	s.metrics.EMIPaid(kind, amount)
	s.log.Infof("EMI %s paid %.2f (interest %.2f, principal %.2f), remaining %.2f, status %s",
		updated.Code, amount, split.Interest, split.Principal, updated.RemainingBalance, updated.Status)
	s.notify(ctx, models.Notification{
		UserID:            updated.UserID,
		Title:             "EMI Payment Successful",
		Message:           fmt.Sprintf("Payment of %s received for %s. Remaining balance %s.", models.FormatAmount(amount), updated.Code, models.FormatAmount(updated.RemainingBalance)),
		Category:          models.CategoryPayment,
		Priority:          models.PriorityLow,
		RelatedEntityType: "emi",
		RelatedEntityID:   updated.Code,
	})
	s.publish(ctx, events.EMIPaid, s.emiEvent(updated, amount))

	if updated.Status == models.EMIStatusCompleted {
		s.metrics.EMITransitioned(string(updated.Status))
		s.notify(ctx, models.Notification{
			UserID:            updated.UserID,
			Title:             "EMI Completed",
			Message:           fmt.Sprintf("Congratulations! %s is fully paid.", updated.Code),
			Category:          models.CategoryEMI,
			Priority:          models.PriorityMedium,
			RelatedEntityType: "emi",
			RelatedEntityID:   updated.Code,
		})
		s.publish(ctx, events.EMICompleted, s.emiEvent(updated, amount))
	}

	*e = updated
	return &PaymentResult{EMI: s.view(updated), Split: split, Transaction: txn}, nil
}

func (s *Service) transition(ctx context.Context, userID, emiID int64, apply func(models.EMI) (models.EMI, error), routingKey, title, verb string) (*models.EMIView, error) {
	e, err := s.store.GetEMI(ctx, userID, emiID)
	if err != nil {
		return nil, err
	}
	updated, err := apply(*e)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()
	if err := s.store.UpdateEMI(ctx, &updated); err != nil {
		return nil, err
	}

	s.metrics.EMITransitioned(string(updated.Status))
	s.log.Infof("EMI %s moved to %s", updated.Code, updated.Status)
	s.notify(ctx, models.Notification{
		UserID:            userID,
		Title:             title,
		Message:           fmt.Sprintf("Your EMI %s %s.", updated.Code, verb),
		Category:          models.CategoryEMI,
		Priority:          models.PriorityHigh,
		RelatedEntityType: "emi",
		RelatedEntityID:   updated.Code,
	})
	s.publish(ctx, routingKey, s.emiEvent(updated, 0))

	view := s.view(updated)
	return &view, nil
}

// resolveRate returns the requested rate, or the suggested market rate when
// none was given.
func (s *Service) resolveRate(ctx context.Context, requested *float64) (float64, string, error) {
	if requested != nil {
		return *requested, RateSourceProvided, nil
	}
	if s.rates == nil {
		return 0, "", fmt.Errorf("%w: interest rate is required", models.ErrValidation)
	}
	rate, err := s.rates.SuggestedRate(ctx)
	if err != nil {
		s.log.Warnf("Failed to fetch suggested rate: %v", err)
		return 0, "", fmt.Errorf("%w: interest rate is required, market rate unavailable", models.ErrValidation)
	}
	return rate, RateSourceKeyRate, nil
}

func (s *Service) view(e models.EMI) models.EMIView {
	return emi.View(e, s.now(), s.config.ReminderWindowDays)
}

func (s *Service) emiEvent(e models.EMI, amount float64) events.EMIEvent {
	return events.EMIEvent{
		EMIID:      e.Code,
		UserID:     e.UserID,
		CardID:     e.CardID,
		Status:     string(e.Status),
		Amount:     amount,
		Remaining:  e.RemainingBalance,
		OccurredAt: s.now(),
	}
}
