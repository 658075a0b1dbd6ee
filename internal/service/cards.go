package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/events"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Fraud screening thresholds
const (
	largeChargeRatio   = 0.8
	velocityWindow     = 10 * time.Minute
	velocityMaxCharges = 5
	usageHighPercent   = 80.0
	usageUrgentPercent = 90.0
	pinLength          = 4
)

// AddCardInput carries the details of a card being registered
type AddCardInput struct {
	CardNumber      string  `json:"card_number"`
	CardName        string  `json:"card_name"`
	HolderName      string  `json:"card_holder_name"`
	CardType        string  `json:"card_type"`
	ExpiryMonth     int     `json:"expiry_month"`
	ExpiryYear      int     `json:"expiry_year"`
	CVV             string  `json:"cvv"`
	PIN             string  `json:"pin"`
	CreditLimit     float64 `json:"credit_limit"`
	DueDay          int     `json:"due_date"`
	IsInternational bool    `json:"is_international"`
}

// ChargeInput describes a purchase on a card
type ChargeInput struct {
	Amount           float64 `json:"amount"`
	MerchantName     string  `json:"merchant_name"`
	MerchantCategory string  `json:"merchant_category"`
	Description      string  `json:"description"`
	PaymentMethod    string  `json:"payment_method"`
	IsInternational  bool    `json:"is_international"`
}

// AddCard validates, encrypts and stores a user's card
func (s *Service) AddCard(ctx context.Context, userID int64, in AddCardInput) (*models.Card, error) {
	now := s.now()
	number := utils.NormalizeCardNumber(in.CardNumber)
	if err := utils.ValidateCardNumber(number); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if in.ExpiryMonth < 1 || in.ExpiryMonth > 12 {
		return nil, fmt.Errorf("%w: expiry month must be between 1 and 12", models.ErrValidation)
	}
	if (&models.Card{ExpiryMonth: in.ExpiryMonth, ExpiryYear: in.ExpiryYear}).IsExpired(now) {
		return nil, fmt.Errorf("%w: card is expired", models.ErrValidation)
	}
	if !utils.ValidateDigits(in.CVV, 3) && !utils.ValidateDigits(in.CVV, 4) {
		return nil, fmt.Errorf("%w: CVV must be 3 or 4 digits", models.ErrValidation)
	}
	if in.PIN != "" && !utils.ValidateDigits(in.PIN, pinLength) {
		return nil, fmt.Errorf("%w: PIN must be %d digits", models.ErrValidation, pinLength)
	}
	if in.CreditLimit <= 0 {
		return nil, fmt.Errorf("%w: credit limit must be positive", models.ErrValidation)
	}
	if in.DueDay < 0 || in.DueDay > 31 {
		return nil, fmt.Errorf("%w: due date must be a day of month", models.ErrValidation)
	}

	count, err := s.store.CountCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= s.config.MaxCardsPerUser {
		return nil, fmt.Errorf("%w: at most %d cards per user", models.ErrInvalidState, s.config.MaxCardsPerUser)
	}

	expiry := fmt.Sprintf("%02d/%d", in.ExpiryMonth, in.ExpiryYear)
	mac := utils.GenerateHMAC(number, expiry, s.config.HMACSecret)
	exists, err := s.store.CardHMACExists(ctx, userID, mac)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: card is already registered", models.ErrConflict)
	}

	key, err := s.config.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	encryptedNumber, err := utils.Encrypt(number, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt card number: %w", err)
	}
	cvvHash, err := bcrypt.GenerateFromPassword([]byte(in.CVV), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash CVV: %w", err)
	}
	var pinHash []byte
	if in.PIN != "" {
		if pinHash, err = bcrypt.GenerateFromPassword([]byte(in.PIN), bcrypt.DefaultCost); err != nil {
			return nil, fmt.Errorf("failed to hash PIN: %w", err)
		}
	}

	holder := strings.TrimSpace(in.HolderName)
	if holder == "" {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		holder = user.FullName()
	}
	cardType := strings.ToLower(strings.TrimSpace(in.CardType))
	if cardType == "" {
		cardType = "credit"
	}

	card := &models.Card{
		Code:            newCode("CARD"),
		UserID:          userID,
		CardName:        strings.TrimSpace(in.CardName),
		HolderName:      holder,
		CardNumber:      encryptedNumber,
		LastFour:        utils.LastFour(number),
		HMAC:            mac,
		CardType:        cardType,
		CardBrand:       utils.CardBrand(number),
		ExpiryMonth:     in.ExpiryMonth,
		ExpiryYear:      in.ExpiryYear,
		CVVHash:         string(cvvHash),
		PINHash:         string(pinHash),
		CreditLimit:     models.RoundCents(in.CreditLimit),
		DueDay:          in.DueDay,
		IsActive:        true,
		IsInternational: in.IsInternational,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	card.Credit(0)

	if err := s.store.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	s.log.Infof("Card %s added for user %d", card.Code, userID)
	s.notify(ctx, models.Notification{
		UserID:            userID,
		Title:             "New Card Added",
		Message:           fmt.Sprintf("Your %s card ending %s has been added.", card.CardBrand, card.LastFour),
		Category:          models.CategoryCard,
		Priority:          models.PriorityMedium,
		RelatedEntityType: "card",
		RelatedEntityID:   card.Code,
	})
	return card, nil
}

// ListCards returns the user's cards
func (s *Service) ListCards(ctx context.Context, userID int64) ([]models.Card, error) {
	return s.store.ListCards(ctx, userID)
}

// GetCard returns one of the user's cards
func (s *Service) GetCard(ctx context.Context, userID, cardID int64) (*models.Card, error) {
	return s.store.GetCard(ctx, userID, cardID)
}

// BlockCard blocks a card at the user's request
func (s *Service) BlockCard(ctx context.Context, userID, cardID int64, reason string) (*models.Card, error) {
	card, err := s.store.GetCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if card.IsBlocked {
		return nil, fmt.Errorf("%w: card %s is already blocked", models.ErrInvalidState, card.Code)
	}
	if err := s.block(ctx, card, reason); err != nil {
		return nil, err
	}
	return card, nil
}

// UnblockCard re-enables a blocked card
func (s *Service) UnblockCard(ctx context.Context, userID, cardID int64) (*models.Card, error) {
	card, err := s.store.GetCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if !card.IsBlocked {
		return nil, fmt.Errorf("%w: card %s is not blocked", models.ErrInvalidState, card.Code)
	}

	card.Unblock()
	card.UpdatedAt = s.now()
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}

	s.log.Infof("Card %s unblocked for user %d", card.Code, userID)
	s.notify(ctx, models.Notification{
		UserID:            userID,
		Title:             "Card Unblocked",
		Message:           fmt.Sprintf("Your card ending %s is active again.", card.LastFour),
		Category:          models.CategorySecurity,
		Priority:          models.PriorityHigh,
		RelatedEntityType: "card",
		RelatedEntityID:   card.Code,
	})
	return card, nil
}

// UpdatePIN replaces the card PIN. The current PIN must match when one is set.
func (s *Service) UpdatePIN(ctx context.Context, userID, cardID int64, currentPIN, newPIN string) error {
	if !utils.ValidateDigits(newPIN, pinLength) {
		return fmt.Errorf("%w: PIN must be %d digits", models.ErrValidation, pinLength)
	}
	card, err := s.store.GetCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if card.PINHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(card.PINHash), []byte(currentPIN)); err != nil {
			return fmt.Errorf("%w: current PIN does not match", models.ErrUnauthorized)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	card.PINHash = string(hash)
	card.UpdatedAt = s.now()
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return err
	}

	s.log.Infof("PIN updated for card %s", card.Code)
	s.notify(ctx, models.Notification{
		UserID:            userID,
		Title:             "PIN Updated",
		Message:           fmt.Sprintf("The PIN of your card ending %s has been changed.", card.LastFour),
		Category:          models.CategorySecurity,
		Priority:          models.PriorityHigh,
		RelatedEntityType: "card",
		RelatedEntityID:   card.Code,
	})
	return nil
}

// ChargeCard books a purchase after fraud screening. A suspicious charge
// blocks the card and fails with models.ErrInvalidState.
func (s *Service) ChargeCard(ctx context.Context, userID, cardID int64, in ChargeInput) (*models.Transaction, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if strings.TrimSpace(in.MerchantName) == "" {
		return nil, fmt.Errorf("%w: merchant name is required", models.ErrValidation)
	}

	card, err := s.store.GetCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if !card.Usable() {
		s.metrics.CardCharged("rejected")
		return nil, fmt.Errorf("%w: card is not active or is blocked", models.ErrInvalidState)
	}
	amount := models.RoundCents(in.Amount)
	if amount > card.AvailableCredit {
		s.metrics.CardCharged("rejected")
		return nil, fmt.Errorf("%w: insufficient credit limit", models.ErrInvalidState)
	}

	now := s.now()
	suspicious, err := s.suspicious(ctx, card, in, now)
	if err != nil {
		return nil, err
	}
	if suspicious != "" {
		s.metrics.CardCharged("fraud_blocked")
		s.log.Warnf("Suspicious charge on card %s: %s", card.Code, suspicious)
		if err := s.block(ctx, card, "suspicious activity: "+suspicious); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: suspicious activity detected, card blocked for security", models.ErrInvalidState)
	}

	if _, err := card.Debit(amount); err != nil {
		return nil, err
	}
	card.LastUsed = &now
	card.UpdatedAt = now

	category := strings.TrimSpace(in.MerchantCategory)
	if category == "" {
		category = "general"
	}
	method := in.PaymentMethod
	if method == "" {
		method = "online"
	}
	txn := &models.Transaction{
		Code:             newCode("TXN"),
		UserID:           userID,
		CardID:           card.ID,
		MerchantName:     strings.TrimSpace(in.MerchantName),
		MerchantCategory: category,
		Description:      in.Description,
		Amount:           amount,
		Currency:         models.Currency,
		Type:             models.TransactionDebit,
		Status:           models.TransactionCompleted,
		PaymentMethod:    method,
		IsInternational:  in.IsInternational,
		TransactionDate:  now,
		CreatedAt:        now,
	}
	if err := s.store.RecordCharge(ctx, card, txn); err != nil {
		return nil, err
	}

	s.metrics.CardCharged("completed")
	s.log.Infof("Charge %s of %.2f on card %s at %s", txn.Code, amount, card.Code, txn.MerchantName)
	s.notify(ctx, models.Notification{
		UserID:            userID,
		Title:             "Transaction Alert",
		Message:           fmt.Sprintf("Transaction of %s at %s", models.FormatAmount(amount), txn.MerchantName),
		Category:          models.CategoryTransaction,
		Priority:          models.PriorityMedium,
		RelatedEntityType: "transaction",
		RelatedEntityID:   txn.Code,
	})
	s.creditUsageAlert(ctx, card)
	return txn, nil
}

// ListTransactions returns recent transactions of one of the user's cards
func (s *Service) ListTransactions(ctx context.Context, userID, cardID int64, limit int) ([]models.Transaction, error) {
	if _, err := s.store.GetCard(ctx, userID, cardID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListTransactions(ctx, userID, cardID, limit)
}

// suspicious returns the rule a charge trips, or "" when it looks fine
func (s *Service) suspicious(ctx context.Context, card *models.Card, in ChargeInput, now time.Time) (string, error) {
	if in.Amount > card.CreditLimit*largeChargeRatio {
		return "amount above 80% of credit limit", nil
	}
	recent, err := s.store.CountCompletedTransactionsSince(ctx, card.ID, now.Add(-velocityWindow))
	if err != nil {
		return "", err
	}
	if recent > velocityMaxCharges {
		return "too many transactions in 10 minutes", nil
	}
	if in.IsInternational && !card.IsInternational {
		return "international charge on a domestic card", nil
	}
	return "", nil
}

func (s *Service) block(ctx context.Context, card *models.Card, reason string) error {
	card.Block()
	card.UpdatedAt = s.now()
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return err
	}

	s.log.Infof("Card %s blocked: %s", card.Code, reason)
	message := fmt.Sprintf("Your card ending %s has been blocked.", card.LastFour)
	if reason != "" {
		message += " Reason: " + reason + "."
	}
	s.notify(ctx, models.Notification{
		UserID:            card.UserID,
		Title:             "Card Blocked",
		Message:           message + " Please contact support if this wasn't you.",
		Category:          models.CategorySecurity,
		Priority:          models.PriorityUrgent,
		RelatedEntityType: "card",
		RelatedEntityID:   card.Code,
	})
	s.publish(ctx, events.CardBlocked, events.CardEvent{
		CardID:     card.Code,
		UserID:     card.UserID,
		Reason:     reason,
		OccurredAt: card.UpdatedAt,
	})
	return nil
}

func (s *Service) creditUsageAlert(ctx context.Context, card *models.Card) {
	if card.CreditLimit <= 0 {
		return
	}
	usage := decimal.NewFromFloat(card.Outstanding).
		Div(decimal.NewFromFloat(card.CreditLimit)).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()

	priority := models.PriorityHigh
	switch {
	case usage >= usageUrgentPercent:
		priority = models.PriorityUrgent
	case usage >= usageHighPercent:
	default:
		return
	}
	s.notify(ctx, models.Notification{
		UserID:            card.UserID,
		Title:             "Credit Limit Alert",
		Message:           fmt.Sprintf("Your card ending %s is at %.1f%% of its credit limit.", card.LastFour, usage),
		Category:          models.CategoryCard,
		Priority:          priority,
		RelatedEntityType: "card",
		RelatedEntityID:   card.Code,
	})
}
