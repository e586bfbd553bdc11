package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
	"github.com/pickitchen/pickitchen-backend/internal/database"
	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/ledger"
	"github.com/pickitchen/pickitchen-backend/internal/models"
)

// ErrInvalidEvent marks a payload rejected before anything is written.
var ErrInvalidEvent = errors.New("invalid billing event")

// IngestResult tells the webhook handler what happened to an event.
type IngestResult string

const (
	IngestProcessed IngestResult = "processed"
	IngestDuplicate IngestResult = "duplicate"
	IngestIgnored   IngestResult = "ignored"
)

// BillingService turns the retried, possibly out-of-order RevenueCat
// event stream into exactly-once ledger and subscription effects.
type BillingService struct {
	db      *gorm.DB
	catalog *catalog.Catalog
}

func NewBillingService(db *gorm.DB, cat *catalog.Catalog) *BillingService {
	return &BillingService{db: db, catalog: cat}
}

// ProcessEvent runs one inbound event through dedup, classification and
// effects. Everything after validation happens in a single transaction:
// the seen-events insert and the event's effects commit together, so a
// crash cannot mark an event seen without applying it.
func (s *BillingService) ProcessEvent(event *dto.RevenueCatEvent) (IngestResult, error) {
	if event.ID == "" || event.Type == "" || event.AppUserID == "" || event.ProductID == "" {
		return "", ErrInvalidEvent
	}
	userID, err := strconv.ParseInt(event.AppUserID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad app_user_id %q", ErrInvalidEvent, event.AppUserID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	result := IngestProcessed
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		seen := models.RevenueCatEvent{
			EventID:   event.ID,
			EventType: event.Type,
			Payload:   payload,
		}
		if err := tx.Create(&seen).Error; err != nil {
			if database.IsUniqueViolation(err) {
				result = IngestDuplicate
				// Roll back; the earlier delivery already applied the effects.
				return errDuplicateEvent
			}
			return fmt.Errorf("record event: %w", err)
		}

		kind, pack, vip := s.catalog.Classify(event.ProductID)
		switch kind {
		case catalog.ProductPointsPack:
			return s.applyPointsPack(tx, userID, event, pack, &result)
		case catalog.ProductVip:
			return s.applyVip(tx, userID, event, vip)
		default:
			slog.Info("billing event for untracked product",
				"event_id", event.ID, "product_id", event.ProductID)
			result = IngestIgnored
			return nil
		}
	})

	if errors.Is(txErr, errDuplicateEvent) {
		return IngestDuplicate, nil
	}
	if txErr != nil {
		return "", txErr
	}
	return result, nil
}

var errDuplicateEvent = errors.New("duplicate event")

// applyPointsPack credits a consumable purchase. The store transaction
// ID is the order number; an existing order with that number means a
// prior delivery (under a different event_id) already granted the
// points, so the event is logged but nothing else happens.
func (s *BillingService) applyPointsPack(tx *gorm.DB, userID int64, event *dto.RevenueCatEvent, pack *catalog.PointsPack, result *IngestResult) error {
	if event.TransactionID == "" {
		return fmt.Errorf("%w: points pack event without transaction_id", ErrInvalidEvent)
	}

	var existing models.Order
	err := tx.Where("order_no = ?", event.TransactionID).First(&existing).Error
	if err == nil {
		*result = IngestDuplicate
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup order: %w", err)
	}

	txID := event.TransactionID
	channel := event.Store
	order := models.Order{
		UserID:         userID,
		OrderNo:        event.TransactionID,
		ProductType:    models.ProductTypePointsPack,
		ProductID:      event.ProductID,
		Quantity:       1,
		Amount:         decimal.NewFromFloat(event.Price),
		Currency:       event.Currency,
		Status:         models.OrderStatusPaid,
		TransactionID:  &txID,
		PaymentChannel: nullableStr(channel),
	}
	if err := tx.Create(&order).Error; err != nil {
		if database.IsUniqueViolation(err) {
			*result = IngestDuplicate
			return nil
		}
		return fmt.Errorf("create order: %w", err)
	}

	_, err = ledger.ChangeBalance(tx, userID, pack.Points, models.PointTransactionPurchase, ledger.Correlation{
		OrderNo: event.TransactionID,
	})
	if err != nil {
		return fmt.Errorf("credit points pack: %w", err)
	}
	return nil
}

// applyVip upserts the (user, product) subscription row and recomputes
// the user's effective VIP state from the event.
func (s *BillingService) applyVip(tx *gorm.DB, userID int64, event *dto.RevenueCatEvent, vip *catalog.VipProduct) error {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown user %d", ErrInvalidEvent, userID)
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	status := subscriptionStatus(event.Type)
	periodStart := msToTime(event.PurchasedAtMs)
	periodEnd := msToTime(event.ExpirationAtMs)

	var sub models.Subscription
	err := tx.Where("user_id = ? AND product_id = ?", userID, event.ProductID).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = models.Subscription{
			UserID:             userID,
			ProductID:          event.ProductID,
			PlanType:           vip.PlanType,
			Status:             status,
			WillRenew:          status == models.SubscriptionStatusActive,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
		}
		if status == models.SubscriptionStatusCancelled {
			now := time.Now()
			sub.CancelledAt = &now
		}
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup subscription: %w", err)
	default:
		updates := map[string]interface{}{
			"plan_type":            vip.PlanType,
			"status":               status,
			"will_renew":           status == models.SubscriptionStatusActive,
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
		}
		if status == models.SubscriptionStatusCancelled && sub.CancelledAt == nil {
			updates["cancelled_at"] = time.Now()
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
	}

	isVip := EffectiveVip(status, periodEnd, time.Now())
	userUpdates := map[string]interface{}{
		"is_vip":          isVip,
		"vip_type":        vip.PlanType,
		"vip_expire_time": periodEnd,
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(userUpdates).Error; err != nil {
		return fmt.Errorf("update user vip state: %w", err)
	}
	return nil
}

// subscriptionStatus maps an event type to a subscription status. A
// cancellation retains access through period end; expiration ends it.
func subscriptionStatus(eventType string) models.SubscriptionStatus {
	switch eventType {
	case "CANCELLATION", "BILLING_ISSUE", "SUBSCRIPTION_PAUSED":
		return models.SubscriptionStatusCancelled
	case "EXPIRATION":
		return models.SubscriptionStatusExpired
	default:
		return models.SubscriptionStatusActive
	}
}

// EffectiveVip decides the user's VIP flag. No expiry timestamp means
// a lifetime grant.
func EffectiveVip(status models.SubscriptionStatus, expireAt *time.Time, now time.Time) bool {
	if status == models.SubscriptionStatusExpired {
		return false
	}
	if expireAt == nil {
		return true
	}
	return expireAt.After(now)
}

func msToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
	return &t
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
