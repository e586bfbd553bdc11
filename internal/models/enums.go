package models

// VipType is the subscription plan a user can hold.
type VipType string

const (
	VipTypeWeekly   VipType = "weekly"
	VipTypeLifetime VipType = "lifetime"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

// ProductType distinguishes what an order bought.
type ProductType string

const (
	ProductTypePointsPack   ProductType = "points_pack"
	ProductTypeSubscription ProductType = "subscription"
)

// PointTransactionType is the reason a balance changed.
type PointTransactionType string

const (
	PointTransactionConsume  PointTransactionType = "consume"
	PointTransactionPurchase PointTransactionType = "purchase"
	PointTransactionReward   PointTransactionType = "reward"
)

// EmojiTaskStatus is the processing state of a generation task.
// pending -> processing -> completed | failed; completed and failed are
// terminal.
type EmojiTaskStatus string

const (
	EmojiTaskPending    EmojiTaskStatus = "pending"
	EmojiTaskProcessing EmojiTaskStatus = "processing"
	EmojiTaskCompleted  EmojiTaskStatus = "completed"
	EmojiTaskFailed     EmojiTaskStatus = "failed"
)

// Terminal reports whether no further automatic transition can occur.
func (s EmojiTaskStatus) Terminal() bool {
	return s == EmojiTaskCompleted || s == EmojiTaskFailed
}
