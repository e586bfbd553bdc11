package dto

import "time"

type SubscriptionStatusResponse struct {
	IsVip         bool       `json:"is_vip"`
	VipType       *string    `json:"vip_type"`
	VipExpireTime *time.Time `json:"vip_expire_time"`
	WillRenew     bool       `json:"will_renew"`
	ProductID     *string    `json:"product_id,omitempty"`
}
