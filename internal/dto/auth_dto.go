package dto

import "time"

type LoginRequest struct {
	DeviceID string `json:"device_id"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID            int64      `json:"id,string"`
	DeviceID      string     `json:"device_id"`
	Nickname      *string    `json:"nickname"`
	IsVip         bool       `json:"is_vip"`
	VipType       *string    `json:"vip_type"`
	VipExpireTime *time.Time `json:"vip_expire_time"`
	CreatedAt     time.Time  `json:"created_at"`
}

type UpdateProfileRequest struct {
	Nickname string `json:"nickname"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Redis     string `json:"redis"`
}
