package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/models"
	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrUnknownProduct = errors.New("unknown product")
)

// OrderService records client-initiated purchases. An order created
// here is pending; settlement arrives later through the billing
// webhook, which writes its own paid order keyed by transaction id.
type OrderService struct {
	db      *gorm.DB
	catalog *catalog.Catalog
}

func NewOrderService(db *gorm.DB, cat *catalog.Catalog) *OrderService {
	return &OrderService{db: db, catalog: cat}
}

func (s *OrderService) Create(userID int64, req *dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	kind, _, _ := s.catalog.Classify(req.ProductID)
	if kind == catalog.ProductUnknown {
		return nil, ErrUnknownProduct
	}
	productType := models.ProductTypePointsPack
	if kind == catalog.ProductVip {
		productType = models.ProductTypeSubscription
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	order := models.Order{
		UserID:      userID,
		OrderNo:     fmt.Sprintf("ORD%d", snowflake.Generate()),
		ProductType: productType,
		ProductID:   req.ProductID,
		Quantity:    quantity,
		Amount:      decimal.Zero,
		Status:      models.OrderStatusPending,
	}
	if err := s.db.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	resp := orderResponse(&order)
	return &resp, nil
}

func (s *OrderService) Get(userID int64, orderNo string) (*dto.OrderResponse, error) {
	var order models.Order
	err := s.db.Where("order_no = ? AND user_id = ?", orderNo, userID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	resp := orderResponse(&order)
	return &resp, nil
}

func (s *OrderService) List(userID int64, offset, limit int) (*dto.OrderListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, orderResponse(&orders[i]))
	}
	return &dto.OrderListResponse{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

func orderResponse(order *models.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:          order.ID,
		OrderNo:     order.OrderNo,
		ProductType: string(order.ProductType),
		ProductID:   order.ProductID,
		Quantity:    order.Quantity,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
	}
}
