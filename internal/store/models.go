package store

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderStatus mirrors the order_status enum.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PaymentStatus mirrors the payment_status enum.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// PromoKind enumerates promocode discount kinds.
type PromoKind string

const (
	PromoKindFixed   PromoKind = "fixed"
	PromoKindPercent PromoKind = "percent"
)

// Product is the catalog parent of purchasable SKUs.
type Product struct {
	ID        pgtype.UUID
	Title     string
	Slug      string
	ImageURL  pgtype.Text
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
	DeletedAt pgtype.Timestamptz
}

// ProductSku is a purchasable variant with integer minor-unit pricing.
type ProductSku struct {
	ID        pgtype.UUID
	ProductID pgtype.UUID
	Sku       string
	Price     int64
	SalePrice pgtype.Int8
	Quantity  int32
	Attrs     []byte
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// Promocode carries the redemption rule row.
type Promocode struct {
	ID            pgtype.UUID
	Code          string
	Kind          PromoKind
	DiscountValue int64
	ValidFrom     pgtype.Timestamptz
	ValidTo       pgtype.Timestamptz
	UsageLimit    int32
	UsageCount    int32
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// Cart holds one row per user.
type Cart struct {
	ID          pgtype.UUID
	UserID      pgtype.UUID
	PromocodeID pgtype.UUID
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// CartItem is a (cart, sku) pair; unique per cart.
type CartItem struct {
	ID           pgtype.UUID
	CartID       pgtype.UUID
	ProductSkuID pgtype.UUID
	Quantity     int32
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// CartItemDetail joins a cart line with current SKU pricing and stock.
type CartItemDetail struct {
	ItemID       pgtype.UUID
	ProductSkuID pgtype.UUID
	Quantity     int32
	Price        int64
	SalePrice    pgtype.Int8
	Stock        int32
	ProductTitle string
	ImageURL     pgtype.Text
}

// Order is the immutable checkout snapshot; only status mutates afterwards.
type Order struct {
	ID              pgtype.UUID
	Number          string
	UserID          pgtype.UUID
	Status          OrderStatus
	Currency        string
	Total           int64
	PromocodeID     pgtype.UUID
	BillingAddress  []byte
	DeliveryAddress []byte
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// OrderItem snapshots one purchased line.
type OrderItem struct {
	ID           pgtype.UUID
	OrderID      pgtype.UUID
	ProductSkuID pgtype.UUID
	Quantity     int32
	UnitPrice    int64
	CreatedAt    pgtype.Timestamptz
}

// Payment tracks one gateway checkout attempt.
type Payment struct {
	ID          pgtype.UUID
	OrderID     pgtype.UUID
	SessionID   string
	Status      PaymentStatus
	Amount      int64
	Currency    string
	RedirectURL pgtype.Text
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// DomainEvent is an order lifecycle audit record.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
