package update

// Event types understood by the hosted consumers.
const (
	TypeStockUpdate       = "stock_update"
	TypePromotionUpdate   = "promotion_update"
	TypeOrderCreated      = "order_created"
	TypeOrderStatusUpdate = "order_status_update"
	TypeOrderCompleted    = "order_completed"
)

// Event is implemented by every update payload through Header.
type Event interface {
	EventType() string
	ID() string
	setID(id string)
}

// Header holds the fields common to every event. Embedded fields are flattened on the wire.
type Header struct {
	Type    string `json:"type"`
	EventID string `json:"eventId"`
}

func (h *Header) EventType() string { return h.Type }
func (h *Header) ID() string        { return h.EventID }
func (h *Header) setID(id string)   { h.EventID = id }

// StockUpdate reports a new inventory level for a catalog item.
type StockUpdate struct {
	Header
	ItemID    string `json:"itemId"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

// NewStockUpdate builds a stock_update event.
func NewStockUpdate(itemID string, quantity int) *StockUpdate {
	return &StockUpdate{
		Header:    Header{Type: TypeStockUpdate},
		ItemID:    itemID,
		Quantity:  quantity,
		Available: quantity > 0,
	}
}

// PromotionUpdate activates or deactivates a promotion.
// With ItemID set it targets one catalog item; otherwise it is a general promotion.
type PromotionUpdate struct {
	Header
	PromoID         string  `json:"promoId"`
	ItemID          string  `json:"itemId,omitempty"`
	Active          bool    `json:"active"`
	Title           string  `json:"title,omitempty"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
}

// NewPromotionUpdate builds a promotion_update event.
func NewPromotionUpdate(promoID, itemID string, active bool) *PromotionUpdate {
	return &PromotionUpdate{
		Header:  Header{Type: TypePromotionUpdate},
		PromoID: promoID,
		ItemID:  itemID,
		Active:  active,
	}
}

// OrderCreated announces a new order.
type OrderCreated struct {
	Header
	OrderID    string  `json:"orderId"`
	CustomerID string  `json:"customerId,omitempty"`
	Total      float64 `json:"total"`
	ItemCount  int     `json:"itemCount"`
}

// NewOrderCreated builds an order_created event.
func NewOrderCreated(orderID, customerID string, total float64, itemCount int) *OrderCreated {
	return &OrderCreated{
		Header:     Header{Type: TypeOrderCreated},
		OrderID:    orderID,
		CustomerID: customerID,
		Total:      total,
		ItemCount:  itemCount,
	}
}

// OrderStatusUpdate reports a Kanban transition of an order.
type OrderStatusUpdate struct {
	Header
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	CustomerPhone string `json:"customerPhone,omitempty"`
}

// NewOrderStatusUpdate builds an order_status_update event.
func NewOrderStatusUpdate(orderID, status, phone string) *OrderStatusUpdate {
	return &OrderStatusUpdate{
		Header:        Header{Type: TypeOrderStatusUpdate},
		OrderID:       orderID,
		Status:        status,
		CustomerPhone: phone,
	}
}

// OrderCompleted is sent once an order is delivered.
type OrderCompleted struct {
	Header
	OrderID    string  `json:"orderId"`
	CustomerID string  `json:"customerId"`
	Total      float64 `json:"total"`
}

// NewOrderCompleted builds an order_completed event.
func NewOrderCompleted(orderID, customerID string, total float64) *OrderCompleted {
	return &OrderCompleted{
		Header:     Header{Type: TypeOrderCompleted},
		OrderID:    orderID,
		CustomerID: customerID,
		Total:      total,
	}
}
