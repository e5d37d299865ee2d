package api

// REST/WebSocket wire types. Addresses and venue ids travel as hex strings.

type OrderInfo struct {
	ID             uint64 `json:"id"`
	Maker          string `json:"maker"`
	VenueID        string `json:"venueId"`
	SellsAssetZero bool   `json:"sellsAssetZero"`
	SellAsset      string `json:"sellAsset"`
	BuyAsset       string `json:"buyAsset"`
	AmountIn       uint64 `json:"amountIn"`
	MinAmountOut   uint64 `json:"minAmountOut"`
	Expiry         int64  `json:"expiry"`
	Active         bool   `json:"active"`
	Origin         string `json:"origin"`
	CreatedAt      int64  `json:"createdAt"`
}

type VenueInfo struct {
	ID          string `json:"id"`
	Asset0      string `json:"asset0"`
	Asset1      string `json:"asset1"`
	FeeBps      int64  `json:"feeBps"`
	TickSpacing int64  `json:"tickSpacing"`
	LiveOrders  int    `json:"liveOrders"`
}

type TriggerInfo struct {
	ID         uint64 `json:"id"`
	OrderID    uint64 `json:"orderId"`
	Maker      string `json:"maker"`
	Direction  string `json:"direction"`
	LimitPrice uint64 `json:"limitPrice"`
	Active     bool   `json:"active"`
	CreatedAt  int64  `json:"createdAt"`
	FiredAt    int64  `json:"firedAt,omitempty"`
}

type BalanceInfo struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  uint64 `json:"amount"`
}

// FillEvent is broadcast on the "fills" channel after settlement.
type FillEvent struct {
	Type          string `json:"type"` // "fill"
	OrderID       uint64 `json:"orderId"`
	Maker         string `json:"maker"`
	Counterparty  string `json:"counterparty"`
	AssetToMaker  string `json:"assetToMaker"`
	AmountToMaker uint64 `json:"amountToMaker"`
	AssetToTaker  string `json:"assetToTaker"`
	AmountToTaker uint64 `json:"amountToTaker"`
	Timestamp     int64  `json:"timestamp"`
}

// TriggerEvent is broadcast on the "triggers" channel when a trigger fires.
type TriggerEvent struct {
	Type      string `json:"type"` // "trigger"
	TriggerID uint64 `json:"triggerId"`
	OrderID   uint64 `json:"orderId"`
	Price     uint64 `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
