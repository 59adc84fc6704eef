package inventory

// Wire types for the synchronous stock RPC. The warehouse handler and
// the store-side client share these, so both ends agree by construction.

type CheckStockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CheckStockResponse struct {
	Available      bool `json:"available"`
	TotalAvailable int  `json:"totalAvailable"`
}

type ReserveStockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	OrderID   string `json:"orderId"`
}

type ReserveStockResponse struct {
	Success                bool     `json:"success"`
	Message                string   `json:"message"`
	ReservedFromWarehouses []string `json:"reservedFromWarehouses"`
}

type CommitStockRequest struct {
	OrderID string `json:"orderId"`
}

// DeliveryPackage is one shipment leg: everything the delivery tracker
// needs to pick the goods up from one warehouse.
type DeliveryPackage struct {
	WarehouseAddress string `json:"warehouseAddress"`
	ProductID        string `json:"productId"`
	Quantity         int    `json:"quantity"`
}

type CommitStockResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	DeliveryPackages []DeliveryPackage `json:"deliveryPackages"`
}

type RollbackStockRequest struct {
	OrderID string `json:"orderId"`
}

type RollbackStockResponse struct {
	RolledBack bool   `json:"rolledBack"`
	Message    string `json:"message"`
}

const msgNoReservation = "No reservation found for order"
