package dto

// CancelRequest carries the optional operator-facing cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// ReservationListQuery binds the ledger list filters. From and To are
// RFC3339 timestamps; the window filter is half-open like the ledger itself.
type ReservationListQuery struct {
	ResourceKind string `form:"resource_kind" binding:"omitempty,oneof=CAGE SLOT"`
	ResourceID   string `form:"resource_id"`
	CustomerID   string `form:"customer_id"`
	PetID        string `form:"pet_id"`
	Status       string `form:"status"`
	From         string `form:"from"`
	To           string `form:"to"`
	Page         int    `form:"page" binding:"min=0"`
	PageSize     int    `form:"page_size" binding:"min=0,max=100"`
}
