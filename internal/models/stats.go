package models

type SystemStats struct {
	TotalUsers   int `json:"total_users"`
	Admins       int `json:"admins"`
	RegularUsers int `json:"regular_users"`
	VipUsers     int `json:"vip_users"`
	FreeUsers    int `json:"free_users"`

	PendingOrders   int `json:"pending_orders"`
	CompletedOrders int `json:"completed_orders"`
	RejectedOrders  int `json:"rejected_orders"`
	PendingRequests int `json:"pending_requests"`

	// Суммарно израсходовано бесплатных единиц по всем пользователям
	TotalUsedUnits int `json:"total_used_units"`

	VipPct  int `json:"vip_pct"`
	FreePct int `json:"free_pct"`
}
