package metrics

import "expvar"

var (
	Ticks              = expvar.NewInt("ticks_total")
	TickSkips          = expvar.NewInt("tick_skips_total")
	ExtremesFallbacks  = expvar.NewInt("extremes_fallbacks_total")
	AnchorRollovers    = expvar.NewInt("anchor_rollovers_total")
	StageNotifications = expvar.NewInt("stage_notifications_total")
	OrdersPlaced       = expvar.NewInt("orders_placed_total")
	OrdersClosed       = expvar.NewInt("orders_closed_total")
	OrderErrors        = expvar.NewInt("order_errors_total")
	NotifyDropped      = expvar.NewInt("notify_dropped_total")
)
