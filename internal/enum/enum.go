package enum

// Payment methods accepted at reception (CHECK constrained in DB). Mixed
// payments carry a component list of the base methods summing to the
// amount due.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
	PaymentMethodCheck    = "check"
	PaymentMethodMixed    = "mixed"
)

// Staff roles (CHECK constrained in DB).
const (
	RoleAdmin     = "admin"
	RoleWaiter    = "waiter"
	RoleKitchen   = "kitchen"
	RoleReception = "reception"
)

// WebSocket channels and the event types pushed on them.
const (
	ChannelOrders = "orders"

	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderReady   = "order.ready"
)
