package orders

const (
	TopicOrderPlaced = "order.placed"
	TopicOrderStatus = "order.status"
)

// Partition key = order_id, so the events of one order stay ordered within a
// topic. Placed and status events travel on different topics and may be
// consumed in either order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
