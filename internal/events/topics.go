package events

const (
	TopicEmail             = "email.notifications"
	TopicInventoryRollback = "inventory.rollback"
	TopicPaymentRefund     = "payment.refund"
	TopicProductUpdates    = "warehouse.product-updates"
)

// DLQ returns the dead-letter topic for a source topic. Messages land
// there after the consumer's retry budget is exhausted.
func DLQ(topic string) string { return topic + ".dlq" }
