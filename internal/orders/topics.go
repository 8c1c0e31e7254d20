package orders

import "github.com/google/uuid"

const TopicOrderCreated = "order.created"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID uuid.UUID) []byte { return []byte(orderID.String()) }
