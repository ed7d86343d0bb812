package orders

import "orderflow/internal/store"

// Key layout mirrors a partition/sort pair: the order record sits at the top
// of its partition and items sort under it, so one prefix query returns an
// order's items.
const (
	orderKeyPrefix    = "ORDER#"
	itemKeyPrefix     = "ITEM#"
	customerKeyPrefix = "CUSTOMER#"
	paymentKeyPrefix  = "PAYMENT#"
)

// OrderKey addresses the order record itself.
func OrderKey(orderID string) store.Key {
	pk := orderKeyPrefix + orderID
	return store.Key{Partition: pk, Sort: pk}
}

// ItemKey addresses one item within an order's partition.
func ItemKey(orderID, itemID string) store.Key {
	return store.Key{Partition: orderKeyPrefix + orderID, Sort: itemKeyPrefix + itemID}
}

// CustomerKey addresses the customer's link to an order.
func CustomerKey(customerID, orderID string) store.Key {
	return store.Key{Partition: customerKeyPrefix + customerID, Sort: orderKeyPrefix + orderID}
}

// PaymentKey addresses the payment record.
func PaymentKey(paymentID string) store.Key {
	pk := paymentKeyPrefix + paymentID
	return store.Key{Partition: pk, Sort: pk}
}

// ItemSortPrefix is the sort-key prefix selecting an order's items.
const ItemSortPrefix = itemKeyPrefix
