package domain

// NotificationKind names one of the ledger's outbound notifications.
type NotificationKind string

const (
	NotificationPolicyPurchased NotificationKind = "policy_purchased"
	NotificationDeliveryUpdated NotificationKind = "delivery_updated"
	NotificationDelayStatusSet  NotificationKind = "delay_status_set"
	NotificationClaimed         NotificationKind = "claimed"
)

// Notification is emitted after the state change that caused it. Only the
// fields relevant to Kind are populated.
type Notification struct {
	Kind          NotificationKind
	PolicyID      uint64
	Insured       Address
	Delivered     bool
	Delayed       bool
	ActualArrival uint64
	DaysClaimed   uint64
	Amount        Amount
}

func PolicyPurchased(id uint64, insured Address) Notification {
	return Notification{Kind: NotificationPolicyPurchased, PolicyID: id, Insured: insured}
}

func DeliveryUpdated(id uint64, delivered bool, actualArrival uint64) Notification {
	return Notification{Kind: NotificationDeliveryUpdated, PolicyID: id, Delivered: delivered, ActualArrival: actualArrival}
}

func DelayStatusSet(id uint64, delayed bool) Notification {
	return Notification{Kind: NotificationDelayStatusSet, PolicyID: id, Delayed: delayed}
}

func Claimed(id uint64, insured Address, days uint64, amount Amount) Notification {
	return Notification{Kind: NotificationClaimed, PolicyID: id, Insured: insured, DaysClaimed: days, Amount: amount}
}
