package models

// PaymentMethod is how the buyer pays for an order
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "Online"
)

// IsValid reports whether m is a supported payment method
func (m PaymentMethod) IsValid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

// PaymentStatus tracks settlement of an order
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// InitialStatus is the payment status assigned at placement: online payments
// are settled up front, cash on delivery is pending.
func (m PaymentMethod) InitialStatus() PaymentStatus {
	if m == PaymentOnline {
		return PaymentCompleted
	}
	return PaymentPending
}
