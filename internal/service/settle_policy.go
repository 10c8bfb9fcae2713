package service

import "medipay/internal/model"

// SettlePolicy decides at which status each order kind gets its invoice.
// Medicine, lab test and home collection orders invoice as soon as money
// is received; appointment-like kinds can be held until admin sign-off.
type SettlePolicy struct {
	// AppointmentOn is StatusReceived or StatusVerified.
	AppointmentOn model.PaymentStatus
}

// NewSettlePolicy builds a policy from the configured value, defaulting
// to verified for anything unrecognized.
func NewSettlePolicy(appointmentOn string) SettlePolicy {
	if appointmentOn == string(model.StatusReceived) {
		return SettlePolicy{AppointmentOn: model.StatusReceived}
	}
	return SettlePolicy{AppointmentOn: model.StatusVerified}
}

// GenerateAt returns the status that triggers invoice generation for kind.
func (p SettlePolicy) GenerateAt(kind model.OrderKind) model.PaymentStatus {
	switch kind {
	case model.KindAppointment, model.KindConsultation:
		return p.AppointmentOn
	default:
		return model.StatusReceived
	}
}

// ShouldGenerate reports whether entering status warrants an invoice for
// kind. Generation on received also fires on verified; the generator is
// idempotent, so a second call returns the existing invoice.
func (p SettlePolicy) ShouldGenerate(kind model.OrderKind, status model.PaymentStatus) bool {
	if !status.IsSettled() {
		return false
	}
	return p.GenerateAt(kind) == model.StatusReceived || status == model.StatusVerified
}
