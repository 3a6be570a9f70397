// Package event defines the normalized inbound event passed from the webhook
// gateway to the background processor. The heterogeneous platform payloads
// (messages, button callbacks, payment events) are mapped onto one tagged
// union with a small set of required fields plus an open metadata map.
package event

type Kind string

const (
	KindMessage     Kind = "message"
	KindCallback    Kind = "callback"
	KindPrecheckout Kind = "precheckout"
	KindPayment     Kind = "payment"
)

type Inbound struct {
	Kind Kind

	// Tenant context resolved by the gateway.
	TenantID   uint
	BotToken   string
	TenantLang string

	ActorExternalID int64
	ActorUsername   string
	ActorFirstName  string
	ActorLanguage   string
	ChatID          int64

	// KindMessage
	Text string

	// KindCallback
	CallbackID   string
	CallbackData string

	// KindPrecheckout
	PrecheckoutID string

	// KindPrecheckout and KindPayment
	InvoicePayload string
	Amount         int64
	Currency       string

	// KindPayment
	ChargeID string

	// Platform-specific extras that no handler branches on.
	Meta map[string]string
}

// Lang picks the language for user-facing replies: the actor's own language
// when the platform provides it, the tenant default otherwise.
func (e Inbound) Lang() string {
	if e.ActorLanguage != "" {
		return e.ActorLanguage
	}
	return e.TenantLang
}
