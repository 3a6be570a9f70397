package gateway

import (
	"strconv"

	"github.com/mymmrac/telego"

	"botfleet/internal/event"
	"botfleet/internal/models"
)

// Normalize maps a raw platform update onto the processor's tagged union.
// The second return is false for update kinds this pipeline does not handle
// (edits, channel posts, and the rest of the Bot API surface).
func Normalize(tn *models.Tenant, upd *telego.Update) (event.Inbound, bool) {
	base := event.Inbound{
		TenantID:   tn.ID,
		BotToken:   tn.BotToken,
		TenantLang: tn.Language,
		Meta: map[string]string{
			"update_id": strconv.Itoa(upd.UpdateID),
		},
	}

	switch {
	case upd.PreCheckoutQuery != nil:
		q := upd.PreCheckoutQuery
		base.Kind = event.KindPrecheckout
		setActor(&base, &q.From)
		base.ChatID = q.From.ID
		base.PrecheckoutID = q.ID
		base.InvoicePayload = q.InvoicePayload
		base.Amount = int64(q.TotalAmount)
		base.Currency = q.Currency
		return base, true

	case upd.CallbackQuery != nil:
		cb := upd.CallbackQuery
		base.Kind = event.KindCallback
		setActor(&base, &cb.From)
		// Replies to a button press go to the pressing user's private
		// chat, which shares the user's ID.
		base.ChatID = cb.From.ID
		base.CallbackID = cb.ID
		base.CallbackData = cb.Data
		return base, true

	case upd.Message != nil:
		m := upd.Message
		if m.From == nil {
			return event.Inbound{}, false
		}
		setActor(&base, m.From)
		base.ChatID = m.Chat.ID
		base.Meta["message_id"] = strconv.Itoa(m.MessageID)

		if sp := m.SuccessfulPayment; sp != nil {
			base.Kind = event.KindPayment
			base.InvoicePayload = sp.InvoicePayload
			base.Amount = int64(sp.TotalAmount)
			base.Currency = sp.Currency
			base.ChargeID = sp.TelegramPaymentChargeID
			return base, true
		}

		base.Kind = event.KindMessage
		base.Text = m.Text
		return base, true
	}

	return event.Inbound{}, false
}

func setActor(ev *event.Inbound, u *telego.User) {
	ev.ActorExternalID = u.ID
	ev.ActorUsername = u.Username
	ev.ActorFirstName = u.FirstName
	ev.ActorLanguage = u.LanguageCode
}
