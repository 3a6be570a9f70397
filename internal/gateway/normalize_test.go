package gateway

import (
	"testing"

	"github.com/mymmrac/telego"

	"botfleet/internal/event"
	"botfleet/internal/models"
)

var testTenant = &models.Tenant{ID: 7, BotToken: "tok", Language: "en"}

func TestNormalizeMessage(t *testing.T) {
	t.Parallel()

	upd := telego.Update{
		UpdateID: 11,
		Message: &telego.Message{
			MessageID: 5,
			From:      &telego.User{ID: 42, Username: "ann", FirstName: "Ann", LanguageCode: "ru"},
			Chat:      telego.Chat{ID: 42},
			Text:      "/start ref_100",
		},
	}

	ev, ok := Normalize(testTenant, &upd)
	if !ok {
		t.Fatal("message update must normalize")
	}
	if ev.Kind != event.KindMessage {
		t.Errorf("kind=%s, want message", ev.Kind)
	}
	if ev.TenantID != 7 || ev.BotToken != "tok" {
		t.Errorf("tenant context not carried: %+v", ev)
	}
	if ev.ActorExternalID != 42 || ev.ChatID != 42 || ev.Text != "/start ref_100" {
		t.Errorf("payload fields wrong: %+v", ev)
	}
	if ev.Lang() != "ru" {
		t.Errorf("lang=%s, want actor language", ev.Lang())
	}
	if ev.Meta["update_id"] != "11" || ev.Meta["message_id"] != "5" {
		t.Errorf("meta=%v", ev.Meta)
	}
}

func TestNormalizeCallback(t *testing.T) {
	t.Parallel()

	upd := telego.Update{
		UpdateID: 12,
		CallbackQuery: &telego.CallbackQuery{
			ID:   "cb1",
			From: telego.User{ID: 42, FirstName: "Ann"},
			Data: "profile",
		},
	}

	ev, ok := Normalize(testTenant, &upd)
	if !ok || ev.Kind != event.KindCallback {
		t.Fatalf("got %+v ok=%v, want callback", ev, ok)
	}
	if ev.CallbackID != "cb1" || ev.CallbackData != "profile" {
		t.Errorf("callback fields wrong: %+v", ev)
	}
	if ev.ChatID != 42 {
		t.Errorf("chat=%d, want the pressing user's private chat", ev.ChatID)
	}
}

func TestNormalizePrecheckout(t *testing.T) {
	t.Parallel()

	upd := telego.Update{
		UpdateID: 13,
		PreCheckoutQuery: &telego.PreCheckoutQuery{
			ID:             "pc1",
			From:           telego.User{ID: 42},
			Currency:       "XTR",
			TotalAmount:    250,
			InvoicePayload: "reward-unlock:7",
		},
	}

	ev, ok := Normalize(testTenant, &upd)
	if !ok || ev.Kind != event.KindPrecheckout {
		t.Fatalf("got %+v ok=%v, want precheckout", ev, ok)
	}
	if ev.PrecheckoutID != "pc1" || ev.InvoicePayload != "reward-unlock:7" || ev.Amount != 250 {
		t.Errorf("precheckout fields wrong: %+v", ev)
	}
}

func TestNormalizeSuccessfulPayment(t *testing.T) {
	t.Parallel()

	upd := telego.Update{
		UpdateID: 14,
		Message: &telego.Message{
			From: &telego.User{ID: 42},
			Chat: telego.Chat{ID: 42},
			SuccessfulPayment: &telego.SuccessfulPayment{
				Currency:                "XTR",
				TotalAmount:             250,
				InvoicePayload:          "reward-unlock:7",
				TelegramPaymentChargeID: "ch_1",
			},
		},
	}

	ev, ok := Normalize(testTenant, &upd)
	if !ok || ev.Kind != event.KindPayment {
		t.Fatalf("got %+v ok=%v, want payment", ev, ok)
	}
	if ev.ChargeID != "ch_1" || ev.Amount != 250 || ev.Currency != "XTR" {
		t.Errorf("payment fields wrong: %+v", ev)
	}
}

func TestNormalizeUnsupportedKinds(t *testing.T) {
	t.Parallel()

	cases := []telego.Update{
		{UpdateID: 15},
		{UpdateID: 16, Message: &telego.Message{Chat: telego.Chat{ID: 1}}}, // no sender
	}
	for _, upd := range cases {
		if _, ok := Normalize(testTenant, &upd); ok {
			t.Errorf("update %d must be ignored", upd.UpdateID)
		}
	}
}
