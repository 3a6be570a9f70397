package processor

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"botfleet/internal/delivery"
	"botfleet/internal/event"
	"botfleet/internal/i18n"
	"botfleet/internal/models"
	"botfleet/internal/storage"
)

// Deep-link parameters that are bot commands in disguise and must never be
// treated as referral tags.
var reservedTags = map[string]struct{}{
	"top": {}, "wallet": {}, "partners": {}, "earnings": {},
	"share": {}, "info": {}, "help": {}, "start": {}, "settings": {},
}

// rewardPayloadPrefix marks invoices this bot issued for reward unlocks; the
// payment pre-check approves nothing else.
const rewardPayloadPrefix = "reward-unlock"

type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) delivery.Result
}

type UserDirectory interface {
	GetOrCreate(ctx context.Context, tenantID uint, externalID int64, profile storage.Profile) (*models.User, bool, error)
	ByReferralCode(ctx context.Context, tenantID uint, code string) (*models.User, error)
}

type RewardManager interface {
	RecountAndUpdate(ctx context.Context, tenantID uint, inviterExternalID int64) (models.RewardState, error)
	UnlockByPayment(ctx context.Context, tenantID uint, externalID int64) (models.RewardState, error)
}

type EventAppender interface {
	Append(ctx context.Context, ev *models.ReferralEvent) (string, error)
}

type PaymentRecorder interface {
	Record(ctx context.Context, p *models.Payment) error
}

type Handlers struct {
	deliver         Deliverer
	users           UserDirectory
	rewards         RewardManager
	events          EventAppender
	payments        PaymentRecorder
	translate       *i18n.Translator
	requiredInvites int
}

func NewHandlers(deliver Deliverer, users UserDirectory, rewards RewardManager,
	events EventAppender, payments PaymentRecorder, translate *i18n.Translator,
	requiredInvites int) *Handlers {
	return &Handlers{
		deliver:         deliver,
		users:           users,
		rewards:         rewards,
		events:          events,
		payments:        payments,
		translate:       translate,
		requiredInvites: requiredInvites,
	}
}

func (h *Handlers) Process(ctx context.Context, ev event.Inbound) error {
	switch ev.Kind {
	case event.KindMessage:
		return h.handleMessage(ctx, ev)
	case event.KindCallback:
		return h.handleCallback(ctx, ev)
	case event.KindPrecheckout:
		return h.handlePrecheckout(ctx, ev)
	case event.KindPayment:
		return h.handlePayment(ctx, ev)
	}
	log.Printf("Ignoring event of unknown kind %q for tenant %d", ev.Kind, ev.TenantID)
	return nil
}

func (h *Handlers) handleMessage(ctx context.Context, ev event.Inbound) error {
	user, created, err := h.users.GetOrCreate(ctx, ev.TenantID, ev.ActorExternalID, storage.Profile{
		Username:     ev.ActorUsername,
		FirstName:    ev.ActorFirstName,
		LanguageCode: ev.ActorLanguage,
	})
	if err != nil {
		return err
	}

	command, arg := parseCommand(ev.Text)
	switch command {
	case "/start":
		return h.handleStart(ctx, ev, user, created, arg)
	case "/help":
		h.sendText(ctx, ev, h.translate.Translate("help.body", ev.Lang(), nil))
		return nil
	case "/partners":
		h.sendPartners(ctx, ev, user)
		return nil
	}

	// Free-form chat goes to the AI layer, which is outside this pipeline.
	log.Printf("Ignoring non-command message from actor %d tenant %d", ev.ActorExternalID, ev.TenantID)
	return nil
}

// handleStart processes first contact with a possible referral tag. The order
// is deliberate: log the attribution event, send the user-visible reply, then
// recount the inviter regardless of whether the reply went out — a failing
// outbound call must never block the business side effect, and the count
// update must never delay the reply.
func (h *Handlers) handleStart(ctx context.Context, ev event.Inbound, user *models.User, created bool, tag string) error {
	var inviterID int64

	if tag != "" && created {
		inviter := h.resolveInviter(ctx, ev, user, tag)

		subject := user.TelegramID
		rev := models.ReferralEvent{
			TenantID:          ev.TenantID,
			ActorExternalID:   user.TelegramID,
			SubjectExternalID: &subject,
			ReferralTag:       tag,
			Kind:              models.EventKindStart,
		}
		if inviter != nil {
			rev.InviterExternalID = inviter.TelegramID
			rev.IsReferral = true
			inviterID = inviter.TelegramID
		}
		if _, err := h.events.Append(ctx, &rev); err != nil {
			// The event is lost; the platform's redelivery gives the
			// next chance to log it.
			log.Printf("Failed to append referral event for actor %d: %v", user.TelegramID, err)
		}
	}

	greetingKey := "start.greeting"
	if inviterID != 0 {
		greetingKey = "start.referred"
	}
	text := h.translate.Translate(greetingKey, ev.Lang(), map[string]string{
		"name":     ev.ActorFirstName,
		"required": strconv.Itoa(h.requiredInvites),
	})
	h.send(ctx, ev, telego.SendMessageParams{
		ChatID:      tu.ID(ev.ChatID),
		Text:        text,
		ReplyMarkup: h.mainMenu(ev.Lang()),
	})

	if inviterID != 0 {
		st, err := h.rewards.RecountAndUpdate(ctx, ev.TenantID, inviterID)
		if err != nil {
			// Self-healing: the next event for this inviter recounts
			// from the full log.
			log.Printf("Recount skipped for inviter %d: %v", inviterID, err)
			return nil
		}
		if st.Open() && st.UnlockMethod == models.UnlockInvites && st.TotalInvited == h.requiredInvites {
			h.sendTo(ctx, ev, inviterID, h.translate.Translate("reward.unlocked", ev.TenantLang, map[string]string{
				"invited": strconv.Itoa(st.TotalInvited),
			}))
		}
	}
	return nil
}

// resolveInviter maps a raw deep-link tag to an inviter, excluding reserved
// words and self-invites. A tag that resolves to nothing is logged and the
// event is still recorded as non-referral.
func (h *Handlers) resolveInviter(ctx context.Context, ev event.Inbound, user *models.User, tag string) *models.User {
	if _, reserved := reservedTags[tag]; reserved {
		return nil
	}
	inviter, err := h.users.ByReferralCode(ctx, ev.TenantID, tag)
	if err != nil {
		log.Printf("Inviter resolution failed for tag %q: %v", tag, err)
		return nil
	}
	if inviter == nil {
		log.Printf("Unknown referral tag %q for tenant %d", tag, ev.TenantID)
		return nil
	}
	if inviter.TelegramID == user.TelegramID {
		return nil
	}
	return inviter
}

func (h *Handlers) handleCallback(ctx context.Context, ev event.Inbound) error {
	// Acknowledge first so the client stops its spinner. A fatal 4xx here
	// means the interaction was already answered on a redelivered update;
	// that is success, not failure.
	res := h.deliver.Deliver(ctx, delivery.Request{
		Token:   ev.BotToken,
		Method:  "answerCallbackQuery",
		Payload: telego.AnswerCallbackQueryParams{CallbackQueryID: ev.CallbackID},
	})
	if !res.OK && res.Class != delivery.ClassFatal {
		log.Printf("Callback ack failed for %s: %v", ev.CallbackID, res.Err)
	}

	user, _, err := h.users.GetOrCreate(ctx, ev.TenantID, ev.ActorExternalID, storage.Profile{
		Username:     ev.ActorUsername,
		FirstName:    ev.ActorFirstName,
		LanguageCode: ev.ActorLanguage,
	})
	if err != nil {
		return err
	}

	switch ev.CallbackData {
	case "profile":
		h.sendText(ctx, ev, h.translate.Translate("profile.body", ev.Lang(), map[string]string{
			"id":      strconv.FormatInt(user.TelegramID, 10),
			"invited": strconv.Itoa(user.TotalInvited),
			"status":  user.RewardStatus,
		}))
	case "partners":
		h.sendPartners(ctx, ev, user)
	default:
		log.Printf("Unknown callback data %q from actor %d", ev.CallbackData, ev.ActorExternalID)
	}
	return nil
}

// handlePrecheckout approves or rejects deterministically by payload prefix.
// A wrong decision here would be a correctness bug, not a transient failure,
// so the answer is attempted exactly once.
func (h *Handlers) handlePrecheckout(ctx context.Context, ev event.Inbound) error {
	approved := strings.HasPrefix(ev.InvoicePayload, rewardPayloadPrefix)
	params := telego.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: ev.PrecheckoutID,
		Ok:                 approved,
	}
	if !approved {
		params.ErrorMessage = h.translate.Translate("precheckout.rejected", ev.Lang(), nil)
	}

	res := h.deliver.Deliver(ctx, delivery.Request{
		Token:       ev.BotToken,
		Method:      "answerPreCheckoutQuery",
		Payload:     params,
		MaxAttempts: 1,
	})
	if !res.OK {
		log.Printf("Pre-checkout answer failed for %s: %v", ev.PrecheckoutID, res.Err)
	}
	return nil
}

// handlePayment settles a completed payment: record it, commit the unlock,
// then confirm. The unlock is committed before the confirmation is attempted;
// a lost confirmation message costs nothing but the message.
func (h *Handlers) handlePayment(ctx context.Context, ev event.Inbound) error {
	user, _, err := h.users.GetOrCreate(ctx, ev.TenantID, ev.ActorExternalID, storage.Profile{
		Username:     ev.ActorUsername,
		FirstName:    ev.ActorFirstName,
		LanguageCode: ev.ActorLanguage,
	})
	if err != nil {
		return err
	}

	if err := h.payments.Record(ctx, &models.Payment{
		TenantID:         ev.TenantID,
		UserID:           user.ID,
		Amount:           ev.Amount,
		Currency:         ev.Currency,
		InvoicePayload:   ev.InvoicePayload,
		TelegramChargeID: ev.ChargeID,
		Status:           "succeeded",
	}); err != nil {
		log.Printf("Failed to record payment for actor %d: %v", ev.ActorExternalID, err)
	}

	if _, err := h.rewards.UnlockByPayment(ctx, ev.TenantID, ev.ActorExternalID); err != nil {
		// Without the committed unlock there is nothing to confirm;
		// platform redelivery retries the whole settlement.
		return fmt.Errorf("payment unlock failed for actor %d: %w", ev.ActorExternalID, err)
	}

	if _, err := h.events.Append(ctx, &models.ReferralEvent{
		TenantID:        ev.TenantID,
		ActorExternalID: ev.ActorExternalID,
		Kind:            models.EventKindPayment,
	}); err != nil {
		log.Printf("Failed to append payment event for actor %d: %v", ev.ActorExternalID, err)
	}

	h.sendText(ctx, ev, h.translate.Translate("payment.confirmed", ev.Lang(), nil))
	return nil
}

func (h *Handlers) sendPartners(ctx context.Context, ev event.Inbound, user *models.User) {
	h.sendText(ctx, ev, h.translate.Translate("partners.body", ev.Lang(), map[string]string{
		"invited": strconv.Itoa(user.TotalInvited),
		"status":  user.RewardStatus,
		"code":    user.ReferralCode,
	}))
}

func (h *Handlers) mainMenu(lang string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(h.translate.Translate("button.profile", lang, nil)).WithCallbackData("profile"),
			tu.InlineKeyboardButton(h.translate.Translate("button.partners", lang, nil)).WithCallbackData("partners"),
		),
	)
}

func (h *Handlers) sendText(ctx context.Context, ev event.Inbound, text string) {
	h.send(ctx, ev, telego.SendMessageParams{
		ChatID: tu.ID(ev.ChatID),
		Text:   text,
	})
}

func (h *Handlers) sendTo(ctx context.Context, ev event.Inbound, chatID int64, text string) {
	h.send(ctx, ev, telego.SendMessageParams{
		ChatID: tu.ID(chatID),
		Text:   text,
	})
}

// send attempts one outbound message. Delivery failure is terminal here: the
// user simply does not get this reply, and business state is unaffected.
func (h *Handlers) send(ctx context.Context, ev event.Inbound, params telego.SendMessageParams) {
	res := h.deliver.Deliver(ctx, delivery.Request{
		Token:   ev.BotToken,
		Method:  "sendMessage",
		Payload: params,
	})
	if !res.OK {
		log.Printf("Reply delivery failed tenant=%d actor=%d class=%s: %v",
			ev.TenantID, ev.ActorExternalID, res.Class, res.Err)
	}
}

// parseCommand splits "/start ref_42" into the command and its first
// argument, tolerating the "/start@botname" form.
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	fields := strings.Fields(text)
	command := fields[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	return command, arg
}
