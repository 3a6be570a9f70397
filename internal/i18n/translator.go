// Package i18n builds user-visible reply text. The catalog is in-memory;
// persistent translation management belongs to the admin layer.
package i18n

import (
	"strings"
)

const DefaultLang = "en"

type Translator struct {
	catalog  map[string]map[string]string
	fallback string
}

func NewTranslator() *Translator {
	return &Translator{
		catalog:  defaultCatalog,
		fallback: DefaultLang,
	}
}

// Translate renders a catalog entry for a language, substituting {var}
// placeholders. Unknown languages fall back to the default; unknown keys
// render as the key itself so a missing entry is visible, not silent.
func (t *Translator) Translate(key, lang string, vars map[string]string) string {
	msg := t.lookup(key, lang)
	if msg == "" {
		return key
	}
	if len(vars) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (t *Translator) lookup(key, lang string) string {
	if msgs, ok := t.catalog[lang]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if lang != t.fallback {
		if msg, ok := t.catalog[t.fallback][key]; ok {
			return msg
		}
	}
	return ""
}

var defaultCatalog = map[string]map[string]string{
	"en": {
		"start.greeting":       "Hi, {name}! 👋\n\nInvite {required} friends to unlock premium features, or buy access directly.",
		"start.referred":       "Hi, {name}! 👋\n\nYou joined via an invite link. Invite {required} friends yourself to unlock premium features.",
		"help.body":            "Available commands:\n/start — main menu\n/help — this message\n/partners — your invite stats and share link",
		"partners.body":        "🤝 Partner program\n\nInvited: {invited}\nReward: {status}\n\nYour share code:\n{code}",
		"profile.body":         "👤 Profile\n\nID: {id}\nInvited: {invited}\nReward: {status}",
		"reward.unlocked":      "🎉 You invited {invited} friends — premium features are now unlocked!",
		"payment.confirmed":    "✅ Payment received. Premium features are unlocked. Enjoy!",
		"precheckout.rejected": "This purchase is no longer available.",
		"button.profile":       "👤 Profile",
		"button.partners":      "🤝 Invite friends",
	},
	"ru": {
		"start.greeting":       "Привет, {name}! 👋\n\nПригласи {required} друзей, чтобы открыть премиум, или купи доступ напрямую.",
		"start.referred":       "Привет, {name}! 👋\n\nТы пришёл по приглашению. Пригласи {required} друзей сам, чтобы открыть премиум.",
		"help.body":            "Команды:\n/start — главное меню\n/help — это сообщение\n/partners — твоя статистика приглашений",
		"partners.body":        "🤝 Партнёрская программа\n\nПриглашено: {invited}\nНаграда: {status}\n\nТвой код:\n{code}",
		"profile.body":         "👤 Профиль\n\nID: {id}\nПриглашено: {invited}\nНаграда: {status}",
		"reward.unlocked":      "🎉 Ты пригласил {invited} друзей — премиум открыт!",
		"payment.confirmed":    "✅ Оплата получена. Премиум открыт. Приятного пользования!",
		"precheckout.rejected": "Эта покупка больше недоступна.",
		"button.profile":       "👤 Профиль",
		"button.partners":      "🤝 Пригласить друзей",
	},
}
