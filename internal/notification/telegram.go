package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// MarkdownV2 reserves these characters outside of entities.
var markdownV2 = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

// TelegramNotifier posts alerts to one chat through the Bot API sendMessage
// method, formatted as MarkdownV2.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	log      *slog.Logger
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   &http.Client{Timeout: sendTimeout},
		log:      slog.Default().With("component", "telegram"),
	}
}

type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := sendMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"}
	endpoint := t.apiBase + "/bot" + t.botToken + "/sendMessage"
	if err := postJSON(ctx, t.client, endpoint, msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.log.Debug("alert delivered", "title", alert.Title, "chat", t.chatID)
	return nil
}

// telegramText renders a bold title line, the message, and the key levels
// of the attached insight when present.
func telegramText(alert Alert) string {
	var b strings.Builder
	b.WriteString(levelIcon(alert.Level))
	b.WriteString(" *")
	b.WriteString(escapeMarkdown(alert.Title))
	b.WriteString("*\n\n")
	b.WriteString(escapeMarkdown(alert.Message))

	if in := alert.Insight; in != nil {
		md := in.Metadata
		if md.SupportLevel != 0 || md.ResistanceLevel != 0 {
			b.WriteString("\n")
			b.WriteString(escapeMarkdown(fmt.Sprintf("Support %.2f / Resistance %.2f", md.SupportLevel, md.ResistanceLevel)))
		}
		if len(md.CorrelatedAssets) > 0 {
			b.WriteString("\n")
			b.WriteString(escapeMarkdown("With " + strings.Join(md.CorrelatedAssets, ", ")))
		}
	}
	return b.String()
}

func levelIcon(level AlertLevel) string {
	switch level {
	case AlertCritical:
		return "🚨"
	case AlertWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

func escapeMarkdown(s string) string { return markdownV2.Replace(s) }
