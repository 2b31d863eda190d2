package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/acuhlmann/hackersbot/internal/refresh"
	"github.com/acuhlmann/hackersbot/internal/store"
)

const (
	defaultTopN  = 3
	defaultScanN = 10

	// telegramMessageLimit is Telegram's hard cap per message.
	telegramMessageLimit = 4096
)

// Bot serves summary commands over Telegram long polling.
type Bot struct {
	api  *tgbotapi.BotAPI
	orch *refresh.Orchestrator
}

func New(token string, orch *refresh.Orchestrator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: failed to initialize: %w", err)
	}
	return &Bot{api: api, orch: orch}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	log.Printf("Telegram bot running as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	cmd, n := parseCommand(msg.Text)
	chatID := msg.Chat.ID

	switch cmd {
	case "start", "help":
		b.send(chatID, helpText)
	case "summary":
		go b.refreshAndSend(ctx, chatID, n, false)
	case "ai":
		go b.refreshAndSend(ctx, chatID, n, true)
	}
}

// parseCommand extracts the command and the article count argument, clamped
// to the per-command range; /summary scans 1-10, /ai scans 5-30.
func parseCommand(text string) (string, int) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", 0
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	// Commands in groups arrive as /summary@botname.
	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}

	var n int
	if len(fields) > 1 {
		n, _ = strconv.Atoi(fields[1])
	}
	switch cmd {
	case "summary":
		n = clamp(n, defaultTopN, 1, 10)
	case "ai":
		n = clamp(n, defaultScanN, 5, 30)
	}
	return cmd, n
}

func clamp(n, def, lo, hi int) int {
	if n == 0 {
		return def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func (b *Bot) refreshAndSend(ctx context.Context, chatID int64, topN int, filterAI bool) {
	if filterAI {
		b.send(chatID, fmt.Sprintf("Scanning top %d articles for AI-related content, this may take a minute...", topN))
	} else {
		b.send(chatID, fmt.Sprintf("Fetching top %d articles from Hacker News, this may take a minute...", topN))
	}

	run, err := b.orch.Refresh(ctx, topN, filterAI)
	if err != nil {
		b.send(chatID, renderError(err))
		return
	}

	if len(run.Articles) == 0 {
		b.send(chatID, "No matching articles found. Try scanning more with /ai 20.")
		return
	}
	for i, a := range run.Articles {
		b.send(chatID, formatArticle(a, i+1, len(run.Articles)))
	}
	b.send(chatID, fmt.Sprintf("Done, sent %d article summaries. Use /summary or /ai for more.", len(run.Articles)))
}

// renderError maps orchestrator outcomes to chat replies. AlreadyRunning
// and RateLimited are ordinary "please wait" answers, not failures.
func renderError(err error) string {
	var rl *refresh.RateLimitedError
	switch {
	case errors.Is(err, refresh.ErrAlreadyRunning):
		return "A refresh is already underway, please wait for it to finish."
	case errors.As(err, &rl):
		return fmt.Sprintf("Summaries were generated recently, please try again in %s.", rl.Remaining.Round(time.Second))
	default:
		return fmt.Sprintf("Refresh failed: %v. Please try again later.", err)
	}
}

func formatArticle(a store.Article, index, total int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%d/%d] %s\n\n", index, total, a.Title)
	if a.AIRelated != nil && *a.AIRelated {
		fmt.Fprintf(&sb, "AI-related (%.0f%%)\n", a.AIConfidence*100)
	}
	fmt.Fprintf(&sb, "%d points | %d comments\n%s\n\n", a.Points, a.CommentCount, a.URL)
	fmt.Fprintf(&sb, "Summary:\n%s\n", a.Summary)
	if a.CommentSummary != "" {
		fmt.Fprintf(&sb, "\nDiscussion highlights:\n%s\n", a.CommentSummary)
	}

	msg := sb.String()
	if len(msg) > telegramMessageLimit {
		msg = truncate(msg, telegramMessageLimit-3) + "..."
	}
	return msg
}

// truncate cuts s to at most n bytes without splitting a rune; Telegram
// rejects messages containing invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("WARNING: bot: failed to send message: %v", err)
	}
}

const helpText = `HackerNews Summarizer Bot

Commands:
/summary - summarize the top 3 articles
/summary 5 - summarize the top 5 articles
/ai - find AI-related articles (top 10 scanned)
/ai 20 - scan the top 20 for AI articles
/help - show this message

Summaries include article content and comment discussions. Refreshes share a cooldown with the web UI.`
