package channels

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/store"
)

func TestDiscordComponents(t *testing.T) {
	r := chatbot.New()

	rows := discordComponents(r.ResolveAction("greeting"), "", "https://riseup.dev")
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	row := rows[0].(discordgo.ActionsRow)
	if len(row.Components) != 5 {
		t.Fatalf("row has %d buttons", len(row.Components))
	}
	first := row.Components[0].(discordgo.Button)
	if first.Label != "Our Services" || first.CustomID != "riseup:services" || first.Style != discordgo.PrimaryButton {
		t.Fatalf("first button = %+v", first)
	}

	portfolio := r.ResolveAction("portfolio")
	rows = discordComponents(portfolio, routeOf(r, portfolio, "portfolio"), "https://riseup.dev")
	if len(rows) != 1 {
		t.Fatalf("action rows = %d", len(rows))
	}
	link := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	if link.Style != discordgo.LinkButton || link.URL != "https://riseup.dev/projects" {
		t.Fatalf("link button = %+v", link)
	}

	if rows := discordComponents(portfolio, "/projects", ""); len(rows) != 0 {
		t.Fatalf("no base url should mean no link, got %d rows", len(rows))
	}
}

func TestPressedLabel(t *testing.T) {
	r := chatbot.New()
	rows := discordComponents(r.ResolveAction("greeting"), "", "")
	if got := pressedLabel(rows, "riseup:projects"); got != "View Projects" {
		t.Fatalf("label = %q", got)
	}

	// Components decoded from the gateway arrive as pointers.
	decoded := []discordgo.MessageComponent{&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		&discordgo.Button{Label: "View Portfolio", CustomID: "riseup:portfolio"},
	}}}
	if got := pressedLabel(decoded, "riseup:portfolio"); got != "View Portfolio" {
		t.Fatalf("decoded label = %q", got)
	}
	if got := pressedLabel(decoded, "riseup:careers"); got != "" {
		t.Fatalf("missing button gave %q", got)
	}
}

func TestTelegramKeyboard(t *testing.T) {
	r := chatbot.New()

	kb := telegramKeyboard(r.ResolveAction("services"), "", "")
	if kb == nil || len(kb.InlineKeyboard) != 3 {
		t.Fatalf("keyboard = %+v", kb)
	}
	if got := kb.InlineKeyboard[0][1]; got.Text != "Mobile Apps" || got.CallbackData != "mobile" {
		t.Fatalf("button = %+v", got)
	}
	if len(kb.InlineKeyboard[2]) != 1 {
		t.Fatalf("last row has %d buttons", len(kb.InlineKeyboard[2]))
	}

	careers := r.ResolveAction("careers")
	kb = telegramKeyboard(careers, routeOf(r, careers, "careers"), "https://riseup.dev")
	if kb == nil || kb.InlineKeyboard[0][0].URL != "https://riseup.dev/careers" {
		t.Fatalf("careers keyboard = %+v", kb)
	}

	if kb := telegramKeyboard(careers, "/careers", ""); kb != nil {
		t.Fatalf("expected no keyboard without a base url")
	}
}

func TestRouteOfOnlyForActions(t *testing.T) {
	r := chatbot.New()
	if got := routeOf(r, r.ResolveAction("team"), "team"); got != "" {
		t.Fatalf("options response got route %q", got)
	}
	if got := routeOf(r, r.ResolveAction("team-page"), "team-page"); got != "/team" {
		t.Fatalf("team-page route = %q", got)
	}
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		content, prefix, want string
		ok                    bool
	}{
		{"!chat hello there", "!chat", "hello there", true},
		{"!chat", "!chat", "", true},
		{"!chatter hi", "!chat", "", false},
		{"!chat hi", "!chat ", "hi", true},
		{"hello", "!chat", "", false},
	}
	for _, tt := range tests {
		got, ok := stripPrefix(tt.content, tt.prefix)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("stripPrefix(%q, %q) = %q, %v", tt.content, tt.prefix, got, ok)
		}
	}
}

func TestIsStartCommand(t *testing.T) {
	for text, want := range map[string]bool{
		"/start":            true,
		"/start@riseup_bot": true,
		"/start ref123":     true,
		"/started":          false,
		"start":             false,
		"please /start":     false,
	} {
		if got := isStartCommand(text); got != want {
			t.Fatalf("isStartCommand(%q) = %v", text, got)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 2000); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %v", got)
	}

	long := strings.Repeat("word ", 500)
	chunks := splitMessage(long, 2000)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 2000 {
			t.Fatalf("chunk of %d bytes", len(c))
		}
		if strings.HasPrefix(c, " ") {
			t.Fatalf("chunk starts with a space")
		}
	}
	if strings.Join(chunks, " ") != strings.TrimRight(long, " ") && strings.Join(chunks, " ") != long {
		t.Fatalf("split lost text")
	}

	bullets := strings.Repeat("•", 1000)
	for _, c := range splitMessage(bullets, 2000) {
		if !strings.HasPrefix(c, "•") {
			t.Fatalf("split inside a rune")
		}
	}
}

func TestChunk(t *testing.T) {
	got := chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != 5 {
		t.Fatalf("chunk = %v", got)
	}
	if chunk([]int(nil), 3) != nil {
		t.Fatalf("empty input should give no chunks")
	}
}

func TestRecordAppendsExchange(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(0)
	r := chatbot.New()
	record(ctx, s, telegramSession(42), "/start", r.ResolveAction("greeting"))
	msgs, _ := s.List(ctx, "telegram:42")
	if len(msgs) != 2 || msgs[0].Text != "/start" || !msgs[1].FromBot {
		t.Fatalf("recorded %+v", msgs)
	}
	record(ctx, nil, "x", "y", r.ResolveAction("greeting"))
}
