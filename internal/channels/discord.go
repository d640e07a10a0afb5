package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/oops"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/store"
)

const (
	discordMaxMessage = 2000
	discordButtonsRow = 5
	// discordCustomIDPrefix marks buttons this bot rendered
	discordCustomIDPrefix = "riseup:"
)

// Discord answers prefixed channel messages and option button presses.
type Discord struct {
	session       *discordgo.Session
	resolver      *chatbot.Resolver
	transcripts   store.Transcript
	commandPrefix string
	siteBaseURL   string
}

func NewDiscord(cfg config.Discord, siteBaseURL string, resolver *chatbot.Resolver, transcripts store.Transcript) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, oops.In("discord").Wrapf(err, "failed to create session")
	}

	d := &Discord{
		session:       session,
		resolver:      resolver,
		transcripts:   transcripts,
		commandPrefix: cfg.CommandPrefix,
		siteBaseURL:   siteBaseURL,
	}

	session.AddHandler(func(_ *discordgo.Session, event *discordgo.Ready) {
		slog.Info("discord bot online", "user", event.User.Username, "guilds", len(event.Guilds))
	})
	session.AddHandler(d.messageCreate)
	session.AddHandler(d.interactionCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsDirectMessages

	return d, nil
}

// Run keeps the gateway connection open until ctx is done.
func (d *Discord) Run(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return oops.In("discord").Wrapf(err, "failed to open gateway connection")
	}
	slog.Info("discord bot started", "prefix", d.commandPrefix)
	<-ctx.Done()
	if err := d.session.Close(); err != nil {
		return oops.In("discord").Wrapf(err, "failed to close gateway connection")
	}
	return nil
}

func (d *Discord) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	text, ok := stripPrefix(m.Content, d.commandPrefix)
	if !ok {
		return
	}

	_ = s.ChannelTyping(m.ChannelID)

	resp := d.resolver.ResolveFreeText(text)
	if text == "" {
		resp = d.resolver.ResolveAction(chatbot.Greeting.String())
	}
	record(context.Background(), d.transcripts, discordSession(m.ChannelID, m.Author.ID), text, resp)

	chunks := splitMessage(resp.Text, discordMaxMessage)
	for i, c := range chunks {
		msg := &discordgo.MessageSend{Content: c}
		if i == len(chunks)-1 {
			msg.Components = discordComponents(resp, "", d.siteBaseURL)
		}
		if _, err := s.ChannelMessageSendComplex(m.ChannelID, msg); err != nil {
			slog.Error("failed to send discord message", "channel_id", m.ChannelID, "error", err)
			return
		}
		if i < len(chunks)-1 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

func (d *Discord) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	customID := i.MessageComponentData().CustomID
	key, ok := strings.CutPrefix(customID, discordCustomIDPrefix)
	if !ok {
		return
	}

	said := key
	if i.Message != nil {
		if label := pressedLabel(i.Message.Components, customID); label != "" {
			said = label
		}
	}

	resp := d.resolver.ResolveAction(key)
	route := routeOf(d.resolver, resp, key)
	record(context.Background(), d.transcripts, discordSession(i.ChannelID, interactionUser(i)), said, resp)

	// Interaction replies share the 2000 character limit; canned texts fit.
	content := splitMessage(resp.Text, discordMaxMessage)[0]
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: discordComponents(resp, route, d.siteBaseURL),
		},
	})
	if err != nil {
		slog.Error("failed to answer discord interaction", "channel_id", i.ChannelID, "error", err)
	}
}

// discordComponents renders options as rows of buttons and an action with a
// known route as a link button.
func discordComponents(resp chatbot.Response, route, siteBaseURL string) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, opts := range chunk(resp.Options, discordButtonsRow) {
		row := discordgo.ActionsRow{}
		for _, o := range opts {
			row.Components = append(row.Components, discordgo.Button{
				Label:    o.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: discordCustomIDPrefix + o.Action.String(),
			})
		}
		rows = append(rows, row)
	}
	if link := linkFor(siteBaseURL, route); link != "" {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Open page", Style: discordgo.LinkButton, URL: link},
		}})
	}
	return rows
}

// pressedLabel finds the label of the button with customID among the rows of
// the message the user clicked on.
func pressedLabel(rows []discordgo.MessageComponent, customID string) string {
	for _, row := range rows {
		var buttons []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			buttons = r.Components
		case discordgo.ActionsRow:
			buttons = r.Components
		}
		for _, c := range buttons {
			switch b := c.(type) {
			case *discordgo.Button:
				if b.CustomID == customID {
					return b.Label
				}
			case discordgo.Button:
				if b.CustomID == customID {
					return b.Label
				}
			}
		}
	}
	return ""
}

// stripPrefix returns the message after the command prefix.
func stripPrefix(content, prefix string) (string, bool) {
	content = strings.TrimSpace(content)
	rest, ok := strings.CutPrefix(content, prefix)
	if !ok {
		return "", false
	}
	if rest != "" && rest[0] != ' ' && !strings.HasSuffix(prefix, " ") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func discordSession(channelID, userID string) string {
	return fmt.Sprintf("discord:%s:%s", channelID, userID)
}

func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return "unknown"
}

// splitMessage splits a message into chunks of at most maxLength bytes,
// preferring word boundaries.
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	for len(message) > maxLength {
		splitIndex := maxLength
		if spaceIndex := strings.LastIndex(message[:maxLength], " "); spaceIndex > maxLength/2 {
			splitIndex = spaceIndex
		}
		for splitIndex > 0 && !utf8.RuneStart(message[splitIndex]) {
			splitIndex--
		}

		chunks = append(chunks, message[:splitIndex])
		message = strings.TrimPrefix(message[splitIndex:], " ")
	}

	if len(message) > 0 {
		chunks = append(chunks, message)
	}
	return chunks
}
