package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/store"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).PaddingLeft(2)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	optionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).PaddingLeft(4)
	routeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true).PaddingLeft(2)
)

func renderResponse(resp chatbot.Response, route string) string {
	var b strings.Builder
	b.WriteString(botStyle.Render(resp.Text))
	for i, label := range resp.Labels() {
		b.WriteString("\n")
		b.WriteString(optionStyle.Render(fmt.Sprintf("%d. %s", i+1, label)))
	}
	if route != "" {
		b.WriteString("\n")
		b.WriteString(routeStyle.Render("-> navigate to " + route))
	}
	return b.String()
}

func renderTurn(t turn) string {
	return renderResponse(t.Response, t.Route)
}

func renderMessage(msg store.Message) string {
	if !msg.FromBot {
		return userStyle.Render("you › " + msg.Text)
	}
	return renderResponse(chatbot.Response{Text: msg.Text, Kind: msg.Kind, Options: msg.Options}, "")
}
