package mail

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

var (
	confirmationText = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/confirmation.txt"))
	confirmationHTML = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/confirmation.html"))
)

// ConfirmationData feeds the confirmation templates.
type ConfirmationData struct {
	AppName   string
	FirstName string
	Link      string
	ValidFor  time.Duration
}

// ConfirmationLink appends the token as a query parameter to base.
func ConfirmationLink(base, token string) string {
	return base + "?token=" + url.QueryEscape(token)
}

// RenderConfirmation builds the account confirmation email for to.
func RenderConfirmation(to string, data ConfirmationData) (Message, error) {
	view := struct {
		ConfirmationData
		Minutes int
	}{ConfirmationData: data, Minutes: int(data.ValidFor / time.Minute)}

	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, view); err != nil {
		return Message{}, err
	}
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Confirm your " + data.AppName + " account",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
