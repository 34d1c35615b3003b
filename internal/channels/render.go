// internal/channels/render.go
package channels

import (
	"fmt"
	"html"
	"strings"

	"catalyst-alerts/internal/common/slack"
	"catalyst-alerts/internal/models"
)

// renderEmailSubject builds the email subject line.
func renderEmailSubject(content *models.AlertContent) string {
	return fmt.Sprintf("New Catalyst Alert: %s - %s", content.Ticker, content.SearchName)
}

// renderEmailHTML builds the HTML email body from the content snapshot.
// Content fields carry user and catalog text, so they are escaped before
// interpolation into markup.
func renderEmailHTML(content *models.AlertContent) string {
	var b strings.Builder

	b.WriteString(`<html><body style="font-family: Arial, sans-serif; line-height: 1.6;">`)
	fmt.Fprintf(&b, `<h2>New Catalyst Match: %s</h2>`, html.EscapeString(content.Ticker))
	fmt.Fprintf(&b, `<p>Your saved search "<strong>%s</strong>" found a new match:</p>`, html.EscapeString(content.SearchName))
	b.WriteString(`<table style="border-collapse: collapse;">`)

	row := func(label, value string) {
		fmt.Fprintf(&b, `<tr><td style="padding: 4px 12px 4px 0;"><strong>%s</strong></td><td>%s</td></tr>`, label, html.EscapeString(value))
	}
	row("Sponsor:", content.Sponsor)
	row("Phase:", content.Phase)
	row("Indication:", content.Indication)
	row("Catalyst Date:", content.CompletionDate)
	if content.DaysUntil != nil {
		row("Days Until:", fmt.Sprintf("%d days", *content.DaysUntil))
	}
	row("Market Cap:", content.MarketCap)
	row("Current Price:", content.CurrentPrice)
	if content.NCTID != "" {
		nctID := html.EscapeString(content.NCTID)
		fmt.Fprintf(&b, `<tr><td style="padding: 4px 12px 4px 0;"><strong>NCT ID:</strong></td><td><a href="https://clinicaltrials.gov/study/%s">%s</a></td></tr>`, nctID, nctID)
	}

	b.WriteString(`</table>`)
	fmt.Fprintf(&b, `<p><a href="%s">View Full Details</a></p>`, html.EscapeString(content.DeepLink))
	b.WriteString(`<p style="font-size: 12px; color: #6c757d;">You received this email because you have an active saved search with alerts enabled.</p>`)
	b.WriteString(`</body></html>`)

	return b.String()
}

// renderSMSText builds the SMS body, kept short to fit a single segment.
func renderSMSText(content *models.AlertContent) string {
	return fmt.Sprintf(
		"New Catalyst: %s (%s) - %s. Market Cap: %s. View: %s",
		content.Ticker, content.Phase, content.CompletionDate, content.MarketCap, content.DeepLink,
	)
}

// renderSlackMessage builds the Slack Block Kit payload.
func renderSlackMessage(content *models.AlertContent) *slack.Message {
	fields := []slack.Text{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Search:*\n%s", content.SearchName)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Phase:*\n%s", content.Phase)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Sponsor:*\n%s", content.Sponsor)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Catalyst Date:*\n%s", content.CompletionDate)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Market Cap:*\n%s", content.MarketCap)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Price:*\n%s", content.CurrentPrice)},
	}

	blocks := []slack.Block{
		{
			Type: "header",
			Text: &slack.Text{Type: "plain_text", Text: fmt.Sprintf("New Catalyst: %s", content.Ticker)},
		},
		{Type: "section", Fields: fields},
		{
			Type: "section",
			Text: &slack.Text{Type: "mrkdwn", Text: fmt.Sprintf("*Indication:* %s", content.Indication)},
		},
	}

	elements := []slack.Element{
		{
			Type: "button",
			Text: &slack.Text{Type: "plain_text", Text: "View Details"},
			URL:  content.DeepLink,
		},
	}
	if content.NCTID != "" {
		elements = append(elements, slack.Element{
			Type: "button",
			Text: &slack.Text{Type: "plain_text", Text: "View on ClinicalTrials.gov"},
			URL:  fmt.Sprintf("https://clinicaltrials.gov/study/%s", content.NCTID),
		})
	}
	blocks = append(blocks, slack.Block{Type: "actions", Elements: elements})

	return &slack.Message{
		Text:   fmt.Sprintf("New Catalyst Alert: %s", content.Ticker),
		Blocks: blocks,
	}
}
