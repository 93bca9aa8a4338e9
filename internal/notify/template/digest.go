package template

import (
	"fmt"
	"strings"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// DigestComposer turns a flushed batch into a single outbound artifact.
// Channels without a digest form (push) bypass composition entirely.
type DigestComposer interface {
	Compose(userID string, msgs []*model.NotificationMessage) Rendered
}

// DigestComposers maps channels to their digest format. Channels absent
// from the map deliver batched messages individually.
type DigestComposers map[model.ChannelKind]DigestComposer

// DefaultDigestComposers wires the standard formats: a subject/body digest
// for email and a compact text digest for webhook and slack.
func DefaultDigestComposers() DigestComposers {
	return DigestComposers{
		model.ChannelEmail:   &emailDigest{},
		model.ChannelWebhook: &textDigest{},
		model.ChannelSlack:   &textDigest{},
	}
}

type emailDigest struct{}

func (emailDigest) Compose(_ string, msgs []*model.NotificationMessage) Rendered {
	subject := fmt.Sprintf("Digest — %d notifications", len(msgs))

	var text, html strings.Builder
	html.WriteString("<ul>")
	for _, m := range msgs {
		fmt.Fprintf(&text, "[%s] %s: %s\n", m.Level, m.Title, m.Body)
		fmt.Fprintf(&html, "<li><b>%s</b> — %s</li>", m.Title, m.Body)
	}
	html.WriteString("</ul>")

	return Rendered{Subject: subject, BodyText: text.String(), BodyHTML: html.String()}
}

type textDigest struct{}

func (textDigest) Compose(_ string, msgs []*model.NotificationMessage) Rendered {
	var b strings.Builder
	fmt.Fprintf(&b, "%d notifications:\n", len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(&b, "- [%s] %s\n", m.Level, m.Title)
	}
	return Rendered{
		Subject:  fmt.Sprintf("Digest — %d notifications", len(msgs)),
		BodyText: b.String(),
	}
}
