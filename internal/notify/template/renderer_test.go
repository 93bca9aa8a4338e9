package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

func TestRenderString_Substitution(t *testing.T) {
	r := NewRenderer()

	cases := []struct {
		name string
		in   string
		vars map[string]string
		want string
	}{
		{
			name: "simple token",
			in:   "Hello {{name}}",
			vars: map[string]string{"name": "Ada"},
			want: "Hello Ada",
		},
		{
			name: "token with surrounding whitespace",
			in:   "Hello {{ name }}",
			vars: map[string]string{"name": "Ada"},
			want: "Hello Ada",
		},
		{
			name: "unresolved token stays intact",
			in:   "Price: {{price}} on {{exchange}}",
			vars: map[string]string{"price": "42000"},
			want: "Price: 42000 on {{exchange}}",
		},
		{
			name: "no tokens",
			in:   "plain text",
			vars: map[string]string{"name": "Ada"},
			want: "plain text",
		},
		{
			name: "empty string",
			in:   "",
			vars: nil,
			want: "",
		},
		{
			name: "adjacent tokens",
			in:   "{{a}}{{b}}",
			vars: map[string]string{"a": "1", "b": "2"},
			want: "12",
		},
		{
			name: "dotted and dashed names",
			in:   "{{user.id}}/{{order-id}}",
			vars: map[string]string{"user.id": "u1", "order-id": "o1"},
			want: "u1/o1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.RenderString(tc.in, tc.vars))
		})
	}
}

func TestRenderString_CachedTemplateStillSubstitutesFreshVars(t *testing.T) {
	r := NewRenderer()
	s := "Hello {{name}}"

	assert.Equal(t, "Hello Ada", r.RenderString(s, map[string]string{"name": "Ada"}))
	assert.Equal(t, "Hello Bob", r.RenderString(s, map[string]string{"name": "Bob"}))
}

func TestRender_AllParts(t *testing.T) {
	r := NewRenderer()
	tpl := &Template{
		Subject:  "{{level}} alert",
		BodyHTML: "<b>{{title}}</b>",
		BodyText: "{{title}}: {{body}}",
	}

	out := r.Render(tpl, map[string]string{"level": "error", "title": "Margin", "body": "low"})

	assert.Equal(t, "error alert", out.Subject)
	assert.Equal(t, "<b>Margin</b>", out.BodyHTML)
	assert.Equal(t, "Margin: low", out.BodyText)
}

func TestTemplate_MissingVariables(t *testing.T) {
	tpl := &Template{RequiredVariables: []string{"title", "body", "level"}}

	missing := tpl.MissingVariables(map[string]string{"title": "x"})
	assert.Equal(t, []string{"body", "level"}, missing)

	assert.Nil(t, tpl.MissingVariables(map[string]string{"title": "x", "body": "y", "level": "z"}))
}

func TestEmailDigest(t *testing.T) {
	c := DefaultDigestComposers()[model.ChannelEmail]
	msgs := []*model.NotificationMessage{
		{Level: model.LevelWarning, Title: "Margin", Body: "low"},
		{Level: model.LevelError, Title: "Order", Body: "rejected"},
	}

	out := c.Compose("u1", msgs)

	assert.Equal(t, "Digest — 2 notifications", out.Subject)
	assert.Contains(t, out.BodyText, "[warning] Margin: low")
	assert.Contains(t, out.BodyText, "[error] Order: rejected")
	assert.Contains(t, out.BodyHTML, "<li><b>Margin</b>")
}

func TestTextDigest(t *testing.T) {
	c := DefaultDigestComposers()[model.ChannelSlack]
	msgs := []*model.NotificationMessage{
		{Level: model.LevelInfo, Title: "Fill"},
	}

	out := c.Compose("u1", msgs)

	assert.Equal(t, "Digest — 1 notifications", out.Subject)
	assert.Contains(t, out.BodyText, "1 notifications:")
	assert.Contains(t, out.BodyText, "- [info] Fill")
}

func TestDefaultDigestComposers_PushHasNoDigestForm(t *testing.T) {
	_, ok := DefaultDigestComposers()[model.ChannelPush]
	assert.False(t, ok)
}
