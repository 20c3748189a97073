package emailsvc

import (
	"net/mail"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urfu-lab/studyhub/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestConsoleServiceMock(t *testing.T) {
	fsys := fstest.MapFS{
		"email/_base.txt":       {Data: []byte(`{{define "base"}}Hi! {{template "content" .}}{{end}}`)},
		"email/_base.gohtml":    {Data: []byte(`{{define "base"}}<p>{{template "content" .}}</p>{{end}}`)},
		"email/greeting.txt":    {Data: []byte(`{{define "content"}}Welcome {{.Data}} to {{.FrontendBaseURL}}{{end}}{{template "base" .}}`)},
		"email/greeting.gohtml": {Data: []byte(`{{define "content"}}<b>{{.Data}}</b>{{end}}{{template "base" .}}`)},
	}
	core.ParseEmailTemplates(fsys, "email", nopLogger{})

	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, nopLogger{})
	to := mail.Address{Name: "Alice", Address: "alice@test.test"}

	svc.SendMessages(
		core.NewEmailMessage(conf, "Hello", "greeting", "Alice", to),
		&core.EmailMessage{Subject: "no recipients", BodyStr: "ignored"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi! Welcome Alice to http://localhost:3000", strings.TrimSpace(sent[0].TextContent))
	assert.Equal(t, "<p><b>Alice</b></p>", strings.TrimSpace(sent[0].HTMLContent))

	out := svc.format(sent[0])
	assert.Contains(t, out, "Subject: [StudyHub] Hello")
	assert.Contains(t, out, `To: "Alice" <alice@test.test>`)
}

func TestSendgridPrepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig(), nopLogger{}).(*sendgridService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Bob", Address: "bob@test.test"}},
		Subject:     "Reset",
		TextContent: "text",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[StudyHub] Reset", m.Personalizations[0].Subject)
	assert.Equal(t, "bob@test.test", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
