// Package notify mails authors when an editorial decision is made.
package notify

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"text/template"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"journal/api/internal/store"
)

type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	FromName      string
	SkipTLSVerify bool
	// BaseURL prefixes submission links in mail bodies.
	BaseURL string
}

func (c Config) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

type Mailer struct {
	cfg    Config
	sender sender
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.SkipTLSVerify}
	return &Mailer{cfg: cfg, sender: d, log: log}
}

type DecisionNotice struct {
	To           string
	AuthorName   string
	SubmissionID string
	Title        string
	Status       store.SubmissionStatus
	Decision     *store.Decision
	VersionLabel string
}

var decisionBody = template.Must(template.New("decision").Parse(`Hello {{if .AuthorName}}{{.AuthorName}}{{else}}author{{end}},

An editorial decision has been recorded for your submission "{{.Title}}"{{if .VersionLabel}} ({{.VersionLabel}}){{end}}.

Status: {{.Status}}
{{- if .Decision}}
Decision: {{.Decision}}
{{- end}}
{{if .Link}}
{{.Link}}
{{end}}`))

// Message builds the decision mail.
func (m *Mailer) Message(n DecisionNotice) (*mail.Message, error) {
	data := struct {
		DecisionNotice
		Decision string
		Link     string
	}{DecisionNotice: n}
	if n.Decision != nil {
		data.Decision = string(*n.Decision)
	}
	if m.cfg.BaseURL != "" {
		data.Link = m.cfg.BaseURL + "/submissions/" + n.SubmissionID
	}

	var body bytes.Buffer
	if err := decisionBody.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render decision mail: %w", err)
	}

	msg := mail.NewMessage()
	if m.cfg.FromName != "" {
		msg.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	} else {
		msg.SetHeader("From", m.cfg.From)
	}
	msg.SetHeader("To", n.To)
	msg.SetHeader("Subject", fmt.Sprintf("Decision on %q", n.Title))
	msg.SetBody("text/plain", body.String())
	return msg, nil
}

// NotifyDecision sends the decision mail. It is a no-op when SMTP is not
// configured or the author has no address.
func (m *Mailer) NotifyDecision(n DecisionNotice) error {
	if !m.cfg.IsConfigured() || n.To == "" {
		m.log.Debug("decision mail skipped", zap.String("submission_id", n.SubmissionID))
		return nil
	}
	msg, err := m.Message(n)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send decision mail: %w", err)
	}
	return nil
}
