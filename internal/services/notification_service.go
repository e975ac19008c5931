// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
)

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type SMTPMailer struct {
	cfg config.EmailConfig
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(_ context.Context, msg EmailMessage) error {
	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	from := m.cfg.FromEmail
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.FromEmail)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		from, msg.To, mime.QEncoding.Encode("utf-8", msg.Subject), msg.HTML)

	addr := fmt.Sprintf("%s:%s", m.cfg.SMTPHost, m.cfg.SMTPPort)
	return smtp.SendMail(addr, auth, m.cfg.FromEmail, []string{msg.To}, []byte(body))
}

// LogMailer only logs. Used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg EmailMessage) error {
	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email not sent, SMTP is not configured")
	return nil
}

// NewMailer picks SMTP when a host is configured.
func NewMailer(cfg config.EmailConfig) Mailer {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}

// Customers hear about these statuses only.
var notifyStatuses = map[models.ProjectStatus]bool{
	models.ProjectStatusConceptReady:   true,
	models.ProjectStatusCADApproved:    true,
	models.ProjectStatusReadyForPickup: true,
}

type NotificationService struct {
	mailer     Mailer
	adminEmail string
	lang       string
	projectURL string

	once      sync.Once
	templates map[string]*template.Template
}

// NewNotificationService sends in the default shop language. projectURL is
// the public project page, the project id is appended to it.
func NewNotificationService(mailer Mailer, adminEmail, projectURL string) *NotificationService {
	return &NotificationService{
		mailer:     mailer,
		adminEmail: adminEmail,
		lang:       i18n.Default(),
		projectURL: strings.TrimRight(projectURL, "/"),
	}
}

// Subscribe registers Dispatch for every event type that sends email.
func (s *NotificationService) Subscribe(bus *events.Bus) {
	for _, t := range []string{
		events.TypeCustomDesignIntake,
		events.TypeDesignStatusChanged,
		events.TypeRingConfigurationCompleted,
		events.TypeWebhookSecurityAlert,
	} {
		bus.Subscribe(t, s.Dispatch)
	}
}

// Dispatch turns an event into emails. Delivery failures are logged, the
// publisher never sees them.
func (s *NotificationService) Dispatch(ctx context.Context, ev events.Event) {
	var err error
	switch payload := ev.Payload.(type) {
	case ProjectEvent:
		if ev.Type == events.TypeCustomDesignIntake {
			err = s.sendIntake(ctx, payload)
		} else {
			err = s.sendStatusUpdate(ctx, payload)
		}
	case models.RingConfiguration:
		err = s.sendRingConfirmation(ctx, payload)
	case *models.RingConfiguration:
		err = s.sendRingConfirmation(ctx, *payload)
	case SecurityAlert:
		err = s.sendSecurityAlert(ctx, payload)
	default:
		logrus.WithField("event_type", ev.Type).Warn("Unsupported notification payload")
		return
	}

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": ev.Type,
			"event_id":   ev.ID,
		}).Error("Failed to send notification")
	}
}

func (s *NotificationService) sendIntake(ctx context.Context, ev ProjectEvent) error {
	id := shortID(ev.ProjectID.String())
	data := map[string]interface{}{
		"Name":    ev.CustomerName,
		"Email":   ev.CustomerEmail,
		"Title":   ev.Title,
		"ID":      id,
		"URL":     s.projectLink(ev.ProjectID.String()),
		"Heading": i18n.T(s.lang, i18n.KeyProjectSubmitted),
	}

	if ev.CustomerEmail != "" {
		if err := s.send(ctx, ev.CustomerEmail, i18n.T(s.lang, i18n.KeyProjectIntakeSubject, id), "project_intake", data); err != nil {
			return err
		}
	}
	if s.adminEmail == "" {
		return nil
	}
	return s.send(ctx, s.adminEmail, i18n.T(s.lang, i18n.KeyProjectAdminIntakeSubject, id), "project_intake_admin", data)
}

func (s *NotificationService) sendStatusUpdate(ctx context.Context, ev ProjectEvent) error {
	if !notifyStatuses[ev.Status] || ev.CustomerEmail == "" {
		return nil
	}

	id := shortID(ev.ProjectID.String())
	label := i18n.StatusLabel(s.lang, string(ev.Status))
	return s.send(ctx, ev.CustomerEmail, i18n.T(s.lang, i18n.KeyProjectUpdateSubject, id, label), "project_status", map[string]interface{}{
		"Heading": i18n.T(s.lang, i18n.KeyProjectUpdateHeading),
		"Name":    ev.CustomerName,
		"Title":   ev.Title,
		"Status":  label,
		"URL":     s.projectLink(ev.ProjectID.String()),
	})
}

func (s *NotificationService) sendRingConfirmation(ctx context.Context, cfg models.RingConfiguration) error {
	if cfg.Customer.Email == "" {
		return nil
	}

	type ringView struct {
		Label string
		Pairs []DisplayPair
	}
	rings := make([]ringView, 0, 2)
	for number := 1; number <= 2; number++ {
		rings = append(rings, ringView{
			Label: i18n.T(s.lang, i18n.KeyRingLabel) + " " + i18n.T(s.lang, i18n.KeyRingNumber, number),
			Pairs: ringPairs(s.lang, cfg.Ring(number)),
		})
	}
	return s.send(ctx, cfg.Customer.Email, i18n.T(s.lang, i18n.KeyRingsConfirmationSubj, cfg.ConfigID), "ring_confirmation", map[string]interface{}{
		"Heading":  i18n.T(s.lang, i18n.KeyRingSummaryTitle),
		"Name":     cfg.Customer.Name,
		"ConfigID": cfg.ConfigID,
		"Rings":    rings,
		"Total":    fmt.Sprintf("%.2f", cfg.TotalPrice()),
	})
}

func (s *NotificationService) sendSecurityAlert(ctx context.Context, alert SecurityAlert) error {
	if s.adminEmail == "" {
		return nil
	}
	return s.send(ctx, s.adminEmail, i18n.T(s.lang, i18n.KeySecurityAlertSubject), "security_alert", map[string]interface{}{
		"Body": i18n.T(s.lang, i18n.KeySecurityAlertBody, alert.Reason, alert.IPAddress, alert.OccurredAt),
	})
}

func (s *NotificationService) send(ctx context.Context, to, subject, templateName string, data interface{}) error {
	body, err := s.renderTemplate(templateName, data)
	if err != nil {
		return fmt.Errorf("failed to render email template %s: %w", templateName, err)
	}
	return s.mailer.Send(ctx, EmailMessage{To: to, Subject: subject, HTML: body})
}

func (s *NotificationService) projectLink(id string) string {
	if s.projectURL == "" {
		return ""
	}
	return s.projectURL + "/" + id
}

func (s *NotificationService) renderTemplate(name string, data interface{}) (string, error) {
	s.once.Do(func() {
		s.templates = make(map[string]*template.Template, len(emailTemplates))
		for key, body := range emailTemplates {
			s.templates[key] = template.Must(template.New(key).Parse(body))
		}
	})

	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

var emailTemplates = map[string]string{
	"project_intake": `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Heading}}</h2>
	<p>Dzień dobry {{.Name}},</p>
	<p>dziękujemy za przesłanie projektu „{{.Title}}” (nr {{.ID}}). Nasz projektant skontaktuje się z Tobą wkrótce.</p>
	{{if .URL}}<p><a href="{{.URL}}">Zobacz swój projekt</a></p>{{end}}
	<p>Pozdrawiamy,<br>Zespół BigDIAMOND</p>
</body>
</html>`,
	"project_intake_admin": `
<!DOCTYPE html>
<html>
<body>
	<h2>Nowy projekt nr {{.ID}}</h2>
	<p>{{.Title}}</p>
	<p>Klient: {{.Name}} &lt;{{.Email}}&gt;</p>
	{{if .URL}}<p><a href="{{.URL}}">Otwórz projekt</a></p>{{end}}
</body>
</html>`,
	"project_status": `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Heading}}</h2>
	<p>Dzień dobry {{.Name}},</p>
	<p>status Twojego projektu „{{.Title}}” to teraz: <strong>{{.Status}}</strong>.</p>
	{{if .URL}}<p><a href="{{.URL}}">Zobacz szczegóły</a></p>{{end}}
	<p>Pozdrawiamy,<br>Zespół BigDIAMOND</p>
</body>
</html>`,
	"ring_confirmation": `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Heading}}</h2>
	{{if .Name}}<p>Dzień dobry {{.Name}},</p>{{end}}
	<p>zapisaliśmy Twoją konfigurację {{.ConfigID}}.</p>
	{{range .Rings}}
	<h3>{{.Label}}</h3>
	<ul>{{range .Pairs}}<li>{{.Key}}: {{.Value}}</li>{{end}}</ul>
	{{end}}
	<p>Razem: {{.Total}} zł</p>
	<p>Pozdrawiamy,<br>Zespół BigDIAMOND</p>
</body>
</html>`,
	"security_alert": `
<!DOCTYPE html>
<html>
<body>
	<pre>{{.Body}}</pre>
</body>
</html>`,
}
