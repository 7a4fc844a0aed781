package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
)

var welcomeTmpl = template.Must(template.New("welcome").Parse(`
<p>Twoje ogłoszenie <strong>{{.Title}}</strong> jest już aktywne.</p>
<p>Zarządzaj ogłoszeniem (edycja, przedłużenie, usunięcie) pod swoim prywatnym linkiem:</p>
<p><a href="{{.ManageURL}}">{{.ManageURL}}</a></p>
<p>Nie udostępniaj tego linku nikomu.</p>
`))

var expiryWarningTmpl = template.Must(template.New("expiry_warning").Parse(`
<p>Twoje ogłoszenie <strong>{{.Title}}</strong> wygasa {{.ExpiresAt}}.</p>
<p>Możesz je przedłużyć pod swoim prywatnym linkiem:</p>
<p><a href="{{.ManageURL}}">{{.ManageURL}}</a></p>
`))

// Notifier renders and sends advertiser emails. Every send is bounded by its
// own timeout and detached from the caller's context, so a slow mail server
// can never stall a webhook response; failures are logged, never raised.
type Notifier struct {
	provider Provider
	log      *zap.Logger
	timeout  time.Duration
}

func New(provider Provider, log *zap.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		provider: provider,
		log:      log.Named("notifier"),
		timeout:  timeout,
	}
}

type WelcomeData struct {
	Title     string
	ManageURL string
}

func (n *Notifier) SendWelcome(to string, data WelcomeData) {
	n.send(to, "Twoje ogłoszenie jest aktywne", welcomeTmpl, data)
}

type ExpiryWarningData struct {
	Title     string
	ExpiresAt string
	ManageURL string
}

func (n *Notifier) SendExpiryWarning(to string, data ExpiryWarningData) {
	n.send(to, "Twoje ogłoszenie wkrótce wygaśnie", expiryWarningTmpl, data)
}

func (n *Notifier) send(to, subject string, tmpl *template.Template, data any) {
	if to == "" {
		return
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		n.log.Error("render notification", zap.String("template", tmpl.Name()), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.provider.Send(ctx, to, subject, body.String()); err != nil {
		n.log.Warn("notification delivery failed",
			zap.String("template", tmpl.Name()),
			zap.Error(err),
		)
	}
}

// ManageURL builds the advertiser's capability link.
func ManageURL(publicURL, managementToken string) string {
	return fmt.Sprintf("%s/ads/manage/%s", publicURL, managementToken)
}
