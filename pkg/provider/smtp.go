package provider

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/errkind"
	"github.com/outboxguard/engine/pkg/mail"
)

// SMTPConfig configures an SMTPProvider.
type SMTPConfig struct {
	Mail mail.Config
	// PerSecond paces outbound dials so the provider never dials faster
	// than its own transport can sustain, independent of (and in
	// addition to) the per-(domain,account) warm-up Limiter.
	PerSecond rate.Limit
	Burst     int
	Timeout   time.Duration
}

// SMTPProvider adapts pkg/mail's raw SMTP sender into the Provider port,
// pacing outbound dials with golang.org/x/time/rate and classifying
// failures onto the fixed error taxonomy. The pacer lives inside the
// provider rather than the worker loop: the warm-up limiter owns
// per-account pacing, this one owns the transport.
type SMTPProvider struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
}

// NewSMTP builds an SMTPProvider. A zero Timeout defaults to 30s.
func NewSMTP(cfg SMTPConfig) *SMTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &SMTPProvider{
		cfg:     cfg,
		limiter: rate.NewLimiter(cfg.PerSecond, cfg.Burst),
	}
}

// Send waits for the pacing limiter, then dials and delivers job via SMTP,
// classifying any error onto the fixed taxonomy. The context is used only
// to bound the pacing wait and the per-send timeout; SendMail itself is
// not context-aware in the standard library, so the timeout is enforced
// with a deadline goroutine.
func (p *SMTPProvider) Send(job email.Job) SendOutcome {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return Failure(errkind.ProviderTimeout, "rate pacer: "+err.Error(), time.Since(start).Milliseconds())
	}

	done := make(chan error, 1)
	go func() {
		done <- mail.Send(p.cfg.Mail, mail.Message{
			To:       job.To,
			From:     job.From,
			Subject:  job.Subject,
			BodyText: job.BodyText,
			BodyHTML: job.BodyHTML,
			Headers:  job.Headers,
		})
	}()

	select {
	case <-ctx.Done():
		return Failure(errkind.ProviderTimeout, "send deadline exceeded", time.Since(start).Milliseconds())
	case err := <-done:
		latencyMs := time.Since(start).Milliseconds()
		if err == nil {
			return Success("", latencyMs)
		}
		kind, msg := classify(err)
		return Failure(kind, msg, latencyMs)
	}
}

// Health probes the SMTP host by attempting a TCP dial, timing it out at
// the configured Timeout.
func (p *SMTPProvider) Health() HealthProbe {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", p.cfg.Mail.SMTPHost+":"+p.cfg.Mail.SMTPPort, p.cfg.Timeout)
	latencyMs := time.Since(start).Milliseconds()
	if err != nil {
		return HealthProbe{Healthy: false, LatencyMs: latencyMs}
	}
	conn.Close()
	return HealthProbe{Healthy: true, LatencyMs: latencyMs}
}

// classify maps a raw net/smtp error onto the fixed error kind taxonomy.
// textproto.Error carries a numeric SMTP status the way net/smtp surfaces
// permanent (5xx) vs transient (4xx) failures; anything else falls back
// to a substring check on 550-family codes as a last resort.
func classify(err error) (errkind.Kind, string) {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errkind.ProviderTimeout, err.Error()
		}
		return errkind.ProviderNetwork, err.Error()
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 535 || protoErr.Code == 530:
			return errkind.ProviderAuth, err.Error()
		case protoErr.Code == 550 || protoErr.Code == 551 || protoErr.Code == 553:
			return errkind.ProviderInvalidRecipient, err.Error()
		case protoErr.Code == 450 || protoErr.Code == 451 || protoErr.Code == 452:
			return errkind.ProviderResourceBusy, err.Error()
		case protoErr.Code == 421:
			return errkind.ProviderRateLimit, err.Error()
		case protoErr.Code >= 500:
			return errkind.ProviderUnknown, err.Error()
		}
	}

	if isPermanentFailure(err) {
		return errkind.ProviderInvalidRecipient, err.Error()
	}

	return errkind.ProviderUnknown, err.Error()
}

// isPermanentFailure is the last-resort classifier for errors that carry
// neither a net.Error nor a textproto.Error: some SMTP servers only
// surface the 55x status inside the message text.
func isPermanentFailure(err error) bool {
	msg := err.Error()
	permanentCodes := []string{"550", "551", "552", "553", "554"}
	for _, code := range permanentCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
