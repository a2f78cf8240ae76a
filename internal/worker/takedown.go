package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/config"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/templates"
)

// Notes recorded on requests that are not delivered by email.
const (
	NoteFormPrepared   = "Form takedown prepared - manual submission may be required"
	NoteManualHandling = "Requires manual processing"
)

// ErrNoRecipient is returned when an email notice has nowhere to go.
var ErrNoRecipient = errors.New("no recipient email configured for this platform")

// Takedown delivers takedown requests.
type Takedown struct {
	takedowns  piracy.TakedownStore
	templates  *templates.Registry
	mailer     piracy.Mailer
	clock      piracy.Clock
	recipients map[string]string
	abuse      bool
	logger     *zap.Logger
}

// TakedownDeps groups the collaborators of Takedown.
type TakedownDeps struct {
	Takedowns piracy.TakedownStore
	Templates *templates.Registry
	Mailer    piracy.Mailer
	Clock     piracy.Clock
	Config    config.TakedownConfig
}

// NewTakedown constructs a takedown handler.
func NewTakedown(deps TakedownDeps, logger *zap.Logger) *Takedown {
	if logger == nil {
		logger = zap.NewNop()
	}
	recipients := make(map[string]string, len(deps.Config.Recipients))
	for platform, addr := range deps.Config.Recipients {
		recipients[strings.ToUpper(platform)] = addr
	}
	return &Takedown{
		takedowns:  deps.Takedowns,
		templates:  deps.Templates,
		mailer:     deps.Mailer,
		clock:      deps.Clock,
		recipients: recipients,
		abuse:      deps.Config.AbuseFallback,
		logger:     logger.Named("takedown"),
	}
}

// Handle implements piracy.Handler. A delivery error marks the request
// FAILED and is returned so the queue can back off and redeliver.
func (t *Takedown) Handle(ctx context.Context, job piracy.Job) error {
	msg, err := piracy.Decode[piracy.TakedownMessage](job)
	if err != nil {
		return err
	}
	logger := t.logger.With(
		zap.String("takedown_id", msg.TakedownRequestID),
		zap.String("platform", string(msg.Platform)),
		zap.Int("attempt", msg.Attempt),
	)

	req, err := t.takedowns.GetTakedown(ctx, msg.TakedownRequestID)
	if errors.Is(err, piracy.ErrNotFound) {
		logger.Warn("takedown request not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load takedown: %w", err)
	}
	if !t.deliverable(req.Status, job) {
		logger.Info("takedown not pending, skipping", zap.String("status", string(req.Status)))
		return nil
	}

	now := t.clock.Now()
	req.Attempts++
	req.LastAttemptAt = &now

	next, response, err := t.dispatch(ctx, req)
	if err != nil {
		req.Status = piracy.TakedownFailed
		req.Response = map[string]any{"error": err.Error()}
		if serr := t.takedowns.SaveTakedownState(ctx, req); serr != nil {
			logger.Error("save failed takedown", zap.Error(serr))
		}
		metrics.ObserveTakedown(string(req.Status), string(req.Platform))
		return fmt.Errorf("deliver takedown %s: %w", req.ID, err)
	}

	if _, err := piracy.Transition(req.Status, next); err != nil {
		return piracy.Permanent(err)
	}
	req.Status = next
	req.Response = response
	if next == piracy.TakedownSent {
		req.SentAt = &now
	}
	if err := t.takedowns.SaveTakedownState(ctx, req); err != nil {
		return fmt.Errorf("save takedown: %w", err)
	}
	metrics.ObserveTakedown(string(req.Status), string(req.Platform))
	logger.Info("takedown processed", zap.String("status", string(req.Status)), zap.Int("attempts", req.Attempts))
	return nil
}

// deliverable reports whether a request in status may be dispatched by job.
// FAILED requests are only picked up by the queue's own retry of them.
func (t *Takedown) deliverable(status piracy.TakedownStatus, job piracy.Job) bool {
	switch status {
	case piracy.TakedownPending:
		return true
	case piracy.TakedownFailed:
		return job.Redelivery()
	}
	return false
}

func (t *Takedown) dispatch(ctx context.Context, req piracy.TakedownRequest) (piracy.TakedownStatus, map[string]any, error) {
	tmpl, ok := t.templates.Get(req.TemplateUsed)
	if !ok {
		return piracy.TakedownPending, map[string]any{"note": NoteManualHandling}, nil
	}
	switch tmpl.Type {
	case templates.DeliveryEmail:
		recipient, err := t.recipient(tmpl, req)
		if err != nil {
			return "", nil, err
		}
		rendered, err := t.templates.Render(tmpl.ID, req.RequestPayload.TemplateData)
		if err != nil {
			return "", nil, err
		}
		if err := t.mailer.Send(ctx, piracy.MailMessage{To: recipient, Subject: rendered.Subject, Body: rendered.Body}); err != nil {
			return "", nil, err
		}
		return piracy.TakedownSent, map[string]any{"type": "email", "recipient": recipient}, nil
	case templates.DeliveryForm:
		return piracy.TakedownSent, map[string]any{"type": "form", "note": NoteFormPrepared}, nil
	default:
		return piracy.TakedownPending, map[string]any{"note": NoteManualHandling}, nil
	}
}

// recipient resolves the template address, then the configured address for
// the platform, then abuse@ the infringing domain for generic notices.
func (t *Takedown) recipient(tmpl templates.Template, req piracy.TakedownRequest) (string, error) {
	if tmpl.RecipientEmail != "" {
		return tmpl.RecipientEmail, nil
	}
	if addr := t.recipients[strings.ToUpper(string(req.Platform))]; addr != "" {
		return addr, nil
	}
	domain := req.RequestPayload.TemplateData.Domain
	if t.abuse && req.Platform == piracy.PlatformGenericDMCA && domain != "" {
		return "abuse@" + domain, nil
	}
	return "", ErrNoRecipient
}
