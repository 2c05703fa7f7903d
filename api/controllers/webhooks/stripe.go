package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/acidbutter96/mel-davis-store/api/responses"
	"github.com/acidbutter96/mel-davis-store/internal/reconcile"
	pkgerrors "github.com/acidbutter96/mel-davis-store/pkg/errors"
	"github.com/acidbutter96/mel-davis-store/pkg/logger"
	"github.com/acidbutter96/mel-davis-store/pkg/metrics"
)

// StripeWebhookService applies one verified event to the purchase ledger.
type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (reconcile.Result, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// Notifier surfaces purchase status changes to the purchaser. Best effort:
// a notify failure never fails the webhook.
type Notifier interface {
	Notify(ctx context.Context, result reconcile.Result) error
}

// StripeWebhook ingests payment lifecycle events from Stripe.
//
// Contract with the sender: 2xx acknowledges the event permanently, non-2xx
// triggers redelivery. Malformed or unverifiable payloads return 400 since a
// retry cannot fix them; persistence failures return 500 so the event comes
// back.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, notifier Notifier, webhookMetrics *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := parseEvent(payload, r.Header.Get("Stripe-Signature"), client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		started := time.Now()
		ctx = attachEventFields(ctx, logg, event)

		if guard != nil {
			alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				// The durable idempotency check lives in the event log, so a
				// redis outage degrades to slower duplicate handling.
				if logg != nil {
					logg.Warn(ctx, fmt.Sprintf("idempotency guard unavailable: %v", err))
				}
			} else if alreadyProcessed {
				webhookMetrics.IncEvent(string(event.Type), "duplicate")
				responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
				return
			}
		}

		result, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, event.ID)
			}
			webhookMetrics.IncEvent(string(event.Type), "error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		webhookMetrics.IncEvent(string(event.Type), result.Outcome())
		webhookMetrics.ObserveDuration(string(event.Type), time.Since(started))

		if notifier != nil && !result.Duplicate && !result.Unattributed {
			if err := notifier.Notify(ctx, result); err != nil && logg != nil {
				logg.Warn(ctx, fmt.Sprintf("notify purchaser: %v", err))
			}
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s %s", event.ID, result.Outcome()))
		}
		responses.WriteSuccess(w, map[string]string{"status": result.Outcome()})
	}
}

// parseEvent verifies the payload against the signing secret. Without a
// configured secret (local development) the raw JSON is trusted as-is.
func parseEvent(payload []byte, sigHeader, secret string) (*stripe.Event, error) {
	if secret == "" {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse event payload")
		}
		if event.ID == "" || event.Type == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id and type required")
		}
		return &event, nil
	}

	if sigHeader == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature")
	}
	return &event, nil
}

func attachEventFields(ctx context.Context, logg *logger.Logger, event *stripe.Event) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})
}
