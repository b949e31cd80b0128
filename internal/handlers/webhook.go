package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/checkout"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/payments"
)

const stripeSignatureHeader = "Stripe-Signature"

type eventVerifier interface {
	Verify(payload []byte, signature string) (payments.Event, error)
}

type paymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, evt payments.Event) error
}

// StripeWebhook must see the unparsed body, so no JSON middleware may run
// before it on this route.
func StripeWebhook(verifier eventVerifier, handler paymentEventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/webhooks/stripe"
		defer handlePanic(c, route)
		log := requestLogger(c, "webhook")

		payload, err := c.GetRawData()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "No se pudo leer el cuerpo")
			return
		}

		evt, err := verifier.Verify(payload, c.GetHeader(stripeSignatureHeader))
		switch {
		case err == nil:
		case errors.Is(err, payments.ErrMissingSignature):
			respondWithError(c, http.StatusBadRequest, route, "Falta la firma de Stripe")
			return
		default:
			log.Warn("rejected webhook", zap.Error(err))
			respondWithError(c, http.StatusBadRequest, route, "Firma de webhook inválida")
			return
		}

		log = log.With(zap.String("eventId", evt.ID), zap.String("type", evt.Type))
		err = handler.HandlePaymentEvent(c.Request.Context(), evt)
		switch {
		case err == nil:
		case errors.Is(err, checkout.ErrMissingOrderID):
			log.Warn("event without order id")
			respondWithError(c, http.StatusBadRequest, route, "Falta el ID de la orden")
			return
		case errors.Is(err, checkout.ErrOrderNotFound):
			log.Warn("event for unknown order")
			respondWithError(c, http.StatusNotFound, route, "Orden no encontrada")
			return
		default:
			log.Error("webhook processing failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "Error procesando webhook")
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
