package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/checkout"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/payments"
)

type fakeVerifier struct {
	payload   []byte
	signature string
	evt       payments.Event
	err       error
}

func (f *fakeVerifier) Verify(payload []byte, signature string) (payments.Event, error) {
	f.payload, f.signature = payload, signature
	return f.evt, f.err
}

type fakeEventHandler struct {
	calls int
	err   error
}

func (f *fakeEventHandler) HandlePaymentEvent(context.Context, payments.Event) error {
	f.calls++
	return f.err
}

func postWebhook(t *testing.T, v eventVerifier, h paymentEventHandler, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/api/webhooks/stripe", StripeWebhook(v, h))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookPassesRawBody(t *testing.T) {
	v := &fakeVerifier{evt: payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted}}
	h := &fakeEventHandler{}

	w := postWebhook(t, v, h, "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["received"])
	assert.Equal(t, `{"id":"evt_1"}`, string(v.payload))
	assert.Equal(t, "t=1,v1=abc", v.signature)
	assert.Equal(t, 1, h.calls)
}

func TestStripeWebhookSignatureFailures(t *testing.T) {
	h := &fakeEventHandler{}

	w := postWebhook(t, &fakeVerifier{err: payments.ErrMissingSignature}, h, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(t, &fakeVerifier{err: fmt.Errorf("%w: bad", payments.ErrInvalidSignature)}, h, "t=1,v1=zzz")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Firma de webhook inválida", decodeBody(t, w)["message"])

	assert.Zero(t, h.calls)
}

func TestStripeWebhookProcessingErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{checkout.ErrMissingOrderID, http.StatusBadRequest},
		{checkout.ErrOrderNotFound, http.StatusNotFound},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := postWebhook(t, &fakeVerifier{}, &fakeEventHandler{err: tc.err}, "sig")
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}
