package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCLP(t *testing.T) {
	assert.Equal(t, "$1.234.567", FormatCLP(1234567))
	assert.Equal(t, "$0", FormatCLP(0))
}

func TestOrderConfirmationMessage(t *testing.T) {
	msg, err := OrderConfirmationMessage("buyer@example.cl", OrderConfirmation{
		OrderID:      "65f0a1b2c3d4e5f6a7b8c9d0",
		Items:        []OrderLine{{Name: "Osito <Lua>", Quantity: 2, UnitPrice: 10000}},
		ShippingCost: 5000,
		Total:        25000,
		Address:      "Gran Avenida 1234",
		City:         "La Cisterna",
		Region:       "Metropolitana",
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.cl", msg.To)
	assert.Equal(t, "✅ Confirmación de Pedido #65f0a1b2", msg.Subject)
	assert.Contains(t, msg.HTML, "Osito &lt;Lua&gt;")
	assert.Contains(t, msg.HTML, "La Cisterna")
	assert.NotContains(t, msg.HTML, "Código Postal")
}

func TestContactNoticeMessage(t *testing.T) {
	msg, err := ContactNoticeMessage("admin@ositoslua.cl", ContactNotice{
		Name:    "Ana",
		Email:   "ana@example.cl",
		Message: "¿Tienen osos gigantes?",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.cl", msg.ReplyTo)
	assert.Contains(t, msg.HTML, "osos gigantes")
}

func TestLogMailerNeverFails(t *testing.T) {
	assert.NoError(t, NewLogMailer(nil).Send(context.Background(), Message{To: "x@y.cl"}))
}

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{}, nil)
	assert.Error(t, err)
}
