package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var clp = message.NewPrinter(language.MustParse("es-CL"))

// FormatCLP renders whole pesos with Chilean grouping, e.g. $1.234.567.
func FormatCLP(amount int64) string {
	return clp.Sprintf("$%d", amount)
}

type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice int64
}

type OrderConfirmation struct {
	OrderID      string
	Items        []OrderLine
	Subtotal     int64
	Discount     int64
	ShippingCost int64
	Total        int64
	Address      string
	City         string
	Region       string
	PostalCode   string
}

// ShortID is the order reference shown to customers.
func (o OrderConfirmation) ShortID() string {
	if len(o.OrderID) > 8 {
		return o.OrderID[:8]
	}
	return o.OrderID
}

type ContactNotice struct {
	Name    string
	Email   string
	RUT     string
	Message string
}

var funcs = template.FuncMap{"clp": FormatCLP}

var orderTmpl = template.Must(template.New("order").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #FF69B4, #4B0082); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
    <h1>🧸 ¡Gracias por tu compra!</h1>
  </div>
  <div style="background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px;">
    <p>Hola,</p>
    <p>Tu pedido ha sido confirmado y está siendo procesado.</p>
    <p><strong>Número de orden:</strong> #{{.ShortID}}</p>
    <h3 style="color: #4B0082;">Resumen de tu pedido:</h3>
    <table style="width: 100%; border-collapse: collapse; background: white;">
      <thead><tr><th align="left">Producto</th><th align="left">Cantidad</th><th align="left">Precio</th></tr></thead>
      <tbody>
      {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{clp .UnitPrice}}</td></tr>
      {{end}}</tbody>
    </table>
    {{if .Discount}}<p>Descuento: -{{clp .Discount}}</p>{{end}}
    {{if .ShippingCost}}<p>Costo de Envío: {{clp .ShippingCost}}</p>{{end}}
    <p style="font-size: 20px; font-weight: bold; color: #4B0082; text-align: right;">Total: {{clp .Total}}</p>
    {{if .Address}}<h3 style="color: #4B0082;">📦 Dirección de Envío:</h3>
    <p><strong>Dirección:</strong> {{.Address}}<br><strong>Ciudad:</strong> {{.City}}<br><strong>Región:</strong> {{.Region}}{{if .PostalCode}}<br><strong>Código Postal:</strong> {{.PostalCode}}{{end}}</p>{{end}}
    <p>Recibirás una notificación cuando tu pedido sea enviado.</p>
    <p style="text-align: center; color: #666;">¡Gracias por confiar en OsitosLua! 💕</p>
  </div>
</div>
</body>
</html>`))

var contactTmpl = template.Must(template.New("contact").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
<h2>📬 Nuevo mensaje de contacto</h2>
<p><strong>Nombre:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
{{if .RUT}}<p><strong>RUT:</strong> {{.RUT}}</p>{{end}}
<div style="background: #f9f9f9; padding: 15px; border-left: 4px solid #FF69B4;">{{.Message}}</div>
</body>
</html>`))

func OrderConfirmationMessage(to string, data OrderConfirmation) (Message, error) {
	var buf bytes.Buffer
	if err := orderTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render order: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("✅ Confirmación de Pedido #%s", data.ShortID()),
		HTML:    buf.String(),
	}, nil
}

func ContactNoticeMessage(to string, data ContactNotice) (Message, error) {
	var buf bytes.Buffer
	if err := contactTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render contact: %w", err)
	}
	return Message{
		To:      to,
		ReplyTo: data.Email,
		Subject: fmt.Sprintf("Nuevo mensaje de %s", data.Name),
		HTML:    buf.String(),
	}, nil
}
