package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"agriconecta-api/internal/mail"
)

var stateSubjects = map[string]string{
	"PENDENTE":      "Pedido %s actualizado",
	"PAGO":          "Pagamento do pedido %s confirmado",
	"EM_PREPARACAO": "O seu pedido %s está em preparação",
	"EM_TRANSITO":   "O seu pedido %s está a caminho",
	"ENTREGUE":      "Pedido %s entregue",
	"CANCELADO":     "Pedido %s cancelado",
}

var stateLabels = map[string]string{
	"PENDENTE":      "Pendente",
	"PAGO":          "Pago",
	"EM_PREPARACAO": "Em preparação",
	"EM_TRANSITO":   "Em trânsito",
	"ENTREGUE":      "Entregue",
	"CANCELADO":     "Cancelado",
}

// StateLabel devuelve la etiqueta legible del estado.
func StateLabel(state string) string {
	if l, ok := stateLabels[state]; ok {
		return l
	}
	return state
}

// FormatKwanza formatea 11000 como "11.000,00 Kz".
func FormatKwanza(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, dec, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + dec + " Kz"
	if neg {
		out = "-" + out
	}
	return out
}

var funcs = template.FuncMap{
	"kz":    FormatKwanza,
	"label": StateLabel,
}

var createdTmpl = template.Must(template.New("created").Funcs(funcs).Parse(`<p>Olá {{.CustomerName}},</p>
<p>Recebemos o seu pedido <strong>{{.OrderNumber}}</strong>. Código de acompanhamento: <strong>{{.TrackingCode}}</strong>.</p>
<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}} {{.Unit}}</td><td>{{kz .Subtotal}}</td></tr>
{{end}}</table>
<p>Subtotal: {{kz .Subtotal}}<br>Entrega: {{kz .DeliveryFee}}<br><strong>Total: {{kz .Total}}</strong></p>
{{if .Address}}<p>Entrega em: {{.Address}}</p>{{end}}
<p>Assim que confirmarmos o pagamento por transferência bancária, começamos a preparar o seu pedido.</p>`))

var statusTmpl = template.Must(template.New("status").Funcs(funcs).Parse(`<p>Olá {{.CustomerName}},</p>
<p>O estado do seu pedido <strong>{{.OrderNumber}}</strong> mudou de {{label .OldState}} para <strong>{{label .NewState}}</strong>.</p>
{{if .Note}}<p>Nota: {{.Note}}</p>{{end}}
<p>Acompanhe o pedido com o código <strong>{{.TrackingCode}}</strong>.</p>`))

// Render construye el email para la notificación.
func Render(n Notification) (mail.Message, error) {
	var (
		subject string
		tmpl    *template.Template
	)
	switch n.Kind {
	case KindOrderCreated:
		subject = fmt.Sprintf("Pedido %s recebido", n.OrderNumber)
		tmpl = createdTmpl
	case KindStatusChanged:
		pattern, ok := stateSubjects[n.NewState]
		if !ok {
			pattern = "Pedido %s actualizado"
		}
		subject = fmt.Sprintf(pattern, n.OrderNumber)
		tmpl = statusTmpl
	default:
		return mail.Message{}, fmt.Errorf("notify: unknown kind %q", n.Kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, n); err != nil {
		return mail.Message{}, err
	}
	return mail.Message{To: n.CustomerEmail, Subject: subject, HTML: buf.String()}, nil
}

// MailPublisher renderiza y envía el email sin pasar por el broker.
type MailPublisher struct {
	sender mail.Sender
}

func NewMailPublisher(sender mail.Sender) (*MailPublisher, error) {
	if sender == nil {
		return nil, errors.New("notify: mail sender is required")
	}
	return &MailPublisher{sender: sender}, nil
}

func (p *MailPublisher) Publish(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.CustomerEmail) == "" {
		return nil
	}
	msg, err := Render(n)
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, msg)
}
