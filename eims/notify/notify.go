// Package notify delivers document emails after registry transitions.
// Deliveries are fire-and-forget for the lifecycle: errors are logged by
// the caller and never undo a transition.
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/util"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.notify")

type Notifier interface {
	SendDocumentEmail(ctx context.Context, doc *model.Document) error
	SendCancellationEmail(ctx context.Context, doc *model.Document) error
	SendReceiptEmail(ctx context.Context, doc *model.Document, receipt *model.RegistryLogEntry) error
	SendWithholdingEmail(ctx context.Context, w *model.WithholdingReceipt) error
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender hands a rendered message to a mail system.
type Sender func(ctx context.Context, m Message) error

// LogSender writes the message to the log instead of mailing it.
func LogSender(_ context.Context, m Message) error {
	logger.WithFields(logrus.Fields{"to": m.To, "subject": m.Subject}).Info(m.Body)
	return nil
}

// TemplateNotifier renders text templates and passes them to a Sender.
type TemplateNotifier struct {
	send Sender
}

func NewTemplateNotifier(send Sender) *TemplateNotifier {
	if send == nil {
		send = LogSender
	}
	return &TemplateNotifier{send: send}
}

const documentTemplate = `Dear {{.Doc.Buyer.LegalName}},

{{.Title}} {{.Doc.DocumentNumber}} issued by {{.Doc.Seller.LegalName}} (TIN {{.Doc.Seller.TIN}})
has been registered with the Ministry of Revenue.

IRN:      {{.Doc.Irn}}
Total:    {{.Doc.Total.StringFixed 2}} {{upper .Doc.Currency}}
Ack date: {{.Doc.AckDate.Format "2006-01-02 15:04:05"}}
`

const cancellationTemplate = `Dear {{.Doc.Buyer.LegalName}},

{{.Title}} {{.Doc.DocumentNumber}} (IRN {{.Doc.Irn}}) issued by {{.Doc.Seller.LegalName}}
has been cancelled.

Reason:  {{.Doc.CancelReason}}{{if .Doc.CancelRemark}} ({{.Doc.CancelRemark}}){{end}}
Message: {{.Doc.CancelMessage}}
`

const receiptTemplate = `Dear {{.Doc.Buyer.LegalName}},

Payment of {{.Receipt.ReceiptAmount.StringFixed 2}} {{upper .Doc.Currency}} for invoice {{.Doc.DocumentNumber}}
(IRN {{.Doc.Irn}}) has been received.

Receipt number: {{.Receipt.ReceiptNumber}}
Date:           {{.Receipt.ReceiptDate.Format "2006-01-02"}} ({{.Receipt.EthiopianDate}} E.C.)
`

const withholdingTemplate = `Withholding receipt {{.W.ReceiptNumber}} for invoice IRN {{.W.InvoiceIrn}}

Pre-tax amount: {{.W.PreTaxAmount.StringFixed 2}} {{upper .W.Currency}}
Rate:           {{.W.Rate}}%
RRN:            {{.W.RRN}}
`

func title(k model.Kind) string {
	switch k {
	case model.KindCreditMemo:
		return "Credit memo"
	case model.KindDebitMemo:
		return "Debit memo"
	}
	return "Invoice"
}

func (n *TemplateNotifier) render(ctx context.Context, to, subject, name, tpl string, data any) error {
	if strings.TrimSpace(to) == "" {
		logger.Debugf("%s: no recipient, skipping", name)
		return nil
	}
	body, err := util.MergeTemplate(name, tpl, data)
	if err != nil {
		return errors.Wrapf(err, "render %s", name)
	}
	return n.send(ctx, Message{To: to, Subject: subject, Body: string(body)})
}

func (n *TemplateNotifier) SendDocumentEmail(ctx context.Context, doc *model.Document) error {
	return n.render(ctx, doc.Buyer.Email, title(doc.Kind)+" "+doc.DocumentNumber+" registered", "document", documentTemplate,
		map[string]any{"Doc": doc, "Title": title(doc.Kind)})
}

func (n *TemplateNotifier) SendCancellationEmail(ctx context.Context, doc *model.Document) error {
	return n.render(ctx, doc.Buyer.Email, title(doc.Kind)+" "+doc.DocumentNumber+" cancelled", "cancellation", cancellationTemplate,
		map[string]any{"Doc": doc, "Title": title(doc.Kind)})
}

func (n *TemplateNotifier) SendReceiptEmail(ctx context.Context, doc *model.Document, receipt *model.RegistryLogEntry) error {
	return n.render(ctx, doc.Buyer.Email, "Receipt "+receipt.ReceiptNumber, "receipt", receiptTemplate,
		map[string]any{"Doc": doc, "Receipt": receipt})
}

// SendWithholdingEmail goes to the seller, the withholding is declared by
// the buyer on the seller's invoice.
func (n *TemplateNotifier) SendWithholdingEmail(ctx context.Context, w *model.WithholdingReceipt) error {
	return n.render(ctx, w.NotifyEmail, "Withholding receipt "+w.ReceiptNumber, "withholding", withholdingTemplate,
		map[string]any{"W": w})
}

// Async runs deliveries of the wrapped notifier in background goroutines and
// logs their failures. Wait blocks until all started deliveries finished.
type Async struct {
	next Notifier
	wg   sync.WaitGroup
}

func NewAsync(next Notifier) *Async {
	return &Async{next: next}
}

func (a *Async) run(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(ctx); err != nil {
			logger.Warnf("%s email failed: %v", what, err)
		}
	}()
	return nil
}

func (a *Async) SendDocumentEmail(ctx context.Context, doc *model.Document) error {
	doc = doc.Clone()
	return a.run(ctx, "document", func(ctx context.Context) error { return a.next.SendDocumentEmail(ctx, doc) })
}

func (a *Async) SendCancellationEmail(ctx context.Context, doc *model.Document) error {
	doc = doc.Clone()
	return a.run(ctx, "cancellation", func(ctx context.Context) error { return a.next.SendCancellationEmail(ctx, doc) })
}

func (a *Async) SendReceiptEmail(ctx context.Context, doc *model.Document, receipt *model.RegistryLogEntry) error {
	doc = doc.Clone()
	r := *receipt
	return a.run(ctx, "receipt", func(ctx context.Context) error { return a.next.SendReceiptEmail(ctx, doc, &r) })
}

func (a *Async) SendWithholdingEmail(ctx context.Context, w *model.WithholdingReceipt) error {
	c := *w
	return a.run(ctx, "withholding", func(ctx context.Context) error { return a.next.SendWithholdingEmail(ctx, &c) })
}

func (a *Async) Wait() {
	a.wg.Wait()
}

// Nop drops every notification.
type Nop struct{}

func (Nop) SendDocumentEmail(context.Context, *model.Document) error     { return nil }
func (Nop) SendCancellationEmail(context.Context, *model.Document) error { return nil }
func (Nop) SendReceiptEmail(context.Context, *model.Document, *model.RegistryLogEntry) error {
	return nil
}
func (Nop) SendWithholdingEmail(context.Context, *model.WithholdingReceipt) error { return nil }
