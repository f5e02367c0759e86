package handler

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxFormBytes caps the webhook body; Twilio posts a few hundred bytes.
const maxFormBytes = 64 << 10

// twimlResponse renders <Response><Message>text</Message></Response>.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// smsWebhookHandler answers Twilio's inbound message webhook. It always
// replies 200 with exactly one TwiML message, since any other status makes
// Twilio retry or drop the reply.
func smsWebhookHandler(svc *service.Assistant, bulkhead *resilience.Bulkhead, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /sms")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			logger.Warn("invalid webhook form", zap.Error(err))
			writeTwiML(w, service.MsgApology, logger)
			return
		}
		span.SetAttributes(attribute.String("twilio.message_sid", r.PostForm.Get("MessageSid")))

		writeTwiML(w, handle(ctx, svc, bulkhead, r.PostForm.Get("Body"), logger), logger)
	}
}

// messageHandler is the JSON surface: {"text": "..."} -> {"reply": "..."}.
func messageHandler(svc *service.Assistant, bulkhead *resilience.Bulkhead, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/messages")
		defer span.End()

		var req domain.MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		writeJSON(w, http.StatusOK, domain.MessageResponse{Reply: handle(ctx, svc, bulkhead, req.Text, logger)})
	}
}

func handle(ctx context.Context, svc *service.Assistant, bulkhead *resilience.Bulkhead, text string, logger *zap.Logger) string {
	if err := bulkhead.Acquire(ctx); err != nil {
		logger.Warn("request abandoned while waiting for a slot", zap.Error(err))
		return service.MsgApology
	}
	defer bulkhead.Release()

	return svc.HandleMessage(ctx, text)
}

func writeTwiML(w http.ResponseWriter, text string, logger *zap.Logger) {
	out, err := xml.Marshal(twimlResponse{Message: text})
	if err != nil {
		logger.Error("failed to render TwiML", zap.Error(err))
		out = []byte("<Response><Message>" + service.MsgApology + "</Message></Response>")
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(out)
}
