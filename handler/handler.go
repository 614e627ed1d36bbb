// Package handler is the Lambda boundary layer: it verifies webhook
// ownership, turns the platform's XML envelopes into domain messages, and
// maps pipeline errors onto HTTP statuses.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"wechat-bridge/internal/domain"
	"wechat-bridge/internal/usecase"
)

// Pipeline is the dedup-and-dispatch use case consumed by the handler.
type Pipeline interface {
	Respond(ctx context.Context, msg domain.InboundMessage) (domain.Reply, error)
}

// Getter supplies the webhook verification token parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Handler serves the webhook endpoint.
type Handler struct {
	pipeline    Pipeline
	params      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

// NewHandler creates the webhook handler. The verification token is
// fetched from the parameter store on first use.
func NewHandler(pipeline Pipeline, params Getter, paramPrefix string) (*Handler, error) {
	if pipeline == nil {
		return nil, errors.New("handler: pipeline must not be nil")
	}
	if params == nil {
		return nil, errors.New("handler: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("handler: parameter prefix must not be empty")
	}
	return &Handler{pipeline: pipeline, params: params, paramPrefix: paramPrefix}, nil
}

// Handle dispatches one API Gateway event.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodGet:
		return h.handleVerification(ctx, req), nil
	case http.MethodPost:
		return h.handleMessage(ctx, req), nil
	default:
		return textResponse(http.StatusMethodNotAllowed, "method not allowed"), nil
	}
}

// handleVerification answers the platform's webhook ownership probe.
func (h *Handler) handleVerification(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	q := req.QueryStringParameters
	signature := q["signature"]
	timestamp := q["timestamp"]
	nonce := q["nonce"]
	echostr := q["echostr"]

	token, err := h.resolveToken(ctx)
	if err != nil {
		slog.Error("failed to load webhook token", "err", err)
		return textResponse(http.StatusInternalServerError, "internal error")
	}

	if !verifySignature(token, timestamp, nonce, signature) {
		slog.Warn("webhook verification failed", "signature", signature)
		return textResponse(http.StatusBadRequest, "invalid signature")
	}
	if echostr == "" {
		return textResponse(http.StatusBadRequest, "missing echostr")
	}
	return textResponse(http.StatusOK, echostr)
}

// handleMessage runs one inbound text message through the pipeline.
func (h *Handler) handleMessage(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	reqID := uuid.NewString()
	log := slog.With("request_id", reqID)

	inbound, err := decodeInbound(req.Body)
	if err != nil {
		log.Warn("malformed inbound message", "err", err)
		return textResponse(http.StatusBadRequest, "malformed message")
	}
	if inbound.MsgType != "text" {
		return textResponse(http.StatusBadRequest, "unsupported message type")
	}

	msg := domain.InboundMessage{
		MessageID: inbound.MsgID,
		UserID:    inbound.FromUserName,
		TopicID:   inbound.ToUserName,
		Text:      inbound.Content,
	}
	log.Info("inbound message", "msg_id", msg.MessageID, "user", msg.UserID)

	reply, err := h.pipeline.Respond(ctx, msg)
	if err != nil {
		log.Error("pipeline failed", "msg_id", msg.MessageID, "code", usecase.CodeOf(err), "err", err)
		return errorResponse(err)
	}

	body, err := encodeReply(reply)
	if err != nil {
		log.Error("failed to encode reply", "err", err)
		return textResponse(http.StatusInternalServerError, "internal error")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/xml"},
		Body:       body,
	}
}

func (h *Handler) resolveToken(ctx context.Context) (string, error) {
	h.tokenOnce.Do(func() {
		h.token, h.tokenErr = h.params.GetParameter(ctx, h.paramPrefix+"/wechat-token")
	})
	return h.token, h.tokenErr
}

// errorResponse maps pipeline error codes onto HTTP statuses. Client
// configuration and input problems are 400s; everything else is a 500.
func errorResponse(err error) events.APIGatewayProxyResponse {
	switch usecase.CodeOf(err) {
	case usecase.ErrorInvalidInput, usecase.ErrorUnsupportedModel:
		return textResponse(http.StatusBadRequest, "bad request")
	default:
		return textResponse(http.StatusInternalServerError, "internal error")
	}
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       body,
	}
}
