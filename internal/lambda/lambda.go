// Package lambda adapts the acceptance service and the worker to AWS
// Lambda events: API Gateway HTTP API for ingest, SQS for processing.
package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"logredact/internal/logger"
	"logredact/internal/models"
	"logredact/internal/normalizer"
	"logredact/internal/worker"
)

// IngestHandler serves API Gateway v2 requests through service
type IngestHandler struct {
	service *normalizer.Service
}

// NewIngestHandler creates an API Gateway ingest handler
func NewIngestHandler(service *normalizer.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// Handle is the Lambda entry point
func (h *IngestHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, normalizer.MessageMalformedBody), nil
		}
		body = decoded
	}

	resp, err := h.service.Accept(ctx, normalizer.Request{
		Headers: normalizer.NewHeaders(req.Headers),
		Body:    body,
	})
	if err != nil {
		status, msg := normalizer.Outcome(err)
		if status >= http.StatusInternalServerError {
			log := logger.WithComponent("lambda_ingest")
			log.Error().
				Err(err).
				Str("request_id", req.RequestContext.RequestID).
				Msg("ingest failed")
		}
		return errorResponse(status, msg), nil
	}

	return jsonResponse(http.StatusAccepted, resp), nil
}

func errorResponse(status int, message string) events.APIGatewayV2HTTPResponse {
	return jsonResponse(status, models.ErrorResponse{Error: message})
}

func jsonResponse(status int, v any) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"content-type": "application/json",
		},
	}
}

// WorkerHandler processes SQS batches with a Processor
type WorkerHandler struct {
	processor *worker.Processor
}

// NewWorkerHandler creates an SQS worker handler
func NewWorkerHandler(processor *worker.Processor) *WorkerHandler {
	return &WorkerHandler{processor: processor}
}

// Handle processes every record of the batch in order. Failed records are
// reported as batch item failures so SQS redelivers only those.
func (h *WorkerHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	payloads := make([][]byte, len(event.Records))
	for i, record := range event.Records {
		payloads[i] = []byte(record.Body)
	}

	results := h.processor.ProcessBatch(ctx, payloads)

	var resp events.SQSEventResponse
	for i, res := range results {
		if res.OK() {
			continue
		}
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
			ItemIdentifier: event.Records[i].MessageId,
		})
	}

	if n := len(resp.BatchItemFailures); n > 0 {
		log := logger.WithComponent("lambda_worker")
		log.Warn().
			Int("batch_size", len(event.Records)).
			Int("failed", n).
			Msg("batch completed with failures")
	}
	return resp, nil
}
