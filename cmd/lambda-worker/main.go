package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"esign-backend/internal/notify"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/workerproc"
)

var mailer notify.Mailer = notify.LogMailer{}

// handler reports delivery failures as batch item failures so SQS retries
// only those. Unrecoverable payloads are acknowledged and dropped.
func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		err := workerproc.HandleMessage(ctx, mailer, record.Body)
		if err == nil {
			continue
		}
		meta := workerproc.ComputeMeta(record.Body)
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"body_len":       meta.BodyLen,
			"error":          err.Error(),
		}
		if workerproc.Unrecoverable(err) {
			telemetry.Error("lambda_worker.notification.dropped", fields)
			continue
		}
		telemetry.Error("lambda_worker.notification.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	lambda.Start(handler)
}
