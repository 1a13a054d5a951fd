package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"esign-backend/internal/notify"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 120
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()

	queueURL := strings.TrimSpace(cfg.NotifyQueueURL)
	if queueURL == "" {
		telemetry.Error("worker.config", map[string]any{"error": "ESIGN_SQS_QUEUE_URL is required"})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("ESIGN_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("ESIGN_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("ESIGN_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		telemetry.Error("worker.aws_config", map[string]any{"error": err})
		os.Exit(1)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)
	var mailer notify.Mailer = notify.LogMailer{}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue":       queueURL,
		"concurrency": concurrency,
		"visibility":  visibilitySeconds,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, mailer, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage delivers one notification. Successful and unrecoverable
// messages are deleted; delivery failures stay on the queue for retry.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, mailer notify.Mailer, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.ID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.unparseable", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.ID) {
			metrics.IncNotification("dropped")
		}
		return
	}

	telemetry.Info("worker.notification.received", baseFields(msg, decoded.ID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, mailer, body); err != nil {
		fields := baseFields(msg, decoded.ID)
		fields["document_id"] = decoded.DocumentID
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.failed", fields)
		if workerproc.Unrecoverable(err) {
			deleteMessage(ctx, client, queueURL, msg, decoded.ID)
		}
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.ID) {
		telemetry.Info("worker.notification.delivered", baseFields(msg, decoded.ID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, notificationID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, notificationID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.notification.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, notificationID)
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, notificationID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if notificationID != "" {
		fields["notification_id"] = notificationID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
