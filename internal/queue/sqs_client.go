package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const defaultRegion = "us-east-1"

// SQSClient sends queue messages to AWS SQS.
type SQSClient struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSClient constructs an SQS-backed queue client. An empty region falls
// back to us-east-1.
func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("ESIGN_SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSClient{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

// Send delivers a message to the configured SQS queue.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	}
	// SQS rejects empty attribute values.
	if msg.Kind != "" {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(msg.Kind)},
		}
	}
	_, err = s.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
