package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"esign-backend/internal/notify"
	"esign-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeMailer struct {
	err  error
	sent []notify.Mail
}

func (f *fakeMailer) Send(ctx context.Context, m notify.Mail) error {
	_ = ctx
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func sqsMessage(id, receipt, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	mailer := &fakeMailer{}
	msgBody, _ := queue.EncodeMessage(queue.Message{ID: "n-1", Recipient: "signer@example.com", DocumentTitle: "NDA"})

	handleMessage(context.Background(), client, "queue", mailer, sqsMessage("m1", "r1", string(msgBody)))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "signer@example.com" {
		t.Fatalf("unexpected mail: %+v", mailer.sent)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	mailer := &fakeMailer{err: errors.New("boom")}
	msgBody, _ := queue.EncodeMessage(queue.Message{ID: "n-2", Recipient: "signer@example.com"})

	handleMessage(context.Background(), client, "queue", mailer, sqsMessage("m2", "r2", string(msgBody)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}

	handleMessage(context.Background(), client, "queue", &fakeMailer{}, sqsMessage("m3", "r3", "{bad-json"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesMissingRecipient(t *testing.T) {
	client := &fakeSQS{}
	mailer := &fakeMailer{}
	msgBody, _ := queue.EncodeMessage(queue.Message{ID: "n-4"})

	handleMessage(context.Background(), client, "queue", mailer, sqsMessage("m4", "r4", string(msgBody)))

	if len(client.deleted) != 1 || len(mailer.sent) != 0 {
		t.Fatalf("expected drop without mail, deleted=%d sent=%d", len(client.deleted), len(mailer.sent))
	}
}
