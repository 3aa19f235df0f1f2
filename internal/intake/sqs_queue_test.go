package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	sent     []string
	deleted  []string
	messages []types.Message
	err      error
	lastWait int32
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastWait = in.WaitTimeSeconds
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueRoundTrip(t *testing.T) {
	api := &fakeSQS{messages: []types.Message{
		{MessageId: aws.String("a"), Body: aws.String(`{"kind":"inbound.v1"}`), ReceiptHandle: aws.String("rh-a")},
	}}
	q := newSQSQueue(api, "https://sqs.sa-east-1.amazonaws.com/123/inbound")
	ctx := context.Background()

	if err := q.Send(ctx, "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := q.Receive(ctx, 5, 10)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "a" || msgs[0].ReceiptHandle != "rh-a" {
		t.Fatalf("unexpected messages %#v", msgs)
	}
	if api.lastWait != 10 {
		t.Fatalf("wait seconds = %d", api.lastWait)
	}
	if err := q.Delete(ctx, ""); err != nil {
		t.Fatalf("empty receipt should be ignored: %v", err)
	}
	if err := q.Delete(ctx, "rh-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.sent) != 1 || len(api.deleted) != 1 {
		t.Fatalf("sent=%v deleted=%v", api.sent, api.deleted)
	}
}

func TestSQSQueueWrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	q := newSQSQueue(&fakeSQS{err: boom}, "url")
	if err := q.Send(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := q.Receive(context.Background(), 1, 0); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
