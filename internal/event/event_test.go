package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/pkg/logger"
)

var testLoan = &domain.Loan{
	LoanRef:   "DLN-EVT",
	TenantID:  "tenant-1",
	StationID: "station-9",
	DealerID:  "dealer-3",
	Status:    domain.LoanStatusActive,
}

func sampleEvent() Event {
	at := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	return New(PaymentProcessed, testLoan, at).
		WithAmount("amount", decimal.RequireFromString("1134.72")).
		WithAttribute("payment_ref", "PAY-1")
}

func TestEvent_Payload(t *testing.T) {
	e := sampleEvent()

	payload, err := e.Payload()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "loan.payment.processed", decoded["type"])
	assert.Equal(t, "DLN-EVT", decoded["loan_ref"])
	assert.Equal(t, "station-9", decoded["station_id"])
	assert.Equal(t, "1134.72", decoded["amounts"].(map[string]any)["amount"])
	assert.Equal(t, "PAY-1", decoded["attributes"].(map[string]any)["payment_ref"])
}

func TestEvent_WithDoesNotShareMaps(t *testing.T) {
	base := New(LoanCreated, testLoan, time.Now())
	a := base.WithAttribute("k", "a")
	b := base.WithAttribute("k", "b")

	assert.Equal(t, "a", a.Attributes["k"])
	assert.Equal(t, "b", b.Attributes["k"])
	assert.Nil(t, base.Attributes)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logger.NewWithWriter(&buf, logger.Config{Format: "json"}))

	require.NoError(t, sink.Publish(context.Background(), sampleEvent()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loan.payment.processed", entry["msg"])
	assert.Equal(t, "DLN-EVT", entry["loan_ref"])
	assert.Equal(t, "1134.72", entry["amount"])
}

type fakePublisher struct {
	channel string
	message []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := &RedisSink{client: pub, channel: "loan-events"}

	require.NoError(t, sink.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "loan-events", pub.channel)
	assert.Contains(t, string(pub.message), `"loan.payment.processed"`)

	pub.err = errors.New("connection refused")
	err := sink.Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "connection refused")
}

type fakeWriter struct {
	messages []kafkago.Message
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, topic: "loan-events"}

	e := sampleEvent()
	require.NoError(t, sink.Publish(context.Background(), e))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("DLN-EVT"), msg.Key)
	assert.Equal(t, e.OccurredAt, msg.Time)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("loan.payment.processed"), msg.Headers[0].Value)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), New(LoanCreated, testLoan, time.Now())))

	r.Err = errors.New("sink down")
	assert.Error(t, r.Publish(context.Background(), New(LoanApproved, testLoan, time.Now())))

	assert.Equal(t, []Type{LoanCreated, LoanApproved}, r.Types())
	r.Reset()
	assert.Empty(t, r.Events())
}
