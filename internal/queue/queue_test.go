package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"quiz-game-bot/internal/update"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	keys       []string
	prefetch   int
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.prefetch = prefetchCount
	return nil
}

// acker records how deliveries were settled.
type acker struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *acker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *acker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *acker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleUpdate(ctx context.Context, u update.Update) error {
	return m.Called(ctx, u).Error(0)
}

func textUpdate(id int, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Chat:   &tele.Chat{ID: -100, Type: tele.ChatGroup},
		Sender: &tele.User{ID: 5, Username: "anna"},
		Text:   text,
	}}
}

func delivery(t *testing.T, a *acker, tag uint64, u tele.Update) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(u)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: a, DeliveryTag: tag, Body: body}
}

func TestDeclare(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, Declare(ch, DefaultQueue))
	assert.Equal(t, []string{"updates_for_game"}, ch.declared)
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, DefaultQueue)

	require.NoError(t, p.Publish(context.Background(), textUpdate(1, "/start")))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, DefaultQueue, ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	_, err := uuid.Parse(msg.MessageId)
	assert.NoError(t, err)

	var got tele.Update
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, "/start", got.Message.Text)
	assert.Equal(t, int64(-100), got.Message.Chat.ID)
}

func TestConsumer_Process(t *testing.T) {
	a := &acker{}
	h := new(mockHandler)
	h.On("HandleUpdate", mock.Anything, mock.MatchedBy(func(u update.Update) bool { return u.Text == "ok" })).Return(nil)
	h.On("HandleUpdate", mock.Anything, mock.MatchedBy(func(u update.Update) bool { return u.Text == "fail" })).Return(errors.New("db down"))

	c := NewConsumer(&fakeChannel{}, DefaultQueue, h, 0)
	ctx := context.Background()

	c.process(ctx, delivery(t, a, 1, textUpdate(1, "ok")))
	c.process(ctx, delivery(t, a, 2, textUpdate(2, "fail")))

	redelivered := delivery(t, a, 3, textUpdate(2, "fail"))
	redelivered.Redelivered = true
	c.process(ctx, redelivered)

	c.process(ctx, amqp.Delivery{Acknowledger: a, DeliveryTag: 4, Body: []byte("{not json")})
	c.process(ctx, delivery(t, a, 5, tele.Update{ID: 5}))

	assert.Equal(t, []uint64{1, 3, 4, 5}, a.acks)
	assert.Equal(t, []uint64{2}, a.nacks)
	assert.Equal(t, []bool{true}, a.requeue)
	h.AssertNumberOfCalls(t, "HandleUpdate", 3)
}

func TestConsumer_Run(t *testing.T) {
	a := &acker{}
	h := new(mockHandler)
	h.On("HandleUpdate", mock.Anything, mock.Anything).Return(nil)

	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 2)}
	ch.deliveries <- delivery(t, a, 1, textUpdate(1, "капуста"))
	ch.deliveries <- delivery(t, a, 2, textUpdate(2, "морковь"))
	close(ch.deliveries)

	c := NewConsumer(ch, DefaultQueue, h, 10)
	err := c.Run(context.Background())

	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 10, ch.prefetch)
	assert.Equal(t, []uint64{1, 2}, a.acks)
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	c := NewConsumer(ch, DefaultQueue, new(mockHandler), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
