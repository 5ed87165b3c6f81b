package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vidtube/vidtube/pkg/logger"
)

// partitionLog is a single partition with a consumer group offset. Every
// session starts reading at the committed offset, the way a group member does
// after a restart or rebalance.
type partitionLog struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed int64
}

func newPartitionLog(values ...string) *partitionLog {
	l := &partitionLog{}
	for i, v := range values {
		l.messages = append(l.messages, kafka.Message{
			Topic:  "video-events",
			Offset: int64(i),
			Key:    []byte("k"),
			Value:  []byte(v),
		})
	}
	return l
}

func (l *partitionLog) session() *logReader {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &logReader{log: l, next: l.committed}
}

func (l *partitionLog) offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committed
}

type logReader struct {
	log  *partitionLog
	next int64
}

func (r *logReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	if r.next >= int64(len(r.log.messages)) {
		return kafka.Message{}, io.EOF
	}
	m := r.log.messages[r.next]
	r.next++
	return m, nil
}

func (r *logReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	for _, m := range msgs {
		if m.Offset+1 > r.log.committed {
			r.log.committed = m.Offset + 1
		}
	}
	return nil
}

func (r *logReader) Close() error { return nil }

func newTestConsumer(r messageReader, attempts int) *KafkaConsumer {
	return &KafkaConsumer{
		reader: r,
		retry:  RetryPolicy{MaxAttempts: attempts, Backoff: time.Millisecond},
		logger: logger.NewNop(),
	}
}

// recorder counts handler calls per message value and fails according to fail.
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	order []string
	fail  func(value string, call int) error
}

func newRecorder(fail func(value string, call int) error) *recorder {
	return &recorder{calls: map[string]int{}, fail: fail}
}

func (r *recorder) handle(ctx context.Context, msg Message) error {
	r.mu.Lock()
	v := string(msg.Value)
	r.calls[v]++
	r.order = append(r.order, v)
	n := r.calls[v]
	r.mu.Unlock()
	if r.fail != nil {
		return r.fail(v, n)
	}
	return nil
}

func TestSubscribe_CommitsAfterEachSuccess(t *testing.T) {
	log := newPartitionLog(`"a"`, `"b"`, `"c"`)
	rec := newRecorder(nil)

	err := newTestConsumer(log.session(), 3).Subscribe(context.Background(), rec.handle)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Subscribe() error = %v, want end of log", err)
	}
	if got := log.offset(); got != 3 {
		t.Errorf("committed = %d, want 3", got)
	}
	if len(rec.order) != 3 {
		t.Errorf("handled = %v", rec.order)
	}
}

func TestSubscribe_RetriesTransientFailures(t *testing.T) {
	log := newPartitionLog(`"a"`, `"b"`)
	rec := newRecorder(func(value string, call int) error {
		if value == `"a"` && call < 3 {
			return errors.New("minio unavailable")
		}
		return nil
	})

	err := newTestConsumer(log.session(), 3).Subscribe(context.Background(), rec.handle)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Subscribe() error = %v, want end of log", err)
	}
	if rec.calls[`"a"`] != 3 || rec.calls[`"b"`] != 1 {
		t.Errorf("calls = %v", rec.calls)
	}
	if got := log.offset(); got != 2 {
		t.Errorf("committed = %d, want 2", got)
	}
}

func TestSubscribe_ExhaustedMessageIsRedelivered(t *testing.T) {
	log := newPartitionLog(`"a"`, `"b"`)
	boom := errors.New("mongo unavailable")

	down := newRecorder(func(value string, call int) error { return boom })
	err := newTestConsumer(log.session(), 2).Subscribe(context.Background(), down.handle)
	if !errors.Is(err, boom) {
		t.Fatalf("Subscribe() error = %v, want the handler error", err)
	}
	if down.calls[`"a"`] != 2 || down.calls[`"b"`] != 0 {
		t.Errorf("calls = %v, want two attempts on the first message only", down.calls)
	}
	if got := log.offset(); got != 0 {
		t.Fatalf("committed = %d, want the failed message left uncommitted", got)
	}

	// 重启后从已提交的位置继续消费
	up := newRecorder(nil)
	err = newTestConsumer(log.session(), 2).Subscribe(context.Background(), up.handle)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Subscribe() error = %v, want end of log", err)
	}
	if len(up.order) != 2 || up.order[0] != `"a"` {
		t.Errorf("redelivered = %v, want a then b", up.order)
	}
	if got := log.offset(); got != 2 {
		t.Errorf("committed = %d, want 2", got)
	}
}

func TestSubscribe_PermanentFailureIsCommitted(t *testing.T) {
	log := newPartitionLog(`"poison"`, `"b"`)
	rec := newRecorder(func(value string, call int) error {
		if value == `"poison"` {
			return Permanent(errors.New("malformed video id"))
		}
		return nil
	})

	err := newTestConsumer(log.session(), 5).Subscribe(context.Background(), rec.handle)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Subscribe() error = %v, want end of log", err)
	}
	if rec.calls[`"poison"`] != 1 {
		t.Errorf("permanent failure retried %d times", rec.calls[`"poison"`])
	}
	if rec.calls[`"b"`] != 1 || log.offset() != 2 {
		t.Errorf("calls = %v, committed = %d", rec.calls, log.offset())
	}
}

func TestSubscribe_SkipsInvalidJSON(t *testing.T) {
	log := newPartitionLog(`not json`, `"b"`)
	rec := newRecorder(nil)

	err := newTestConsumer(log.session(), 3).Subscribe(context.Background(), rec.handle)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Subscribe() error = %v, want end of log", err)
	}
	if len(rec.order) != 1 || rec.order[0] != `"b"` {
		t.Errorf("handled = %v", rec.order)
	}
	if got := log.offset(); got != 2 {
		t.Errorf("committed = %d, want 2", got)
	}
}

func TestSubscribe_CancelDuringBackoffLeavesMessageUncommitted(t *testing.T) {
	log := newPartitionLog(`"a"`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newRecorder(func(value string, call int) error {
		cancel()
		return errors.New("minio unavailable")
	})
	c := newTestConsumer(log.session(), 10)
	c.retry.Backoff = time.Minute

	err := c.Subscribe(ctx, rec.handle)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Subscribe() error = %v, want context.Canceled", err)
	}
	if rec.calls[`"a"`] != 1 || log.offset() != 0 {
		t.Errorf("calls = %v, committed = %d", rec.calls, log.offset())
	}
}

func TestPermanent(t *testing.T) {
	cause := errors.New("bad payload")
	err := Permanent(cause)
	if !IsPermanent(err) || !errors.Is(err, cause) {
		t.Errorf("Permanent() = %v", err)
	}
	if IsPermanent(cause) || Permanent(nil) != nil {
		t.Error("plain errors and nil must not be permanent")
	}
}
