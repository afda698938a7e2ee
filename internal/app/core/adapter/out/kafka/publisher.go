package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// DefaultTopic 交易完成事件的預設 topic
const DefaultTopic = "transaction_completed"

// messageWriter kafka.Writer 中用到的部分 (測試可替換)
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把 TransactionCompleted 送到 Kafka
//
// 以帳戶 ID 當 key，同一帳戶的事件落在同一個 partition
// 事件是在帳戶鎖外交給 writer 的，抵達順序不保證等於提交順序，消費端依 Sequence 排序
type Publisher struct {
	writer messageWriter
}

// NewPublisher 建立 Publisher
//
// 參數:
//
//	brokers: Kafka broker 位址
//	topic: 空字串時使用 DefaultTopic
//	logger: 非同步寫入失敗時記錄
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			// 交易已經提交，事件不可拖慢回應
			Async: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("kafka write failed",
						slog.Int("messages", len(messages)),
						slog.String("error", err.Error()))
				}
			},
		},
	}
}

// Publish 序列化事件並交給 writer
func (p *Publisher) Publish(ctx context.Context, event domain.TransactionCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: data,
		Time:  event.OccurredAt,
	})
}

// Close 送出緩衝中的訊息並關閉連線
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ usecase.EventPublisher = (*Publisher)(nil)
