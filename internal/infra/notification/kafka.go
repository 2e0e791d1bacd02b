package notification

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"marketplace/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

// 注文ステータス遷移の通知イベント。メール/PDF生成側がこれを購読する。
type OrderStatusEvent struct {
	OrderID    int64             `json:"order_id"`
	UserID     int64             `json:"user_id"`
	Type       model.OrderType   `json:"type"`
	Status     model.OrderStatus `json:"status"`
	TotalPrice string            `json:"total_price"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type KafkaOrderNotifier struct {
	writer *kafka.Writer
}

func NewKafkaOrderNotifier(brokerAddr string, topic string) *KafkaOrderNotifier {
	return &KafkaOrderNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokerAddr),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
	}
}

// NotifyOrderStatus はステータス遷移をトピックへ流す。
// 失敗しても呼び出し側は遷移をロールバックしない（ログだけ）。
func (n *KafkaOrderNotifier) NotifyOrderStatus(ctx context.Context, order model.Order, newStatus model.OrderStatus) error {
	ev := OrderStatusEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Type:       order.Type,
		Status:     newStatus,
		TotalPrice: order.TotalPrice.String(),
		OccurredAt: time.Now(),
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		//同じ注文のイベント順序を保つため注文IDをキーにする
		Key:   []byte(strconv.FormatInt(order.ID, 10)),
		Value: b,
	})
}

func (n *KafkaOrderNotifier) Close() error {
	return n.writer.Close()
}
