package mq

import (
	"encoding/json"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"dex-executor-sol/internal/config"
	"dex-executor-sol/pkg/logger"
)

// ExecutionReport 一次切片批次的执行回报，发往下游风控/记账消费方。
type ExecutionReport struct {
	Timestamp  int64    `json:"timestamp"`
	TokenMint  string   `json:"token_mint"`
	Action     string   `json:"action"`
	Venue      string   `json:"venue"`
	Phase      string   `json:"phase"`
	SizeUsd    float64  `json:"size_usd"`
	AmountIn   string   `json:"amount_in"` // 最小单位，十进制字符串
	Slices     int      `json:"slices"`
	Signatures []string `json:"signatures"`
	Skipped    string   `json:"skipped,omitempty"` // 非空表示被安全门拦截的原因
	Error      string   `json:"error,omitempty"`
}

// Reporter 执行回报生产者。未启用时所有方法都是 no-op。
type Reporter struct {
	producer *kafka.Producer
	topic    string
}

func NewReporter(cfg *config.ReportConfig) (*Reporter, error) {
	if !cfg.Enabled {
		return &Reporter{}, nil
	}
	producer, err := NewKafkaProducer(KafkaProducerOption{
		Brokers:    cfg.Brokers,
		BatchSize:  cfg.BatchSize,
		LingerMs:   cfg.LingerMs,
		Topic:      cfg.Topic,
		Partitions: cfg.Partitions,
	})
	if err != nil {
		return nil, err
	}
	return &Reporter{producer: producer, topic: cfg.Topic}, nil
}

// Publish 异步发送回报。发送失败只记日志，绝不影响交易主路径。
func (r *Reporter) Publish(report *ExecutionReport) {
	if r.producer == nil {
		return
	}
	if report.Timestamp == 0 {
		report.Timestamp = time.Now().Unix()
	}
	value, err := json.Marshal(report)
	if err != nil {
		logger.Errorf("[mq] 执行回报序列化失败: %v", err)
		return
	}
	err = r.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &r.topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
	if err != nil {
		logger.Warnf("[mq] 执行回报发送失败: token=%s err=%v", report.TokenMint, err)
	}
}

func (r *Reporter) Close() {
	if r.producer == nil {
		return
	}
	// 给在途消息一个冲刷窗口
	r.producer.Flush(5000)
	r.producer.Close()
}
