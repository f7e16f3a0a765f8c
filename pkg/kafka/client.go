// Package kafka 提供了与 Kafka 消息队列交互的功能，承载异步摄取任务。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// 读取失败的重试策略：线性退避，连续失败超过上限才放弃。
// 瞬时的 broker 抖动不应让消费者退出，否则 HTTP 侧还在收新来源，
// 任务却再没有人消费，全部卡死在 pending。
const (
	maxFetchFailures = 10
	fetchBackoffStep = 2 * time.Second
)

// fetchRetryDelay 返回第 failures 次连续读取失败后的等待时长；
// 超过上限时第二个返回值为 false，消费者放弃并退出。
func fetchRetryDelay(failures int) (time.Duration, bool) {
	if failures > maxFetchFailures {
		return 0, false
	}
	return time.Duration(failures) * fetchBackoffStep, true
}

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// Producer 负责将摄取任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// ProduceIngestTask 发送一个摄取任务到 Kafka。
func (p *Producer) ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.SourceID),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 消费摄取任务并交给 Processor 处理。
// 并发度由固定大小的 worker 池约束，避免对外部向量化/生成服务的无界并发调用。
type Consumer struct {
	reader    *kafka.Reader
	processor TaskProcessor
	workers   int
}

// NewConsumer 创建一个消费者实例。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, processor: processor, workers: workers}
}

// Run 持续拉取消息直到 ctx 取消；退出前等待所有在途任务完成（排空策略）。
// 任务无论成败都提交 offset：失败已经体现在来源的 failed 状态里，
// 核心不做自动重试，重新摄取由调用方显式触发。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动, workers=%d", c.workers)

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	fetchFailures := 0

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				break
			}
			fetchFailures++
			delay, retry := fetchRetryDelay(fetchFailures)
			if !retry {
				log.Errorf("连续 %d 次从 Kafka 读取消息失败，消费者退出: %v", fetchFailures, err)
				break
			}
			log.Warnf("从 Kafka 读取消息失败 (第 %d/%d 次)，%s 后重试: %v", fetchFailures, maxFetchFailures, delay, err)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		fetchFailures = 0

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			c.commit(m)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(msg kafka.Message, t tasks.IngestTask) {
			defer func() {
				<-sem
				wg.Done()
			}()
			log.Infof("开始处理摄取任务: source=%s, notebook=%s", t.SourceID, t.NotebookID)
			if err := c.processor.Process(context.Background(), t); err != nil {
				log.Errorf("摄取任务失败: source=%s, error: %v", t.SourceID, err)
			} else {
				log.Infof("摄取任务处理成功: source=%s", t.SourceID)
			}
			c.commit(msg)
		}(m, task)
	}

	// 排空：等待在途任务处理完再关闭
	wg.Wait()
	if err := c.reader.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
	log.Info("Kafka 消费者已退出")
}

func (c *Consumer) commit(m kafka.Message) {
	if err := c.reader.CommitMessages(context.Background(), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
