package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMQ is a Redis-list message queue carrying ballot-submitted events.
type RedisMQ struct {
	client            *redis.Client
	ctx               context.Context
	processHandler    func(event BallotEvent) error
	isRunning         bool
	stopChan          chan struct{}
	wg                sync.WaitGroup
	processingTimeout time.Duration
	retryDelay        time.Duration
	maxRetries        int
}

// Queue names used by the ballot event pipeline.
const (
	MainQueueName       = "ballot_queue"
	ProcessingQueueName = "ballot_processing"
	DeadLetterQueueName = "ballot_dead_letter"
	RetriesHashName     = "ballot_retries"
)

// NewRedisMQ creates a queue bound to an existing Redis client.
func NewRedisMQ(redisClient *redis.Client) *RedisMQ {
	return &RedisMQ{
		client:            redisClient,
		ctx:               context.Background(),
		stopChan:          make(chan struct{}),
		processingTimeout: 5 * time.Minute,
		retryDelay:        30 * time.Second,
		maxRetries:        3,
	}
}

// RegisterHandler sets the consumer callback.
func (r *RedisMQ) RegisterHandler(handler func(event BallotEvent) error) {
	r.processHandler = handler
}

// Send pushes a ballot event onto the main queue.
func (r *RedisMQ) Send(event BallotEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %v", err)
	}

	if err := r.client.LPush(r.ctx, MainQueueName, jsonData).Err(); err != nil {
		return fmt.Errorf("failed to push event to queue: %v", err)
	}
	return nil
}

// Start launches the consumer loops.
func (r *RedisMQ) Start() error {
	if r.processHandler == nil {
		return fmt.Errorf("handler not registered")
	}
	if r.isRunning {
		return nil
	}

	r.isRunning = true

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.timeoutCheckLoop()

	log.Println("Redis message queue consumer started")
	return nil
}

// Stop shuts the consumer down and waits for the loops to exit.
func (r *RedisMQ) Stop() {
	if !r.isRunning {
		return
	}
	close(r.stopChan)
	r.wg.Wait()
	r.isRunning = false
	log.Println("Redis message queue consumer stopped")
}

func (r *RedisMQ) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		default:
			// BRPOPLPUSH moves the event to the processing queue atomically
			result, err := r.client.BRPopLPush(r.ctx, MainQueueName, ProcessingQueueName, 1*time.Second).Result()
			if err != nil {
				if err != redis.Nil {
					log.Printf("failed to fetch event from queue: %v", err)
				}
				continue
			}

			go r.processMessage(result)
		}
	}
}

func (r *RedisMQ) timeoutCheckLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.checkTimeouts()
		}
	}
}

// checkTimeouts requeues events stuck in the processing queue, moving ones
// past the retry budget to the dead-letter queue.
func (r *RedisMQ) checkTimeouts() {
	messages, err := r.client.LRange(r.ctx, ProcessingQueueName, 0, -1).Result()
	if err != nil {
		log.Printf("failed to read processing queue: %v", err)
		return
	}

	now := time.Now().Unix()

	for _, msgData := range messages {
		var event BallotEvent
		if err := json.Unmarshal([]byte(msgData), &event); err != nil {
			log.Printf("failed to parse processing event: %v", err)
			continue
		}

		if now-event.Timestamp > int64(r.processingTimeout.Seconds()) {
			retries, _ := r.client.HGet(r.ctx, RetriesHashName, event.BallotID).Int()

			if retries >= r.maxRetries {
				log.Printf("event %s exceeded max retries, moving to dead letter", event.BallotID)
				r.moveToDeadLetter(msgData)
			} else {
				r.client.HIncrBy(r.ctx, RetriesHashName, event.BallotID, 1)

				event.Timestamp = now
				updatedData, _ := json.Marshal(event)

				r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)

				time.AfterFunc(r.retryDelay, func() {
					r.client.LPush(r.ctx, MainQueueName, updatedData)
					log.Printf("event %s requeued, retry %d", event.BallotID, retries+1)
				})
			}
		}
	}
}

func (r *RedisMQ) processMessage(msgData string) {
	var event BallotEvent
	if err := json.Unmarshal([]byte(msgData), &event); err != nil {
		log.Printf("failed to parse event: %v", err)
		r.moveToDeadLetter(msgData)
		return
	}

	if err := r.processHandler(event); err != nil {
		log.Printf("failed to process event %s: %v", event.BallotID, err)

		retries, _ := r.client.HGet(r.ctx, RetriesHashName, event.BallotID).Int()
		if retries >= r.maxRetries {
			log.Printf("event %s exceeded max retries, moving to dead letter", event.BallotID)
			r.moveToDeadLetter(msgData)
			return
		}

		r.client.HIncrBy(r.ctx, RetriesHashName, event.BallotID, 1)
		event.Timestamp = time.Now().Unix()
		updatedData, _ := json.Marshal(event)

		time.AfterFunc(r.retryDelay, func() {
			r.client.LPush(r.ctx, MainQueueName, updatedData)
			log.Printf("event %s requeued, retry %d", event.BallotID, retries+1)
		})
	}

	r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)
}

func (r *RedisMQ) moveToDeadLetter(msgData string) {
	r.client.LPush(r.ctx, DeadLetterQueueName, msgData)
	r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)
}

// GetQueueStats returns the lengths of the three queues.
func (r *RedisMQ) GetQueueStats() map[string]int64 {
	stats := make(map[string]int64)
	for _, name := range []string{MainQueueName, ProcessingQueueName, DeadLetterQueueName} {
		length, err := r.client.LLen(r.ctx, name).Result()
		if err != nil {
			length = -1
		}
		stats[name] = length
	}
	return stats
}
