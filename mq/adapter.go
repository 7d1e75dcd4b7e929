// Package mq carries ballot-submitted events from the submission handler to
// the turnout broadcaster. Events identify the ballot only, never the voter.
package mq

import (
	"log"
	"sync"
	"time"

	"fraservotes-backend/cache"
)

// BallotEvent is published after a ballot commits.
type BallotEvent struct {
	BallotID  string `json:"ballot_id"`
	Timestamp int64  `json:"timestamp"`
}

// Adapter selects the Redis queue when Redis is available and otherwise falls
// back to an in-process channel, mirroring the cache's mock mode.
type Adapter struct {
	redisMQ     *RedisMQ
	memoryChan  chan BallotEvent
	handler     func(event BallotEvent) error
	stopChan    chan struct{}
	wg          sync.WaitGroup
	initOnce    sync.Once
	initialized bool
	usingRedis  bool
}

// NewAdapter creates an uninitialized adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		memoryChan: make(chan BallotEvent, 256),
		stopChan:   make(chan struct{}),
	}
}

// Initialize picks the backing queue.
func (a *Adapter) Initialize() error {
	a.initOnce.Do(func() {
		client, err := cache.GetClient()
		if err != nil {
			log.Printf("message queue using in-memory mode: %v", err)
			a.initialized = true
			return
		}

		a.redisMQ = NewRedisMQ(client)
		a.usingRedis = true
		a.initialized = true
		log.Println("message queue using Redis")
	})
	return nil
}

// RegisterHandler sets the consumer callback and starts consuming.
func (a *Adapter) RegisterHandler(handler func(event BallotEvent) error) error {
	a.handler = handler

	if a.usingRedis {
		a.redisMQ.RegisterHandler(handler)
		return a.redisMQ.Start()
	}

	a.wg.Add(1)
	go a.memoryLoop()
	return nil
}

func (a *Adapter) memoryLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopChan:
			return
		case event := <-a.memoryChan:
			if err := a.handler(event); err != nil {
				log.Printf("failed to process event %s: %v", event.BallotID, err)
			}
		}
	}
}

// Publish enqueues a ballot event. Delivery failures are logged, not
// propagated: the ballot is already durable and the event only drives the
// turnout dashboard.
func (a *Adapter) Publish(ballotID string) {
	event := BallotEvent{
		BallotID:  ballotID,
		Timestamp: time.Now().Unix(),
	}

	if a.usingRedis {
		if err := a.redisMQ.Send(event); err != nil {
			log.Printf("failed to publish ballot event: %v", err)
		}
		return
	}

	select {
	case a.memoryChan <- event:
	default:
		log.Printf("in-memory event queue full, dropping event for ballot %s", ballotID)
	}
}

// GetQueueStats reports queue depths for the status endpoint.
func (a *Adapter) GetQueueStats() map[string]int64 {
	if a.usingRedis {
		return a.redisMQ.GetQueueStats()
	}
	return map[string]int64{"memory_queue": int64(len(a.memoryChan))}
}

// Close stops the consumer.
func (a *Adapter) Close() {
	if a.usingRedis {
		a.redisMQ.Stop()
		return
	}
	if a.handler != nil {
		close(a.stopChan)
		a.wg.Wait()
	}
}
