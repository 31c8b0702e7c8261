package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

type Handler func([]models.Notification) error

// NotificationQueue fans persisted notification batches out to subscribers
// on a single dispatcher goroutine.
type NotificationQueue struct {
	items    chan []models.Notification
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	logger   *logrus.Logger
	handlers []Handler
}

func NewNotificationQueue(bufferSize int, logger *logrus.Logger) *NotificationQueue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &NotificationQueue{
		items:    make(chan []models.Notification, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]Handler, 0),
	}
}

// Push adds a batch without blocking the caller.
func (q *NotificationQueue) Push(batch []models.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed notifications to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *NotificationQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

func (q *NotificationQueue) Start() {
	q.wg.Add(1)
	go q.process()
}

func (q *NotificationQueue) process() {
	defer q.wg.Done()
	for {
		select {
		case batch, ok := <-q.items:
			if !ok {
				return
			}
			q.dispatch(batch)
		case <-q.done:
			// deliver what was accepted before Close
			for batch := range q.items {
				q.dispatch(batch)
			}
			return
		}
	}
}

func (q *NotificationQueue) dispatch(batch []models.Notification) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process notifications")
		}
	}
}

// Close stops accepting batches and waits for the dispatcher to drain.
func (q *NotificationQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	close(q.items)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

func (q *NotificationQueue) Len() int {
	return len(q.items)
}

func (q *NotificationQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
