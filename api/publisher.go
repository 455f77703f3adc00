package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"commboard-api/domain"
)

var (
	publisherOnce    sync.Once
	eventJobs        chan domain.BoardEvent
	publishTimeout   time.Duration
	handoffTimeout   time.Duration
	publisherBg      = context.Background()
	globalSink       EventSink
	globalLog        *log.Logger
	publisherWG      sync.WaitGroup
	publisherWorkers int
)

// initEventPublisher starts the background workers that deliver board-change
// events to the queue. Events are advisory: a failed delivery is logged and
// dropped, never surfaced to the originating request.
func initEventPublisher(sink EventSink, logger *log.Logger) {
	publisherOnce.Do(func() {
		if logger == nil {
			panic("logger is not initialized")
		}
		globalSink = sink
		globalLog = logger

		publisherWorkers = envInt("EVENT_WORKERS", 8)
		buf := envInt("EVENT_BUFFER", 1024)
		publishTimeout = envDur("EVENT_PUBLISH_TIMEOUT", 30*time.Second)
		handoffTimeout = envDur("EVENT_HANDOFF_TIMEOUT", 10*time.Millisecond)

		eventJobs = make(chan domain.BoardEvent, buf)
		for i := 0; i < publisherWorkers; i++ {
			publisherWG.Add(1)
			go eventWorker(eventJobs)
		}
		globalLog.Infof("event publisher started, workers: %d, buffer: %d, timeout: %v", publisherWorkers, buf, publishTimeout)
	})
}

// shutdownEventPublisher stops worker goroutines and clears shared state.
// It is intended for tests.
func shutdownEventPublisher() {
	if eventJobs != nil {
		close(eventJobs)
		eventJobs = nil
	}
	publisherWG.Wait()

	globalSink = nil
	globalLog = nil
	publisherWorkers = 0
	publishTimeout = 0
	handoffTimeout = 0
	publisherOnce = sync.Once{}
	publisherWG = sync.WaitGroup{}
}

func eventWorker(jobCh <-chan domain.BoardEvent) {
	defer publisherWG.Done()
	for ev := range jobCh {
		ctx, cancel := context.WithTimeout(publisherBg, publishTimeout)
		err := globalSink.EnqueueBoardEvent(ctx, ev)
		cancel()
		if err != nil {
			globalLog.Errorf("event publish failed, err: %v, type: %s, board: %s", err, ev.Type, ev.BoardID)
		}
	}
}

// publishEvent hands the event to a worker, waiting briefly when the buffer
// is full. A false return means the event was dropped.
func publishEvent(ev domain.BoardEvent) bool {
	if eventJobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(eventJobs, ev); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(eventJobs, ev, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan domain.BoardEvent, ev domain.BoardEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.BoardEvent, ev domain.BoardEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}
