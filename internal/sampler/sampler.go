// Package sampler polls the tilt sensor in the background while the
// calibration server is up.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var afterFn = time.After

// DefaultInterval is the calibration-mode sampling period.
const DefaultInterval = 3 * time.Second

var errNoSensor = errors.New("tilt sensor unavailable")

// Source yields a tilt angle in degrees.
type Source interface {
	Tilt() (float64, error)
}

type Snapshot struct {
	Valid     bool      `json:"valid"`
	Tilt      float64   `json:"tilt"`
	SampledAt time.Time `json:"sampled_at,omitempty"`
	Samples   uint64    `json:"samples"`
	Failures  uint64    `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

type Service struct {
	src      Source
	interval time.Duration

	mu   sync.RWMutex
	snap Snapshot

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a sampler. A nil src is allowed: every tick then records the
// sensor as unavailable.
func New(src Source, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{src: src, interval: interval, stopCh: make(chan struct{})}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("sampler: service is nil")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// Close stops the loop and waits for it to exit.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	for {
		s.sampleOnce()
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-afterFn(s.interval):
		}
	}
}

func (s *Service) sampleOnce() {
	tilt, err := s.read()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snap.Failures++
		s.snap.LastError = err.Error()
		log.Printf("sampler: tilt read failed: %v", err)
		return
	}
	s.snap.Valid = true
	s.snap.Tilt = tilt
	s.snap.SampledAt = time.Now().UTC()
	s.snap.Samples++
	s.snap.LastError = ""
}

// read converts a sensor panic into an error so the loop keeps going.
func (s *Service) read() (tilt float64, err error) {
	if s.src == nil {
		return 0, errNoSensor
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sensor panic: %v", r)
		}
	}()
	return s.src.Tilt()
}
