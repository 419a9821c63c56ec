package kafkaavro

import (
	"fmt"
	"sort"
	"sync"

	"github.com/IBM/sarama"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// Session is the shared publishing endpoint. It is created once per Client
// and started lazily on first use; with no brokers configured it stays
// unstarted and every Send fails loudly instead of dropping silently.
type Session struct {
	brokers []string
	config  *sarama.Config
	codec   *Codec
	logger  log.Logger

	mu      sync.Mutex
	sync    sarama.SyncProducer
	async   sarama.AsyncProducer
	started bool
}

func newSession(brokers []string, config *sarama.Config, codec *Codec, logger log.Logger) *Session {
	return &Session{
		brokers: brokers,
		config:  config,
		codec:   codec,
		logger:  logger,
	}
}

// start connects both the ack-waiting and the fire-and-forget producers.
// Calling it on an already started session is a no-op.
func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if len(s.brokers) == 0 {
		s.logger.Warn(`no kafka brokers configured, producer session left unstarted`)
		return nil
	}

	syncCfg := *s.config
	syncCfg.Producer.Return.Successes = true
	syncProducer, err := sarama.NewSyncProducer(s.brokers, &syncCfg)
	if err != nil {
		return errors.WithPrevious(err, `sync producer init failed`)
	}

	asyncCfg := *s.config
	asyncCfg.Producer.Return.Successes = false
	asyncCfg.Producer.Return.Errors = true
	asyncProducer, err := sarama.NewAsyncProducer(s.brokers, &asyncCfg)
	if err != nil {
		_ = syncProducer.Close()
		return errors.WithPrevious(err, `async producer init failed`)
	}

	go func() {
		for err := range asyncProducer.Errors() {
			s.logger.Error(fmt.Sprintf(`async publish to [%s] failed due to %s`, err.Msg.Topic, err.Err))
		}
	}()

	s.sync = syncProducer
	s.async = asyncProducer
	s.started = true

	s.logger.Info(fmt.Sprintf(`producer session started on %v`, s.brokers))

	return nil
}

// Started reports whether the session is connected to a broker.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Send encodes key and value and publishes to topic. With wait the call
// blocks until the broker acknowledges the write; without it the message is
// handed to the producer's internal buffering and possible loss on that
// path is accepted by the caller.
func (s *Session) Send(topic string, key, value interface{}, headers map[string]string, wait bool) error {
	s.mu.Lock()
	started, syncProducer, asyncProducer := s.started, s.sync, s.async
	s.mu.Unlock()

	if !started {
		return errors.New(`producer session not started`)
	}

	valueByt, err := s.codec.EncodeValue(value)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Headers: recordHeaders(headers),
	}
	if keyByt := encodeKey(key); keyByt != nil {
		msg.Key = sarama.ByteEncoder(keyByt)
	}
	if valueByt != nil {
		msg.Value = sarama.ByteEncoder(valueByt)
	}

	if !wait {
		asyncProducer.Input() <- msg
		return nil
	}

	if _, _, err := syncProducer.SendMessage(msg); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`publish to [%s] failed`, topic))
	}

	return nil
}

// Close shuts both producers down. The session cannot be restarted.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if err := s.sync.Close(); err != nil {
		return err
	}

	return s.async.Close()
}

// recordHeaders renders the header mapping in deterministic key order.
func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}

	return out
}
