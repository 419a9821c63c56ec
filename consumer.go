package kafkaavro

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/tryfix/log"
)

// HeaderProcessedTopic names the inbound topic an outgoing message was
// produced from. The loop injects it into every republished message and it
// wins over a handler-supplied header of the same name.
const HeaderProcessedTopic = `processed_topic`

// sender is the publish capability the loop needs from the producer
// session.
type sender interface {
	Send(topic string, key, value interface{}, headers map[string]string, wait bool) error
}

// Loop drives the subscribe/poll/process/produce/commit cycle for one
// Router. Records are processed one at a time; the only concurrency a Loop
// has is with other Loops, with which it shares the schema cache and the
// producer session.
type Loop struct {
	router     *Router
	codec      *Codec
	producer   sender
	logger     log.Logger
	retryDelay time.Duration

	group  sarama.ConsumerGroup
	topics []string
	inert  bool
	done   chan struct{}
}

// Consume derives topics from the router's bindings, opens a consumer group
// subscription and starts the processing loop. With no brokers configured
// it returns an inert, unsubscribed loop without blocking. With no bindings
// it subscribes to every non-internal topic visible on the cluster.
func (c *Client) Consume(ctx context.Context, router *Router) (*Loop, error) {
	l := &Loop{
		router:     router,
		codec:      c.codec,
		logger:     c.logger.NewLog(log.Prefixed(`consumer`)),
		retryDelay: c.config.RetryDelay,
		topics:     router.Topics(),
		done:       make(chan struct{}),
	}

	if len(c.config.Brokers) == 0 {
		l.logger.Warn(`no kafka brokers configured, consumer loop left unsubscribed`)
		l.inert = true
		close(l.done)
		return l, nil
	}

	session, err := c.Producer()
	if err != nil {
		return nil, err
	}
	l.producer = session

	if len(l.topics) == 0 {
		topics, err := allTopics(c.config.Brokers, c.saramaCfg)
		if err != nil {
			return nil, err
		}
		l.topics = topics
		l.logger.Warn(fmt.Sprintf(`no topics derivable from bindings, subscribing to all %d cluster topics`, len(topics)))
	}

	group, err := sarama.NewConsumerGroup(c.config.Brokers, c.config.GroupID, c.saramaCfg)
	if err != nil {
		return nil, err
	}
	l.group = group

	router.Print(l.logger)
	l.logger.Info(fmt.Sprintf(`subscribed to %v as group [%s]`, l.topics, c.config.GroupID))

	go l.run(ctx)

	return l, nil
}

// Subscribed reports whether the loop holds a live subscription.
func (l *Loop) Subscribed() bool { return !l.inert }

// Done is closed when the loop has terminated.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Close tears the subscription down and stops the loop.
func (l *Loop) Close() error {
	if l.group == nil {
		return nil
	}
	return l.group.Close()
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	handler := &groupHandler{loop: l}
	for {
		if ctx.Err() != nil {
			return
		}

		// a session error after a processing failure resumes from the
		// last committed offset, redelivering the failed record
		if err := l.group.Consume(ctx, l.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			l.logger.Error(fmt.Sprintf(`consume session failed due to %s`, err))
			select {
			case <-time.After(l.retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

type groupHandler struct {
	loop *Loop
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes records sequentially. Committing happens only
// after every outgoing message of a record has been published; a processing
// failure waits the retry delay and aborts the session so the group rejoins
// at the last committed offset.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	l := h.loop

	for m := range claim.Messages() {
		commit, err := l.process(sess.Context(), m)
		if err != nil {
			l.logger.Error(fmt.Sprintf(`error processing message (%s - %s): %s`, m.Topic, m.Key, err))
			select {
			case <-time.After(l.retryDelay):
			case <-sess.Context().Done():
			}
			return err
		}

		if commit {
			sess.MarkOffset(m.Topic, m.Partition, m.Offset+1, ``)
			sess.Commit()
		}
	}

	return nil
}

// process handles a single record. It reports whether the record's offset
// may be committed; skipped records return commit=false with a nil error
// and are covered by the next successful commit.
func (l *Loop) process(ctx context.Context, m *sarama.ConsumerMessage) (bool, error) {
	b := l.router.binding(m.Topic)
	if b == nil {
		l.logger.Warn(fmt.Sprintf(`no handler bound for topic [%s], skipping`, m.Topic))
		return false, nil
	}

	key, err := decodeKey(m.Key)
	if err != nil {
		l.logger.Warn(fmt.Sprintf(`error decoding message (%s - %s): %s`, m.Topic, m.Key, err))
		return false, nil
	}

	value, err := l.codec.DecodeValue(m.Value, b.factory)
	if err != nil {
		var framing *FramingError
		if errors.As(err, &framing) {
			l.logger.Warn(fmt.Sprintf(`error decoding message (%s - %s): %s`, m.Topic, key, err))
			return false, nil
		}
		return false, err
	}

	headers := make(map[string]string, len(m.Headers))
	for _, hdr := range m.Headers {
		if hdr != nil {
			headers[string(hdr.Key)] = string(hdr.Value)
		}
	}

	messages, err := b.handler(ctx, value, key, headers, m.Topic)
	if err != nil {
		return false, err
	}

	for _, out := range messages {
		if out.Topic == `` {
			return false, errors.New(`kafkaavro: outgoing message has no topic`)
		}

		merged := make(map[string]string, len(out.Headers)+1)
		for k, v := range out.Headers {
			merged[k] = v
		}
		merged[HeaderProcessedTopic] = m.Topic

		if err := l.producer.Send(out.Topic, out.Key, out.Value, merged, true); err != nil {
			return false, err
		}
	}

	return true, nil
}

// allTopics lists every topic on the cluster except internal ones, used as
// the catch-all subscription when no topics were derivable.
func allTopics(brokers []string, cfg *sarama.Config) ([]string, error) {
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	names, err := client.Topics()
	if err != nil {
		return nil, err
	}

	topics := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, `__`) {
			continue
		}
		topics = append(topics, name)
	}

	return topics, nil
}
