package kafkaavro

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/tryfix/log"
)

func setupSession(t *testing.T) (*Session, *mocks.SyncProducer, *mocks.AsyncProducer) {
	t.Helper()

	codec, registry := setupCodec()
	registry.nextID = 7
	if err := codec.cache.RegisterSchemas(&UserFeedback{UserID: `seed`}); err != nil {
		t.Fatal(err)
	}

	syncProducer := mocks.NewSyncProducer(t, nil)
	asyncProducer := mocks.NewAsyncProducer(t, nil)

	s := newSession([]string{`localhost:9092`}, sarama.NewConfig(), codec, log.NewNoopLogger())
	s.sync = syncProducer
	s.async = asyncProducer
	s.started = true

	return s, syncProducer, asyncProducer
}

func TestSession_SendWait(t *testing.T) {
	s, syncProducer, _ := setupSession(t)

	syncProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if val[0] != magicByte {
			t.Errorf(`need framed payload, have leading byte %#02x`, val[0])
		}
		if id := binary.BigEndian.Uint32(val[1:5]); id != 7 {
			t.Errorf(`need schema id 7, have %d`, id)
		}
		return nil
	})

	err := s.Send(`user-feedback`, `test-user-id`, &UserFeedback{UserID: `test-user-id`, Text: `hi`}, map[string]string{`trace_id`: `t1`}, true)
	if err != nil {
		t.Fatal(err)
	}

	if err := syncProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSession_SendAsync(t *testing.T) {
	s, _, asyncProducer := setupSession(t)

	asyncProducer.ExpectInputAndSucceed()

	err := s.Send(`user-feedback`, nil, &UserFeedback{UserID: `test-user-id`}, nil, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := asyncProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSession_SendEncodeFailureBeforePublish(t *testing.T) {
	s, syncProducer, asyncProducer := setupSession(t)

	if err := s.Send(`user-feedback`, nil, &UserFeedback{}, nil, true); err == nil {
		t.Fatal(`need validation error before publish`)
	}

	// no expectations were set; Close fails if anything was published
	if err := syncProducer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := asyncProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSession_UnstartedSendFails(t *testing.T) {
	codec, _ := setupCodec()
	s := newSession(nil, sarama.NewConfig(), codec, log.NewNoopLogger())

	if err := s.start(); err != nil {
		t.Fatal(err)
	}
	if s.Started() {
		t.Fatal(`session with no brokers must stay unstarted`)
	}

	if err := s.Send(`user-feedback`, nil, nil, nil, true); err == nil {
		t.Fatal(`need error from unstarted session`)
	}
}

func TestRecordHeaders(t *testing.T) {
	if headers := recordHeaders(nil); headers != nil {
		t.Errorf(`need nil for empty headers, have %v`, headers)
	}

	have := recordHeaders(map[string]string{`b`: `2`, `a`: `1`})
	need := []sarama.RecordHeader{
		{Key: []byte(`a`), Value: []byte(`1`)},
		{Key: []byte(`b`), Value: []byte(`2`)},
	}
	if !reflect.DeepEqual(need, have) {
		t.Errorf(`need %v, have %v`, need, have)
	}
}
