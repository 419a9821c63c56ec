package kafkaavro

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func noopHandler(ctx context.Context, value Event, key string, headers map[string]string, topic string) ([]Message, error) {
	return nil, nil
}

func TestToKebabCase(t *testing.T) {
	cases := map[string]string{
		`UserFeedback`:   `user-feedback`,
		`OrderCreated`:   `order-created`,
		`HTTPServer`:     `http-server`,
		`ParseHTMLInput`: `parse-html-input`,
		`Order`:          `order`,
		`order`:          `order`,
		`APIV2`:          `apiv2`,
	}

	for name, need := range cases {
		if have := toKebabCase(name); have != need {
			t.Errorf(`toKebabCase(%s): need %s, have %s`, name, need, have)
		}
	}
}

func TestRouter_Bind(t *testing.T) {
	router := NewRouter()

	err := router.Bind(noopHandler,
		func() Event { return &UserFeedback{} },
		func() Event { return &OrderCreated{} },
	)
	if err != nil {
		t.Fatal(err)
	}

	need := []string{`user-feedback`, `order-created`}
	if have := router.Topics(); !reflect.DeepEqual(need, have) {
		t.Errorf(`need %v, have %v`, need, have)
	}

	for _, topic := range need {
		b := router.binding(topic)
		if b == nil {
			t.Fatalf(`need binding for topic %s`, topic)
		}
		if b.handler == nil || b.factory == nil {
			t.Errorf(`binding for %s is incomplete`, topic)
		}
	}
}

func TestRouter_DuplicateTopic(t *testing.T) {
	router := NewRouter()

	if err := router.Bind(noopHandler, func() Event { return &UserFeedback{} }); err != nil {
		t.Fatal(err)
	}

	err := router.Bind(noopHandler, func() Event { return &UserFeedback{} })
	var dup *DuplicateTopicError
	if !errors.As(err, &dup) {
		t.Fatalf(`need DuplicateTopicError, have %v`, err)
	}
	if dup.Topic != `user-feedback` {
		t.Errorf(`need topic user-feedback, have %s`, dup.Topic)
	}
}

func TestRouter_BindTopic(t *testing.T) {
	router := NewRouter()

	factory := func() Event { return &ProtoValue{Msg: &wrapperspb.StringValue{}} }
	if err := router.BindTopic(`metrics-raw`, factory, noopHandler); err != nil {
		t.Fatal(err)
	}

	err := router.BindTopic(`metrics-raw`, factory, noopHandler)
	var dup *DuplicateTopicError
	if !errors.As(err, &dup) {
		t.Fatalf(`need DuplicateTopicError, have %v`, err)
	}
}

func TestRouter_BindRejectsBadInput(t *testing.T) {
	router := NewRouter()

	if err := router.Bind(nil, func() Event { return &UserFeedback{} }); err == nil {
		t.Error(`need error for nil handler`)
	}
	if err := router.Bind(noopHandler); err == nil {
		t.Error(`need error for empty alternative set`)
	}
	if err := router.BindTopic(``, func() Event { return &UserFeedback{} }, noopHandler); err == nil {
		t.Error(`need error for empty topic`)
	}
}
