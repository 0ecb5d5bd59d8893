package event

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

type failingSink struct{ err error }

func (f failingSink) Emit(context.Context, Event) error { return f.err }

func TestMulti_DeliversToAllAndCombinesErrors(t *testing.T) {
	rec := &Recorder{}
	errA, errB := errors.New("a"), errors.New("b")
	m := Multi{failingSink{errA}, rec, NewLogSink(zap.NewNop().Sugar()), failingSink{errB}}

	err := m.Emit(context.Background(), Event{Type: TypeCompleted, RunID: "r"})
	if len(multierr.Errors(err)) != 2 {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("combined error lost a cause: %v", err)
	}
	if len(rec.Events()) != 1 {
		t.Error("recorder skipped after a failing sink")
	}
}

func TestTypeFor(t *testing.T) {
	cases := map[string]string{
		entity.StatusCompleted: TypeCompleted,
		entity.StatusPartial:   TypePartial,
		entity.StatusFailed:    TypeFailed,
	}
	for status, want := range cases {
		if got := TypeFor(status); got != want {
			t.Errorf("TypeFor(%s) = %s", status, got)
		}
	}
}

func TestNewRedisSink_RequiresAddress(t *testing.T) {
	if _, err := NewRedisSink(context.Background(), RedisConfig{}); err == nil {
		t.Error("expected error without address")
	}
}
