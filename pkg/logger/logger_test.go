package logger

import (
	"context"
	"testing"

	"github.com/roguepikachu/nibb/pkg/ctxutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestEntriesCarryCallContext(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.DebugLevel)

	ctx := ctxutil.WithOperation(ctxutil.WithCallID(context.Background(), "call-7"), "save")
	Error(ctx, "save failed: %s", "boom")

	last := hook.LastEntry()
	if last == nil {
		t.Fatal("expected an entry")
	}
	if last.Message != "save failed: boom" {
		t.Fatalf("message mismatch: %q", last.Message)
	}
	if last.Data["call_id"] != "call-7" {
		t.Fatalf("call_id missing: %+v", last.Data)
	}
	if last.Data["op"] != "save" {
		t.Fatalf("op missing: %+v", last.Data)
	}
}

func TestEntriesWithoutCallContext(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	Info(context.Background(), "plain")
	last := hook.LastEntry()
	if last == nil {
		t.Fatal("expected an entry")
	}
	if _, ok := last.Data["call_id"]; ok {
		t.Fatalf("unexpected call_id: %+v", last.Data)
	}
}

func TestWithAndWithField(t *testing.T) {
	ctx := context.Background()
	if e := With(ctx, map[string]any{"k": "v"}); e == nil || e.Data["k"] != "v" {
		t.Fatalf("With lost field: %+v", e)
	}
	if e := With(ctx, nil); e == nil {
		t.Fatal("expected non-nil entry even with nil map")
	}
	if e := WithField(ctx, "k2", 2); e == nil || e.Data["k2"] != 2 {
		t.Fatalf("WithField lost field: %+v", e)
	}
}

func TestInitLogging(t *testing.T) {
	defer logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	defer logrus.SetLevel(logrus.InfoLevel)

	InitLogging("warn", "json")
	if logrus.GetLevel() != logrus.WarnLevel {
		t.Fatalf("want warn, got %s", logrus.GetLevel())
	}
	if _, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter")
	}

	InitLogging("nonsense", "")
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Fatalf("invalid level should fall back to info, got %s", logrus.GetLevel())
	}

	InitLogging("", "text")
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Fatalf("empty level should be info, got %s", logrus.GetLevel())
	}
}

func TestConcurrentLogging(t *testing.T) {
	ctx := context.Background()
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			WithField(ctx, "goroutine", id).Debug("concurrent log message")
			Debug(ctx, "global log message from goroutine %d", id)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
