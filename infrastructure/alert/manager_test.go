package alert

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 5*time.Minute)

	if err := mgr.SendWarning("var breach", map[string]interface{}{"var": 12.5}); err != nil {
		t.Fatalf("SendWarning failed: %v", err)
	}
	if mock.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", mock.Count())
	}
	a := mock.Alerts()[0]
	if a.Level != LevelWarning {
		t.Errorf("level = %s, want WARNING", a.Level)
	}
	if a.Fields["var"] != 12.5 {
		t.Errorf("field var = %v", a.Fields["var"])
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestThrottle(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr.throttle.now = func() time.Time { return now }

	_ = mgr.SendWarning("var breach", map[string]interface{}{"symbol": "XYZ"})
	_ = mgr.SendWarning("var breach", map[string]interface{}{"symbol": "XYZ"})
	if mock.Count() != 1 {
		t.Fatalf("duplicate alert should be throttled, got %d", mock.Count())
	}

	// 不同 symbol 不互相抑制
	_ = mgr.SendWarning("var breach", map[string]interface{}{"symbol": "ABC"})
	if mock.Count() != 2 {
		t.Fatalf("other symbol should pass, got %d", mock.Count())
	}

	now = now.Add(time.Minute)
	_ = mgr.SendWarning("var breach", map[string]interface{}{"symbol": "XYZ"})
	if mock.Count() != 3 {
		t.Fatalf("alert after interval should pass, got %d", mock.Count())
	}

	mgr.ResetThrottle()
	_ = mgr.SendWarning("var breach", map[string]interface{}{"symbol": "XYZ"})
	if mock.Count() != 4 {
		t.Fatalf("reset should clear throttle, got %d", mock.Count())
	}
}

func TestZeroIntervalNeverThrottles(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 0)
	for i := 0; i < 3; i++ {
		_ = mgr.SendInfo("same", nil)
	}
	if mock.Count() != 3 {
		t.Errorf("expected 3 alerts, got %d", mock.Count())
	}
}

func TestChannelFailures(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	good := NewMockChannel("good")

	mgr := NewManager([]Channel{bad, good}, 0)
	if err := mgr.SendCritical("hedge failed", nil); err != nil {
		t.Errorf("partial failure should not error: %v", err)
	}

	only := NewManager([]Channel{bad}, 0)
	if err := only.SendCritical("hedge failed", nil); err == nil {
		t.Error("expected error when all channels fail")
	}

	only.AddChannel(good)
	if names := only.Channels(); len(names) != 2 || names[1] != "good" {
		t.Errorf("channels = %v", names)
	}
}

func TestLogChannel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ch := NewLogChannel("log", zap.New(core))
	mgr := NewManager([]Channel{ch}, 0)

	_ = mgr.SendWarning("var breach", map[string]interface{}{"run_id": "r1"})
	_ = mgr.SendCritical("hedge failed", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].Message != "var breach" {
		t.Errorf("unexpected first entry: %+v", entries[0].Entry)
	}
	if entries[0].ContextMap()["run_id"] != "r1" {
		t.Errorf("run_id field missing: %v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("critical should log at error, got %s", entries[1].Level)
	}
}
