package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	*r.log = append(*r.log, "start:"+r.name)
	return r.startErr
}

func (r recordingService) Stop(context.Context) error {
	*r.log = append(*r.log, "stop:"+r.name)
	return nil
}

func TestManagerOrdersLifecycle(t *testing.T) {
	var log []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, log: &log}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recordingService{name: "b", log: &log}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(recordingService{name: "late", log: &log}); err == nil {
		t.Fatalf("expected registration after start to fail")
	}
	for _, st := range m.Status() {
		if st.State != StateRunning {
			t.Fatalf("expected %s running, got %s", st.Name, st.State)
		}
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("unexpected lifecycle %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("step %d: want %s, got %s", i, want[i], log[i])
		}
	}
}

func TestManagerRollsBackFailedStart(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := NewManager()
	_ = m.Register(recordingService{name: "a", log: &log})
	_ = m.Register(recordingService{name: "b", log: &log, startErr: boom})
	_ = m.Register(recordingService{name: "c", log: &log})

	if err := m.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	want := []string{"start:a", "start:b", "stop:a"}
	if len(log) != len(want) || log[2] != "stop:a" {
		t.Fatalf("unexpected lifecycle %v", log)
	}
	status := m.Status()
	if status[1].State != StateFailed || status[1].Error == "" {
		t.Fatalf("expected failed status for b, got %#v", status[1])
	}
	if status[2].State != StateRegistered {
		t.Fatalf("expected c untouched, got %#v", status[2])
	}
}

func TestReadHostStatus(t *testing.T) {
	status := ReadHostStatus(context.Background())
	if status.CPUCount <= 0 || status.Goroutines <= 0 || status.OS == "" {
		t.Fatalf("unexpected host status %#v", status)
	}
}
