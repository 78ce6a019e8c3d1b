package health

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteText_RoundTripsThroughReadText(t *testing.T) {
	r := New(Options{})
	beat := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.Heartbeat(beat)
	r.Heartbeat(beat.Add(time.Minute))
	r.AttemptFinished(AttemptSkipped)
	r.AttemptFinished(AttemptSkipped)
	r.AttemptFinished(AttemptOK)
	r.CycleFinished("startup", OutcomeExhausted, beat)
	r.CycleFinished("schedule", OutcomeOK, beat.Add(2*time.Minute))
	r.CycleFinished("warmup", OutcomeOK, beat.Add(3*time.Minute))

	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), `sysinv_agent_cycles_total{outcome="ok",trigger="schedule"} 1`) {
		t.Errorf("missing labelled cycle sample:\n%s", buf.String())
	}

	st, err := ReadText(&buf)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if st.Heartbeats != 2 {
		t.Errorf("Heartbeats = %d, want 2", st.Heartbeats)
	}
	if !st.LastHeartbeat.Equal(beat.Add(time.Minute)) {
		t.Errorf("LastHeartbeat = %v", st.LastHeartbeat)
	}
	if !st.LastSuccess.Equal(beat.Add(3 * time.Minute)) {
		t.Errorf("LastSuccess = %v", st.LastSuccess)
	}
	if st.Cycles[OutcomeOK] != 2 || st.Cycles[OutcomeExhausted] != 1 {
		t.Errorf("Cycles = %v", st.Cycles)
	}
	if st.Attempts[AttemptSkipped] != 2 || st.Attempts[AttemptOK] != 1 {
		t.Errorf("Attempts = %v", st.Attempts)
	}
}

func TestWriteText_EmptyRecorder(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Options{}).WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	st, err := ReadText(&buf)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if st.Heartbeats != 0 || !st.LastSuccess.IsZero() || len(st.Cycles) != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestHeartbeat_WritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector", "sysinv.prom")
	r := New(Options{TextfilePath: path})

	r.Heartbeat(time.Unix(1_700_000_000, 0))
	r.Heartbeat(time.Unix(1_700_000_060, 0))

	st, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if st.Heartbeats != 2 {
		t.Errorf("Heartbeats = %d", st.Heartbeats)
	}
	if st.LastHeartbeat.Unix() != 1_700_000_060 {
		t.Errorf("LastHeartbeat = %v", st.LastHeartbeat)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestSystemdNotifications(t *testing.T) {
	var states []string
	r := New(Options{Systemd: true})
	r.notify = func(state string) (bool, error) {
		states = append(states, state)
		return true, nil
	}

	r.Ready()
	r.Heartbeat(time.Now())
	r.Stopping()

	want := []string{"READY=1", "WATCHDOG=1", "STOPPING=1"}
	if strings.Join(states, ",") != strings.Join(want, ",") {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestSystemdDisabled(t *testing.T) {
	r := New(Options{})
	r.notify = func(string) (bool, error) {
		t.Fatal("notify called with systemd disabled")
		return false, errors.New("unreachable")
	}
	r.Ready()
	r.Heartbeat(time.Now())
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.prom")); err == nil {
		t.Fatal("expected error")
	}
}
