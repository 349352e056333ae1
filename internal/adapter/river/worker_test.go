package river_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	goriver "github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	riveradapter "github.com/neomorfeo/delayguard/internal/adapter/river"
	"github.com/neomorfeo/delayguard/internal/domain"
)

func TestNotificationWorker_LogsClaim(t *testing.T) {
	var buf bytes.Buffer
	worker := &riveradapter.NotificationWorker{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	args := riveradapter.NewNotificationJobArgs(domain.Claimed(5, buyer, 3, domain.NewAmount(30)))
	job := &goriver.Job[riveradapter.NotificationJobArgs]{
		JobRow: &rivertype.JobRow{ID: 11, Attempt: 1},
		Args:   args,
	}

	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decoding log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "ledger notification" || line["kind"] != "claimed" {
		t.Errorf("log line = %v", line)
	}
	if line["amount"] != "30" || line["insured"] != buyer.String() {
		t.Errorf("amount = %v, insured = %v", line["amount"], line["insured"])
	}
	if line["policy_id"] != float64(5) || line["days"] != float64(3) {
		t.Errorf("policy_id = %v, days = %v", line["policy_id"], line["days"])
	}
}

func TestNotificationWorker_DefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	job := &goriver.Job[riveradapter.NotificationJobArgs]{
		JobRow: &rivertype.JobRow{ID: 12, Attempt: 2},
		Args:   riveradapter.NewNotificationJobArgs(domain.DelayStatusSet(7, true)),
	}
	if err := (&riveradapter.NotificationWorker{}).Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decoding log line %q: %v", buf.String(), err)
	}
	if line["kind"] != string(domain.NotificationDelayStatusSet) || line["delayed"] != true {
		t.Errorf("log line = %v", line)
	}
	if line["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", line["attempt"])
	}
}
