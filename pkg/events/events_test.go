package events

import (
	"testing"
)

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		changeType string
		want       string
		wantErr    bool
	}{
		{ChangeInsert, VisitorsInserted, false},
		{ChangeUpdate, VisitorsUpdated, false},
		{ChangeDelete, VisitorsDeleted, false},
		{"TRUNCATE", "", true},
	}

	for _, tt := range tests {
		got, err := SubjectFor(tt.changeType)
		if (err != nil) != tt.wantErr {
			t.Errorf("SubjectFor(%q) error = %v, wantErr %v", tt.changeType, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SubjectFor(%q) = %q, want %q", tt.changeType, got, tt.want)
		}
	}
}

func TestDecodeChange(t *testing.T) {
	msg := &Message{
		Subject: VisitorsUpdated,
		Data:    []byte(`{"type":"UPDATE","table":"visitors","record_id":"abc","occurred_at":"2026-01-15T10:00:00Z"}`),
	}
	ev, err := DecodeChange(msg)
	if err != nil {
		t.Fatalf("DecodeChange: %v", err)
	}
	if ev.Type != ChangeUpdate || ev.RecordID != "abc" || ev.Table != "visitors" {
		t.Errorf("got %+v", ev)
	}

	if _, err := DecodeChange(&Message{Subject: VisitorsUpdated, Data: []byte(`{}`)}); err == nil {
		t.Error("expected error for event without type")
	}
	if _, err := DecodeChange(&Message{Subject: VisitorsUpdated, Data: []byte(`not json`)}); err == nil {
		t.Error("expected error for malformed payload")
	}
}
