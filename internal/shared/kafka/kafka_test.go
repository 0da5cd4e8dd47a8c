package kafka

import (
	"context"
	"testing"
)

type captureWriter struct{ msgs []Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestBrokers(t *testing.T) {
	got := Brokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("brokers = %q", got)
	}
}

func TestWriteJSONKeysByMatch(t *testing.T) {
	w := &captureWriter{}
	if err := WriteJSON(context.Background(), w, "m1", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "m1" || w.msgs[0].Time.IsZero() {
		t.Fatalf("msgs = %+v", w.msgs)
	}
}
