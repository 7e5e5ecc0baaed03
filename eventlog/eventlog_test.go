// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package eventlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestBufferedLoggerFlushesAtThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewBuffered(&buf)
	l.FlushAt = 2

	l.Log(EventInput, "door_1 open", nil)
	if buf.Len() != 0 {
		t.Fatal("expected no flush before reaching FlushAt")
	}
	l.Log(EventInput, "door_1 closed", nil)
	if buf.Len() == 0 {
		t.Fatal("expected a flush once FlushAt entries were buffered")
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("expected 2 newline-delimited entries, got: %q", buf.String())
	}
}

func TestBufferedLoggerExplicitFlush(t *testing.T) {
	var buf bytes.Buffer
	l := NewBuffered(&buf)
	l.Log(EventStrike, "T3 release", map[string]interface{}{"label": "T3"})
	if buf.Len() != 0 {
		t.Fatal("expected buffered entry to not be written yet")
	}
	l.Flush()
	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Type != EventStrike || entry.Payload["label"] != "T3" {
		t.Fatalf("entry = %+v, want strike release with label T3", entry)
	}
}

func TestNullLoggerDiscardsEverything(t *testing.T) {
	var l NullLogger
	l.Log(EventSensor, "ignored", nil)
}
