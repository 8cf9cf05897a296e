package domain

import "testing"

func TestIngestRecordLocation(t *testing.T) {
	tests := []struct {
		name   string
		record IngestRecord
		key    string
		ok     bool
	}{
		{name: "plain", record: NewIngestRecord("bills", "a.pdf"), key: "a.pdf", ok: true},
		{name: "leading space kept", record: NewIngestRecord("bills", " a.pdf"), key: " a.pdf", ok: true},
		{name: "blank key", record: NewIngestRecord("bills", " \t"), key: " \t", ok: false},
		{name: "missing key", record: NewIngestRecord("bills", ""), key: "", ok: false},
		{name: "missing bucket", record: NewIngestRecord("", "a.pdf"), key: "a.pdf", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, key, ok := tt.record.Location()
			if key != tt.key || ok != tt.ok {
				t.Fatalf("Location() key=%q ok=%v, want key=%q ok=%v", key, ok, tt.key, tt.ok)
			}
		})
	}
}
