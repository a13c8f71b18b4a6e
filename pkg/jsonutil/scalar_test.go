package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestScalarString(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   string
		wantOK bool
	}{
		{name: "string value", input: json.RawMessage(`"positive"`), want: "positive", wantOK: true},
		{name: "string is trimmed", input: json.RawMessage(`"  formal "`), want: "formal", wantOK: true},
		{name: "integer value", input: json.RawMessage(`1`), want: "1", wantOK: true},
		{name: "float value", input: json.RawMessage(`0.75`), want: "0.75", wantOK: true},
		{name: "boolean", input: json.RawMessage(`true`), want: "true", wantOK: true},
		{name: "null", input: json.RawMessage(`null`), wantOK: false},
		{name: "empty raw", input: nil, wantOK: false},
		{name: "blank string", input: json.RawMessage(`"   "`), wantOK: false},
		{name: "object", input: json.RawMessage(`{"label":"positive"}`), wantOK: false},
		{name: "array", input: json.RawMessage(`["positive"]`), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ScalarString(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ScalarString(%s) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ScalarString(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStringField(t *testing.T) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(`{"tone":"informal","sentiment":2}`), &obj); err != nil {
		t.Fatal(err)
	}

	if got, ok := StringField(obj, "tone"); !ok || got != "informal" {
		t.Errorf("tone = %q, %v", got, ok)
	}
	if got, ok := StringField(obj, "sentiment"); !ok || got != "2" {
		t.Errorf("sentiment = %q, %v", got, ok)
	}
	if _, ok := StringField(obj, "missing"); ok {
		t.Error("expected missing key to report false")
	}
}
