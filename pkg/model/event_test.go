package model

import (
	"encoding/json"
	"testing"
)

func TestParseAxisOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"tpgcz", "tpgcz", false},
		{"tcz", "tcz", false},
		{" zct ", "zct", false},
		{"", "", true},
		{"tpx", "", true},
		{"ttc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAxisOrder(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAxisOrder(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		s := ""
		for _, a := range got {
			s += a.String()
		}
		if s != tt.want {
			t.Errorf("ParseAxisOrder(%q) = %q, want %q", tt.in, s, tt.want)
		}
	}
}

func TestEvent_ValueAndSetValue(t *testing.T) {
	var e Event
	if e.Value(AxisTime) != nil {
		t.Fatal("unset time should be nil")
	}
	if !e.SetValue(AxisTime, 1.5) || !e.SetValue(AxisChannel, "DAPI") ||
		!e.SetValue(AxisZ, 2.0) || !e.SetValue(AxisPosition, 3) || !e.SetValue(AxisGroup, "A1") {
		t.Fatal("SetValue rejected a well-typed value")
	}
	if e.SetValue(AxisPosition, "3") {
		t.Error("SetValue accepted a string for the position axis")
	}

	checks := map[Axis]any{AxisTime: 1.5, AxisChannel: "DAPI", AxisZ: 2.0, AxisPosition: 3, AxisGroup: "A1"}
	for a, want := range checks {
		if got := e.Value(a); got != want {
			t.Errorf("Value(%s) = %v, want %v", a, got, want)
		}
	}
	if got := e.String(); got != "Event(t=1.5 p=3 g=A1 c=DAPI z=2)" {
		t.Errorf("String() = %q", got)
	}
}

func TestEvent_CloneIsIndependent(t *testing.T) {
	e := Event{
		TargetTime:  Ptr(1.0),
		AttachIndex: map[Axis]int{AxisChannel: 0},
		Payload:     map[string]any{"roi": 4},
	}
	c := e.Clone()
	*c.TargetTime = 9
	c.AttachIndex[AxisChannel] = 5
	c.Payload["roi"] = 7

	if *e.TargetTime != 1.0 {
		t.Errorf("original TargetTime mutated: %v", *e.TargetTime)
	}
	if e.AttachIndex[AxisChannel] != 0 {
		t.Errorf("original AttachIndex mutated: %v", e.AttachIndex)
	}
	if e.Payload["roi"] != 4 {
		t.Errorf("original Payload mutated: %v", e.Payload)
	}
}

func TestEvent_SameAttributes(t *testing.T) {
	a := Event{Exposure: Ptr(10.0), ResetClock: true}
	b := Event{Exposure: Ptr(10.0), ResetClock: true, Payload: map[string]any{"x": 1}}
	if !a.SameAttributes(b) {
		t.Error("payload must not affect attribute equality")
	}
	b.Exposure = nil
	if a.SameAttributes(b) {
		t.Error("differing exposure compared equal")
	}
}

func TestEvent_JSONRoundTripKeepsAttachIndex(t *testing.T) {
	in := `{"channel":"FITC","attach_index":{"t":2}}`
	var e Event
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Channel == nil || *e.Channel != "FITC" {
		t.Errorf("Channel = %v, want FITC", e.Channel)
	}
	if e.AttachIndex[AxisTime] != 2 {
		t.Errorf("AttachIndex = %v, want t:2", e.AttachIndex)
	}
	if _, ok := e.Time(); ok {
		t.Error("target time should be unset")
	}
}
