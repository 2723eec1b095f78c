package capture

import (
	"testing"
	"time"
)

func makeEvent(app, title, prev string, hasPrev bool) ContextEvent {
	return ContextEvent{
		AppName:     app,
		WindowTitle: title,
		PrevAppName: prev,
		HasPrevApp:  hasPrev,
		Timestamp:   time.Now(),
	}
}

func TestContextSwitchTrigger(t *testing.T) {
	trig := NewTrigger(5 * time.Second)
	event := makeEvent("Code", "test.go", "Firefox", true)
	req := trig.ShouldCapture(event)
	if req == nil {
		t.Fatal("expected capture request")
	}
	if req.TriggerType != ContextSwitch {
		t.Fatalf("expected ContextSwitch, got %v", req.TriggerType)
	}
	if req.Importance < 0.7 {
		t.Fatalf("expected importance >= 0.7, got %v", req.Importance)
	}
}

func TestErrorDetection(t *testing.T) {
	trig := NewTrigger(5 * time.Second)
	event := makeEvent("Terminal", "Error: command failed", "", false)
	req := trig.ShouldCapture(event)
	if req == nil {
		t.Fatal("expected capture request")
	}
	if req.Importance < 0.8 {
		t.Fatalf("expected importance >= 0.8, got %v", req.Importance)
	}
}

func TestThrottleLowImportance(t *testing.T) {
	trig := NewTrigger(5 * time.Second)

	event1 := makeEvent("Code", "main.go", "", false)
	if trig.ShouldCapture(event1) == nil {
		t.Fatal("expected first capture to be allowed")
	}

	event2 := makeEvent("Code", "lib.go", "", false)
	if trig.ShouldCapture(event2) != nil {
		t.Fatal("expected rapid same-app retry to be throttled")
	}
}

func TestHighImportanceBypassesThrottle(t *testing.T) {
	trig := NewTrigger(5 * time.Second)

	event1 := makeEvent("Code", "main.go", "", false)
	trig.ShouldCapture(event1)

	event2 := makeEvent("Terminal", "Error: panic", "", false)
	if trig.ShouldCapture(event2) == nil {
		t.Fatal("expected error-triggered capture to bypass throttle")
	}
}

func TestFormSubmissionDetection(t *testing.T) {
	trig := NewTrigger(5 * time.Second)
	event := makeEvent("Chrome", "Submit Order - Checkout", "", false)
	req := trig.ShouldCapture(event)
	if req == nil {
		t.Fatal("expected capture request")
	}
	if req.TriggerType != FormSubmission {
		t.Fatalf("expected FormSubmission, got %v", req.TriggerType)
	}
	if req.Importance != 0.8 {
		t.Fatalf("expected importance 0.8, got %v", req.Importance)
	}

	trig2 := NewTrigger(5 * time.Second)
	saveEvent := makeEvent("Office", "Save Document", "", false)
	saveReq := trig2.ShouldCapture(saveEvent)
	if saveReq == nil || saveReq.TriggerType != FormSubmission {
		t.Fatalf("expected FormSubmission for Save title, got %+v", saveReq)
	}
}

func TestImportanceScores(t *testing.T) {
	cases := map[TriggerType]float64{
		ErrorDetected:  0.9,
		FormSubmission: 0.8,
		ContextSwitch:  0.7,
		Regular:        0.2,
	}
	for tt, want := range cases {
		if got := importanceOf(tt); got != want {
			t.Errorf("importanceOf(%v) = %v, want %v", tt, got, want)
		}
	}
}

func TestThrottleElapses(t *testing.T) {
	trig := NewTrigger(10 * time.Millisecond)
	event1 := makeEvent("Code", "main.go", "", false)
	trig.ShouldCapture(event1)

	time.Sleep(15 * time.Millisecond)
	event2 := ContextEvent{AppName: "Code", WindowTitle: "lib.go", Timestamp: time.Now()}
	if trig.ShouldCapture(event2) == nil {
		t.Fatal("expected capture to be allowed after throttle window elapses")
	}
}
