// Package capture implements the Capture Trigger, Frame Processor, and
// thumbnail cache that together decide when and how a frame is captured,
// grounded on the original Rust oneshim-vision crate's trigger/processor
// logic.
package capture

import (
	"log/slog"
	"strings"
	"time"
)

// TriggerType classifies why a capture request was raised.
type TriggerType string

const (
	WindowChange      TriggerType = "WindowChange"
	ErrorDetected     TriggerType = "ErrorDetected"
	SignificantAction TriggerType = "SignificantAction"
	FormSubmission    TriggerType = "FormSubmission"
	ContextSwitch     TriggerType = "ContextSwitch"
	Regular           TriggerType = "Regular"
)

// ContextEvent is the raw signal from the OS/window layer that a trigger
// evaluates.
type ContextEvent struct {
	AppName     string
	WindowTitle string
	PrevAppName string
	HasPrevApp  bool
	Timestamp   time.Time
}

// Request is what should_capture returns when a capture is warranted.
type Request struct {
	TriggerType TriggerType
	Importance  float64
	AppName     string
	WindowTitle string
}

// Trigger decides, per event, whether a capture should fire: classify the
// event, score its importance, then throttle unless importance is high
// enough to bypass the cooldown window.
type Trigger struct {
	lastCapture time.Time
	hasLast     bool
	prevAppName string
	hasPrevApp  bool
	throttle    time.Duration
}

// NewTrigger builds a Trigger with the given throttle cooldown.
func NewTrigger(throttle time.Duration) *Trigger {
	return &Trigger{throttle: throttle}
}

var errorKeywords = []string{"error", "exception", "에러", "오류"}
var formSubmissionKeywords = []string{"submit", "save"}

func (t *Trigger) classify(event ContextEvent) TriggerType {
	titleLower := strings.ToLower(event.WindowTitle)
	for _, kw := range errorKeywords {
		if strings.Contains(titleLower, kw) {
			return ErrorDetected
		}
	}

	for _, kw := range formSubmissionKeywords {
		if strings.Contains(titleLower, kw) {
			return FormSubmission
		}
	}

	if event.HasPrevApp {
		if event.PrevAppName != event.AppName {
			return ContextSwitch
		}
	} else if t.hasPrevApp {
		if t.prevAppName != event.AppName {
			return WindowChange
		}
	}

	return Regular
}

func importanceOf(t TriggerType) float64 {
	switch t {
	case ErrorDetected:
		return 0.9
	case FormSubmission:
		return 0.8
	case ContextSwitch:
		return 0.7
	case WindowChange:
		return 0.6
	case SignificantAction:
		return 0.5
	default:
		return 0.2
	}
}

func (t *Trigger) isThrottled(now time.Time) bool {
	if !t.hasLast {
		return false
	}
	return now.Sub(t.lastCapture) < t.throttle
}

// ShouldCapture evaluates event and returns a Request if a capture should
// fire. Importance >= 0.8 bypasses the throttle cooldown.
func (t *Trigger) ShouldCapture(event ContextEvent) *Request {
	now := event.Timestamp
	triggerType := t.classify(event)
	importance := importanceOf(triggerType)

	if importance < 0.8 && t.isThrottled(now) {
		slog.Debug("capture throttled", "trigger_type", triggerType, "importance", importance)
		return nil
	}

	t.lastCapture = now
	t.hasLast = true
	t.prevAppName = event.AppName
	t.hasPrevApp = true

	slog.Debug("capture approved", "trigger_type", triggerType, "importance", importance)
	return &Request{
		TriggerType: triggerType,
		Importance:  importance,
		AppName:     event.AppName,
		WindowTitle: event.WindowTitle,
	}
}
