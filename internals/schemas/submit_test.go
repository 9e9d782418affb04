package schemas

import (
	"testing"
)

func TestSubmitSchemaDefaultsAndTrim(t *testing.T) {
	req := SubmitRequest{Type: "  screenshot  "}

	if issues := SubmitSchema.Validate(&req); len(issues) > 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}

	if req.Type != "screenshot" {
		t.Fatalf("expected trimmed type, got %q", req.Type)
	}
	if req.Mode != ModeAsync {
		t.Fatalf("expected async default, got %q", req.Mode)
	}
	if req.Priority != 0 {
		t.Fatalf("expected default priority 0, got %d", req.Priority)
	}
}

func TestSubmitSchemaRequiresType(t *testing.T) {
	req := SubmitRequest{}
	if issues := SubmitSchema.Validate(&req); len(issues) == 0 {
		t.Fatalf("expected validation issues for missing type")
	}
}

func TestSubmitSchemaPriorityBounds(t *testing.T) {
	req := SubmitRequest{Type: "fight", Priority: 11}
	if issues := SubmitSchema.Validate(&req); len(issues) == 0 {
		t.Fatalf("expected issues for priority above 10")
	}

	req = SubmitRequest{Type: "fight", Priority: -1}
	if issues := SubmitSchema.Validate(&req); len(issues) == 0 {
		t.Fatalf("expected issues for negative priority")
	}

	req = SubmitRequest{Type: "fight", Priority: 10}
	if issues := SubmitSchema.Validate(&req); len(issues) > 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestSubmitSchemaRejectsUnknownMode(t *testing.T) {
	req := SubmitRequest{Type: "fight", Mode: ExecMode("fire-and-forget")}
	if issues := SubmitSchema.Validate(&req); len(issues) == 0 {
		t.Fatalf("expected issues for unknown mode")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	for _, status := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed} {
		if !status.Terminal() {
			t.Fatalf("expected %s terminal", status)
		}
	}
	for _, status := range []TaskStatus{TaskStatusPending, TaskStatusConnecting, TaskStatusRunning} {
		if status.Terminal() {
			t.Fatalf("expected %s not terminal", status)
		}
	}
}
