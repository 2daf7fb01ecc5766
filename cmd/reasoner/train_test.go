package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTasks_YAML(t *testing.T) {
	path := writeFile(t, "tasks.yaml", `
- id: floods
  problem: why do rivers flood in spring
- problem: how do tides work
  confidence: 0.7
`)
	tasks, err := loadTasks(path)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "floods" || tasks[1].ID != "task-2" {
		t.Errorf("unexpected ids %q %q", tasks[0].ID, tasks[1].ID)
	}
	if tasks[1].Confidence != 0.7 {
		t.Errorf("expected confidence 0.7, got %f", tasks[1].Confidence)
	}
}

func TestLoadTasks_JSON(t *testing.T) {
	path := writeFile(t, "tasks.json", `[{"problem":"what is entropy"}]`)
	tasks, err := loadTasks(path)
	if err != nil {
		t.Fatalf("loadTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "task-1" {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

func TestLoadTasks_Errors(t *testing.T) {
	if _, err := loadTasks(""); err == nil {
		t.Error("expected error for missing path")
	}
	if _, err := loadTasks(writeFile(t, "empty.json", `[]`)); err == nil {
		t.Error("expected error for empty task list")
	}
	if _, err := loadTasks(writeFile(t, "bad.yaml", "id: [")); err == nil {
		t.Error("expected parse error")
	}
}
