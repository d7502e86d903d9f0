package engine

import (
	"context"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// scenario is one fixture from testdata/scenarios.yaml.
type scenario struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Stdout string `yaml:"stdout"`
	Error  string `yaml:"error"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	data, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatal(err)
	}
	var scenarios []scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		t.Fatalf("parse scenarios: %v", err)
	}
	return scenarios
}

func TestScenarios(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			e, out := newTestEngine(Options{})
			_, err := e.Run(context.Background(), sc.Source, sc.Name+".js")
			switch {
			case sc.Error == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case sc.Error != "" && err == nil:
				t.Fatalf("expected error containing %q", sc.Error)
			case sc.Error != "" && !strings.Contains(err.Error(), sc.Error):
				t.Errorf("error = %q, want it to contain %q", err, sc.Error)
			}
			if got := out.String(); got != sc.Stdout {
				t.Errorf("stdout = %q, want %q", got, sc.Stdout)
			}
		})
	}
}
