package replay

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Scenario is a recorded (or hand-written) USSD session: the code to dial,
// the step values to inject and the screens the carrier shows, in order.
//
//	name: airtel-send-money
//	code: "*185#"
//	steps: ["9", "0772123456", "50000", "1234"]
//	secret_steps: [3]
//	screens:
//	  - dialog: {message: "Enter PIN", input: true, buttons: [Cancel, Send]}
//	  - root: {text: "Sent. Txn ID: ABC123", children: [{text: OK, clickable: true}]}
//	expect:
//	  success: true
//	  transaction_id: ABC123
type Scenario struct {
	Name        string   `yaml:"name"`
	Code        string   `yaml:"code"`
	Steps       []string `yaml:"steps,omitempty"`
	SecretSteps []int    `yaml:"secret_steps,omitempty"`

	// DialError makes the replay dialer refuse the request with this reason.
	DialError string `yaml:"dial_error,omitempty"`

	Screens []Screen `yaml:"screens"`
	Expect  *Expect  `yaml:"expect,omitempty"`
}

// Screen is one snapshot of a scenario. It is either a full element tree
// (Root) or the Dialog shorthand.
type Screen struct {
	Package string      `yaml:"package,omitempty"`
	Root    Element     `yaml:"root,omitempty"`
	Dialog  *DialogSpec `yaml:"dialog,omitempty"`
}

// DialogSpec is the shorthand for the common message + input + buttons dialog.
type DialogSpec struct {
	Message string   `yaml:"message"`
	Input   bool     `yaml:"input,omitempty"`
	Buttons []string `yaml:"buttons,omitempty"`
}

// Tree returns the element tree the screen describes.
func (s Screen) Tree() Element {
	if s.Dialog != nil {
		return Dialog(s.Dialog.Message, s.Dialog.Input, s.Dialog.Buttons...)
	}
	return s.Root
}

// Expect holds the assertions checked after a scenario run.
type Expect struct {
	Success       *bool  `yaml:"success,omitempty"`
	Outcome       string `yaml:"outcome,omitempty"`
	TransactionID string `yaml:"transaction_id,omitempty"`
	Screens       int    `yaml:"screens,omitempty"`
}

// DialSteps returns the steps with secret flags applied.
func (sc *Scenario) DialSteps() []domain.Step {
	steps := domain.Steps(sc.Steps...)
	for _, idx := range sc.SecretSteps {
		steps[idx].Secret = true
	}
	return steps
}

// Parse decodes a scenario document. Unknown fields are rejected so typos in
// hand-written fixtures surface immediately.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if sc.Code == "" {
		return nil, fmt.Errorf("scenario %q: code is required", sc.Name)
	}
	for _, idx := range sc.SecretSteps {
		if idx < 0 || idx >= len(sc.Steps) {
			return nil, fmt.Errorf("scenario %q: secret step %d out of range", sc.Name, idx)
		}
	}
	for i, screen := range sc.Screens {
		if screen.Dialog != nil && (screen.Root.Text != "" || screen.Root.Class != "" || len(screen.Root.Children) > 0) {
			return nil, fmt.Errorf("scenario %q: screen %d sets both root and dialog", sc.Name, i)
		}
	}
	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}
