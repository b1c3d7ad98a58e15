package report

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/appscout/internal/model"
)

// flowsDocument is the layout of flows.yaml. Test runners replay the steps
// in order; every step has an action and either a URL or a selector.
type flowsDocument struct {
	App     string          `yaml:"app"`
	BaseURL string          `yaml:"baseUrl"`
	Version string          `yaml:"version"`
	Flows   []flowEntry     `yaml:"flows"`
	Forms   []formTestEntry `yaml:"testData,omitempty"`
}

type flowEntry struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Custom      bool             `yaml:"custom,omitempty"`
	Steps       []model.FlowStep `yaml:"steps"`
}

type formTestEntry struct {
	Action  string            `yaml:"action"`
	Method  string            `yaml:"method"`
	Pattern string            `yaml:"pattern"`
	Values  map[string]string `yaml:"values"`
}

// RenderFlows renders flows.yaml.
func RenderFlows(k *model.AppKnowledge) ([]byte, error) {
	doc := flowsDocument{
		App:     k.AppName,
		BaseURL: k.BaseURL,
		Version: k.Version,
		Flows:   make([]flowEntry, 0, len(k.UserFlows)),
	}
	for _, f := range k.UserFlows {
		steps := f.Steps
		if steps == nil {
			steps = []model.FlowStep{}
		}
		doc.Flows = append(doc.Flows, flowEntry{
			Name:        f.Name,
			Description: f.Description,
			Custom:      f.Custom,
			Steps:       steps,
		})
	}
	for i := range k.Forms {
		f := &k.Forms[i]
		values := TestData(f)
		if len(values) == 0 {
			continue
		}
		doc.Forms = append(doc.Forms, formTestEntry{
			Action:  f.ActionPath(),
			Method:  f.Method,
			Pattern: string(f.Pattern),
			Values:  values,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", "flows.yaml", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", "flows.yaml", err)
	}
	return buf.Bytes(), nil
}
