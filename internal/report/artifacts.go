package report

import (
	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/model"
)

// Artifacts renders the four files of an application's artifact directory.
// It has the signature of knowledge.RenderFunc.
func Artifacts(k *model.AppKnowledge) ([]knowledge.Artifact, error) {
	renderers := []struct {
		name   string
		render func(*model.AppKnowledge) ([]byte, error)
	}{
		{knowledge.FileKnowledge, knowledge.MarshalKnowledge},
		{knowledge.FileSkill, RenderSkill},
		{knowledge.FileScenarios, RenderScenarios},
		{knowledge.FileFlows, RenderFlows},
	}

	artifacts := make([]knowledge.Artifact, 0, len(renderers))
	for _, r := range renderers {
		data, err := r.render(k)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, knowledge.Artifact{Name: r.name, Data: data})
	}
	return artifacts, nil
}
