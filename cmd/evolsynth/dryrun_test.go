package evolsynth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/soundprediction/go-evolsynth"
	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunPipeline(t *testing.T) {
	tests := []struct {
		name string
		fast bool
	}{
		{"standard", false},
		{"fast", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := evolsynth.NewClient(llm.NewScriptedClient("gpt-4o-mini", dryRunHandler), nil)
			defer client.Close()

			settings := types.DefaultGenerationSettings()
			settings.FastMode = tt.fast

			result, err := client.Generate(context.Background(), documents.SampleDocuments(), settings)
			require.NoError(t, err)
			assert.Empty(t, result.Failures)
			assert.Len(t, result.Dataset.EvolvedQuestions, settings.TotalRequested())
			assert.Len(t, result.Dataset.QuestionAnswers, settings.TotalRequested())
			require.NotNil(t, result.Dataset.Evaluation)
			assert.Zero(t, result.Dataset.Evaluation.JudgeFailures)
			assert.InDelta(t, 0.67, result.Dataset.Evaluation.OverallScore, 0.01)
		})
	}
}

func TestWriteResultFormats(t *testing.T) {
	v := map[string]interface{}{"backend": "memory", "entries": map[string]int{"generation": 1}}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", v))
	assert.Contains(t, buf.String(), `"backend": "memory"`)

	buf.Reset()
	require.NoError(t, writeResult(&buf, "yaml", v))
	assert.Contains(t, buf.String(), "backend: memory")
	assert.Contains(t, buf.String(), "generation: 1")

	assert.Error(t, writeResult(&buf, "xml", v))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "evolsynth\n"))
	assert.Contains(t, buf.String(), "Version:    dev")
}
