package prompts

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTemplatesParse(t *testing.T) {
	all, err := load()
	require.NoError(t, err)
	for _, id := range []string{
		"screening.json:skill-specificity",
		"screening.json:candidate-summary-task",
		"screening.json:candidate-summary-input",
	} {
		assert.Contains(t, all, id)
	}
}

func TestGet(t *testing.T) {
	src, err := Get("screening.json", "candidate-summary-input")
	require.NoError(t, err)
	assert.Contains(t, src, "{{.JobTitle}}")

	_, err = Get("screening.json", "missing")
	assert.ErrorContains(t, err, `prompt "missing" not found in screening.json`)

	_, err = Get("other.json", "candidate-summary-input")
	assert.Error(t, err)
}

func TestRender_Skills(t *testing.T) {
	out, err := Render("screening.json", "skill-specificity", map[string]any{
		"Skills": []string{"Go", "communication"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "- Go\n- communication\n")
	assert.NotContains(t, out, "{{")
}

func TestRender_MissingKeyFails(t *testing.T) {
	_, err := Render("screening.json", "candidate-summary-input", map[string]string{"JobTitle": "SRE"})
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustRender("screening.json", "candidate-summary-input", map[string]string{})
	})
}

func TestParse_Errors(t *testing.T) {
	_, err := parse(fstest.MapFS{"bad.json": {Data: []byte("{not json")}})
	assert.ErrorContains(t, err, "decode bad.json")

	_, err = parse(fstest.MapFS{"tmpl.json": {Data: []byte(`{"k": "{{.Open"}`)}})
	assert.ErrorContains(t, err, "parse tmpl.json:k")

	all, err := parse(fstest.MapFS{"a.json": {Data: []byte(`{"k": "hi {{.Name}}"}`)}})
	require.NoError(t, err)
	assert.Contains(t, all, "a.json:k")
}
