package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abkommen-gpt/backend/internal/language"
)

func TestDetector_ClassifiesSupportedLanguages(t *testing.T) {
	d := language.NewDetector()

	tests := []struct {
		text string
		want string
	}{
		{"Was regelt das Rahmenabkommen zwischen der Schweiz und der EU?", "de"},
		{"Que règle l'accord-cadre entre la Suisse et l'Union européenne?", "fr"},
		{"Cosa regola l'accordo quadro tra la Svizzera e l'Unione europea?", "it"},
		{"What does the framework agreement between Switzerland and the EU regulate?", "en"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Detect(tt.text), "text %q", tt.text)
	}
}

func TestDetector_DefaultsToGerman(t *testing.T) {
	d := language.NewDetector()

	assert.Equal(t, "de", d.Detect(""))
	assert.Equal(t, "de", d.Detect("?!"))
}
