package language

import (
	"github.com/pemistahl/lingua-go"
)

// Default is used whenever detection fails or text is too short to
// classify. Most visitors write German.
const Default = "de"

// Detector classifies question text into one of the four Swiss national
// audience languages supported by the answer prompt.
type Detector struct {
	detector lingua.LanguageDetector
}

func NewDetector() *Detector {
	languages := []lingua.Language{
		lingua.German,
		lingua.French,
		lingua.Italian,
		lingua.English,
	}

	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// Detect returns the ISO 639-1 code of the detected language, falling back
// to Default when the text gives no usable signal.
func (d *Detector) Detect(text string) string {
	if text == "" {
		return Default
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return Default
	}

	switch lang {
	case lingua.German:
		return "de"
	case lingua.French:
		return "fr"
	case lingua.Italian:
		return "it"
	case lingua.English:
		return "en"
	default:
		return Default
	}
}
