package models

// Stage names the pipeline step a failure or degradation belongs to.
type Stage string

const (
	StageValidation    Stage = "validation"
	StageAcquisition   Stage = "acquisition"
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
)

func (s Stage) String() string {
	return string(s)
}

// Names of the generated fields, used to report which ones fell back.
const (
	FieldSocialThread    = "twitter_thread"
	FieldClipSuggestions = "reel_suggestions"
)
