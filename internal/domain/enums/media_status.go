package enums

type AudioStatus string

const (
	AudioStatusProcessing AudioStatus = "processing"
	AudioStatusCompleted  AudioStatus = "completed"
	AudioStatusFailed     AudioStatus = "failed"
)

type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusDone       VideoStatus = "done"
	VideoStatusError      VideoStatus = "error"
)

// Terminal reports whether the provider will not change the status again.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusDone || s == VideoStatusError
}
