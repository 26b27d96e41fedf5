package enums

import "strings"

type GatedAction string

const (
	GatedActionExport GatedAction = "export"
	GatedActionAudio  GatedAction = "audio"
)

func ParseGatedAction(raw string) (GatedAction, bool) {
	switch GatedAction(strings.ToLower(strings.TrimSpace(raw))) {
	case GatedActionExport:
		return GatedActionExport, true
	case GatedActionAudio:
		return GatedActionAudio, true
	default:
		return "", false
	}
}
