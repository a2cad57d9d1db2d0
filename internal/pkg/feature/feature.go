// Package feature names the metered generation features and their limit keys.
package feature

import "strings"

// Type identifies a metered generation feature.
type Type int

const (
	Unknown Type = iota
	Lyrics
	Music
	Video
	Voice
)

// All returns every metered feature in display order.
func All() []Type {
	return []Type{Lyrics, Music, Video, Voice}
}

// Parse maps a feature name to its Type. Unrecognized names yield Unknown.
func Parse(name string) Type {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lyrics":
		return Lyrics
	case "music":
		return Music
	case "video":
		return Video
	case "voice":
		return Voice
	default:
		return Unknown
	}
}

func (t Type) String() string {
	switch t {
	case Lyrics:
		return "lyrics"
	case Music:
		return "music"
	case Video:
		return "video"
	case Voice:
		return "voice"
	default:
		return "unknown"
	}
}

// LimitKey is the key used for this feature in a plan's limits map.
func (t Type) LimitKey() string {
	switch t {
	case Lyrics:
		return "lyricsPerMonth"
	case Music:
		return "musicPerMonth"
	case Video:
		return "videoPerMonth"
	case Voice:
		return "voicePerMonth"
	default:
		return ""
	}
}

// Valid reports whether t is one of the metered features.
func (t Type) Valid() bool {
	return t != Unknown && t.LimitKey() != ""
}
