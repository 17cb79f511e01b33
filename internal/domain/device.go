package domain

import "net/netip"

type SoundProfile struct {
	Volume    uint16 `json:"volume" yaml:"volume"`
	Crossfade bool   `json:"crossfade" yaml:"crossfade"`
	Shuffle   bool   `json:"shuffle" yaml:"shuffle"`
	Repeat    bool   `json:"repeat" yaml:"repeat"`
	Loudness  bool   `json:"loudness" yaml:"loudness"`
	Treble    int8   `json:"treble" yaml:"treble"`
	Bass      int8   `json:"bass" yaml:"bass"`
}

func DefaultSoundProfile() SoundProfile {
	return SoundProfile{
		Volume: 10,
		Treble: 5,
		Bass:   5,
	}
}

type DeviceDescriptor struct {
	Address netip.Addr
	Sound   SoundProfile
}

type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

type Track struct {
	Title    string
	Creator  string
	URI      string
	Duration uint32
	Elapsed  uint32
}

type SpeakerView struct {
	IP            string `json:"ip"`
	TrackName     string `json:"trackname"`
	TrackDuration uint32 `json:"trackduration"`
	TrackElapsed  uint32 `json:"trackelapsed"`
	Volume        uint16 `json:"volume"`
	IsPlaying     bool   `json:"is_playing"`
}

type Device struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Location string `json:"location"`
	Type     string `json:"type"`
}
