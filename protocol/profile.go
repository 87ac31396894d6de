package protocol

import (
	"encoding/json"
	"fmt"
)

// ProfileMetadata is the decoded content of a kind 0 event. Clients disagree
// on field names, so both display name spellings are accepted.
type ProfileMetadata struct {
	Name         string `json:"name"`
	Picture      string `json:"picture"`
	About        string `json:"about"`
	Website      string `json:"website"`
	Banner       string `json:"banner"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	DisplayName1 string `json:"displayName"`
	Lud06        string `json:"lud06"`
	Lud16        string `json:"lud16"`
	Nip05        string `json:"nip05"`
}

// BestName returns the most specific non-empty name field.
func (p ProfileMetadata) BestName() string {
	if len(p.DisplayName) > 0 {
		return p.DisplayName
	}
	if len(p.DisplayName1) > 0 {
		return p.DisplayName1
	}
	if len(p.Name) > 0 {
		return p.Name
	}
	return p.Username
}

// ParseProfileMetadata decodes a kind 0 content payload. Malformed content is
// a decode error the caller logs and skips, it never aborts ingestion of
// anything else.
func ParseProfileMetadata(content string) (*ProfileMetadata, error) {
	var p ProfileMetadata
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("cannot parse profile metadata: %w", err)
	}
	return &p, nil
}

// ChannelData is the decoded content of a channel create/metadata event.
type ChannelData struct {
	Name    string `json:"name"`
	About   string `json:"about"`
	Picture string `json:"picture"`
}

// ChannelInfo decodes the channel metadata carried in the content. Garbage
// decodes to an empty ChannelData, matching how clients render it.
func (e Event) ChannelInfo() ChannelData {
	var d ChannelData
	if err := json.Unmarshal([]byte(e.Content), &d); err != nil {
		return ChannelData{}
	}
	return d
}
