// SPDX-License-Identifier: MIT

package video

import "fmt"

// Tier selects download fidelity.
type Tier string

const (
	// TierLow is a progressive mp4 at or below the configured height.
	TierLow Tier = "low"
	// TierMerged is best video plus best audio muxed into mp4.
	TierMerged Tier = "merged"
)

// Profile is a named extractor format selection.
type Profile struct {
	Name   string
	Format string
	// Merge asks the extractor to mux separate streams into MergeFormat.
	Merge       bool
	MergeFormat string
}

// Profiles is the canonical profile set.
type Profiles struct {
	Probe  Profile
	Stream Profile
	Low    Profile
	Merged Profile
}

// NewProfiles builds the profile set. lowHeight bounds the low tier.
func NewProfiles(lowHeight int) Profiles {
	if lowHeight <= 0 {
		lowHeight = 480
	}
	return Profiles{
		Probe: Profile{
			Name:   "probe",
			Format: "best[ext=mp4]/best",
		},
		Stream: Profile{
			Name:   "stream",
			Format: "best[ext=mp4][vcodec!=none][acodec!=none]/best[vcodec!=none][acodec!=none]/best",
		},
		Low: Profile{
			Name: "low",
			Format: fmt.Sprintf("best[height<=%[1]d][ext=mp4][vcodec!=none][acodec!=none]/best[height<=%[1]d][vcodec!=none][acodec!=none]/worst",
				lowHeight),
			MergeFormat: "mp4",
		},
		Merged: Profile{
			Name:        "merged",
			Format:      "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best",
			Merge:       true,
			MergeFormat: "mp4",
		},
	}
}

// ForTier returns the download profile for a tier.
func (p Profiles) ForTier(t Tier) (Profile, error) {
	switch t {
	case TierLow:
		return p.Low, nil
	case TierMerged:
		return p.Merged, nil
	default:
		return Profile{}, fmt.Errorf("unknown tier %q", t)
	}
}
