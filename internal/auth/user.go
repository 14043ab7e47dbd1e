// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import "github.com/canvasa/gateway/internal/provider"

// DisplayProfile is the render-safe projection of an identity: plain
// strings with empty-string fallbacks, so templates never nil-check.
type DisplayProfile struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// ProfileFor derives the display fields from an identity's metadata.
//
// Upstream identity providers disagree on metadata keys ("name" vs
// "full_name"); both are honored, first match wins.
func ProfileFor(user *provider.Identity) DisplayProfile {
	if user == nil {
		return DisplayProfile{}
	}

	profile := DisplayProfile{Email: user.Email}

	if name := metadataString(user.UserMetadata, "name"); name != "" {
		profile.Name = name
	} else {
		profile.Name = metadataString(user.UserMetadata, "full_name")
	}
	profile.AvatarURL = metadataString(user.UserMetadata, "avatar_url")

	return profile
}

// metadataString reads a string value from identity metadata, "" when
// absent or not a string.
func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, _ := metadata[key].(string)
	return value
}
