package models

// Platform is an ad network the product can connect to.
type Platform string

const (
	PlatformGoogle   Platform = "google"
	PlatformTikTok   Platform = "tiktok"
	PlatformSnapchat Platform = "snapchat"
)

var AllPlatforms = []Platform{PlatformGoogle, PlatformTikTok, PlatformSnapchat}

func IsValidPlatform(p string) bool {
	for _, v := range AllPlatforms {
		if string(v) == p {
			return true
		}
	}
	return false
}
