package session

import "net/url"

const avatarBaseURL = "https://avatars.dicebear.com/api/adventurer-neutral/"

// AvatarURL returns the avatar image location for a username.
func AvatarURL(name string) string {
	return avatarBaseURL + url.PathEscape(name) + ".svg"
}
