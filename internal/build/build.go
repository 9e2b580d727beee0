package build

import "strings"

var (
	Version = "dev"
	AppName = "Sitekit"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
