package draft

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel turns a User-Agent header into a short label such as
// "Chrome on Android (mobile)" so a restore prompt can say where a draft came
// from. Unknown agents yield an empty label.
func DeviceLabel(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()

	var label string
	switch {
	case browser != "" && os != "":
		label = browser + " on " + os
	case browser != "":
		label = browser
	default:
		label = os
	}
	if label != "" && ua.Mobile() {
		label += " (mobile)"
	}
	return label
}
