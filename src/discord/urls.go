package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var urlRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds. URLs
// already in angle brackets are kept as they are.
func WrapURLsNoEmbed(text string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range urlRegex.FindAllStringIndex(text, -1) {
		start := loc[0]
		url := strings.TrimRight(text[start:loc[1]], ".,;:!?")
		sb.WriteString(text[last:start])
		if start > 0 && text[start-1] == '<' {
			sb.WriteString(url)
		} else {
			sb.WriteString("<" + url + ">")
		}
		last = start + len(url)
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// ThreadURL links to a thread (or any channel) in a guild.
func ThreadURL(guildID, threadID string) string {
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, threadID)
}
