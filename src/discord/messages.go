package discord

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/forum-triage/src/triage"
)

const MaxDiscordMessageLen = 2000

var newlineCollapse = regexp.MustCompile(`\n{3,}`)

// BeautifyForDiscord normalizes AI responses for improved readability.
func BeautifyForDiscord(text string) string {
	if text == "" {
		return text
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = newlineCollapse.ReplaceAllString(normalized, "\n\n")

	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- "):
			lines[i] = strings.Replace(line, "- ", "• ", 1)
		case strings.HasPrefix(trimmed, "* "):
			lines[i] = strings.Replace(line, "* ", "• ", 1)
		}
	}

	return WrapURLsNoEmbed(strings.TrimSpace(strings.Join(lines, "\n")))
}

type styledOracle struct {
	triage.Oracle
}

// StyledOracle wraps o so that its replies are formatted for Discord before
// they are shown to a submitter or filed with a thread. A nil o stays nil.
func StyledOracle(o triage.Oracle) triage.Oracle {
	if o == nil {
		return nil
	}
	return styledOracle{Oracle: o}
}

func (o styledOracle) Probe(ctx context.Context, question string) (string, error) {
	reply, err := o.Oracle.Probe(ctx, question)
	if err != nil {
		return "", err
	}
	return BeautifyForDiscord(reply), nil
}

// SumReactions totals every reaction on a message.
func SumReactions(m *discordgo.Message) int {
	if m == nil {
		return 0
	}
	total := 0
	for _, r := range m.Reactions {
		if r != nil {
			total += r.Count
		}
	}
	return total
}

// ToMessage converts a discordgo message into the engine's view of it.
func ToMessage(m *discordgo.Message) triage.Message {
	out := triage.Message{
		ID:        m.ID,
		Content:   m.Content,
		Reactions: SumReactions(m),
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = DisplayName(m.Author)
	}
	return out
}

// ToSubmission builds a triage submission from a message that asks a question.
func ToSubmission(m *discordgo.Message) triage.Submission {
	sub := triage.Submission{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		Text:       strings.TrimSpace(m.Content),
		ReceivedAt: m.Timestamp,
	}
	if m.Author != nil {
		sub.SubmitterID = m.Author.ID
		sub.SubmitterHandle = DisplayName(m.Author)
	}
	return sub
}

func replyTo(sub triage.Submission) *discordgo.MessageReference {
	if sub.ID == "" {
		return nil
	}
	return &discordgo.MessageReference{MessageID: sub.ID, ChannelID: sub.ChannelID}
}

func noMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
}
