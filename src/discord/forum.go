package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/forum-triage/src/triage"
)

const archivedPageSize = 100

// Forum adapts a Discord forum channel to triage.Forum and a text channel to the
// leaderboard board.
type Forum struct {
	session *discordgo.Session
	guildID string
	forumID string
}

var _ triage.Forum = (*Forum)(nil)

// NewForum returns an adapter for the forum channel forumID in guildID.
func NewForum(s *discordgo.Session, guildID, forumID string) *Forum {
	return &Forum{session: s, guildID: guildID, forumID: forumID}
}

func (f *Forum) ready() error {
	if f.forumID == "" {
		return fmt.Errorf("%w: forum channel not configured", triage.ErrConfiguration)
	}
	return nil
}

// ListThreads returns the forum's active and archived threads, optionally
// filtered to those carrying tagID.
func (f *Forum) ListThreads(ctx context.Context, tagID string) ([]triage.Thread, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}

	var channels []*discordgo.Channel
	active, err := f.session.GuildThreadsActive(f.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: active threads: %v", triage.ErrTransport, err)
	}
	channels = append(channels, active.Threads...)

	var before *time.Time
	for {
		page, err := f.session.ThreadsArchived(f.forumID, before, archivedPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: archived threads: %v", triage.ErrTransport, err)
		}
		channels = append(channels, page.Threads...)
		if !page.HasMore || len(page.Threads) == 0 {
			break
		}
		last := page.Threads[len(page.Threads)-1]
		if last.ThreadMetadata == nil {
			break
		}
		ts := last.ThreadMetadata.ArchiveTimestamp
		before = &ts
	}

	return filterThreads(channels, f.forumID, tagID), nil
}

// filterThreads keeps threads of forumID, optionally with tagID, dropping
// duplicates between the active and archived listings.
func filterThreads(channels []*discordgo.Channel, forumID, tagID string) []triage.Thread {
	seen := make(map[string]bool, len(channels))
	var out []triage.Thread
	for _, ch := range channels {
		if ch == nil || ch.ParentID != forumID || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		thread := triage.Thread{
			ID:     ch.ID,
			Name:   ch.Name,
			TagIDs: append([]string(nil), ch.AppliedTags...),
		}
		if ch.ThreadMetadata != nil {
			thread.Archived = ch.ThreadMetadata.Archived
		}
		if tagID != "" && !thread.HasTag(tagID) {
			continue
		}
		out = append(out, thread)
	}
	return out
}

// FirstMessage returns a forum thread's starter message, which shares the thread's ID.
func (f *Forum) FirstMessage(ctx context.Context, threadID string) (*triage.Message, error) {
	msg, err := f.session.ChannelMessage(threadID, threadID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: first message of %s: %v", triage.ErrTransport, threadID, err)
	}
	out := ToMessage(msg)
	return &out, nil
}

func (f *Forum) CreateThread(ctx context.Context, title, body string, tagIDs []string) (*triage.Thread, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	ch, err := f.session.ForumThreadStartComplex(f.forumID,
		&discordgo.ThreadStart{Name: title, AppliedTags: tagIDs},
		&discordgo.MessageSend{Content: body, AllowedMentions: noMentions()},
		discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: create thread: %v", triage.ErrTransport, err)
	}
	return &triage.Thread{ID: ch.ID, Name: ch.Name, TagIDs: ch.AppliedTags}, nil
}

func (f *Forum) AvailableTags(ctx context.Context) ([]triage.TopicTag, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	ch, err := f.session.Channel(f.forumID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: forum channel %s: %v", triage.ErrConfiguration, f.forumID, err)
	}
	if ch.Type != discordgo.ChannelTypeGuildForum {
		return nil, fmt.Errorf("%w: channel %s is not a forum", triage.ErrConfiguration, f.forumID)
	}
	tags := make([]triage.TopicTag, 0, len(ch.AvailableTags))
	for _, tag := range ch.AvailableTags {
		tags = append(tags, triage.TopicTag{ID: tag.ID, Name: tag.Name})
	}
	return tags, nil
}

func (f *Forum) ThreadURL(threadID string) string {
	return ThreadURL(f.guildID, threadID)
}

// RecentMessages returns up to limit messages of channelID, newest first.
func (f *Forum) RecentMessages(ctx context.Context, channelID string, limit int) ([]triage.Message, error) {
	msgs, err := f.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: history of %s: %v", triage.ErrTransport, channelID, err)
	}
	out := make([]triage.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessage(m))
	}
	return out, nil
}

func (f *Forum) SendMessage(ctx context.Context, channelID, content string) (*triage.Message, error) {
	msg, err := f.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: send to %s: %v", triage.ErrTransport, channelID, err)
	}
	out := ToMessage(msg)
	return &out, nil
}

func (f *Forum) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := f.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:              messageID,
		Channel:         channelID,
		Content:         &content,
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: edit %s: %v", triage.ErrTransport, messageID, err)
	}
	return nil
}

func (f *Forum) SelfID() string {
	if f.session.State == nil || f.session.State.User == nil {
		return ""
	}
	return f.session.State.User.ID
}
