package main

import (
	"fmt"

	"github.com/stake-plus/forum-triage/src/actions"
	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	shareddiscord "github.com/stake-plus/forum-triage/src/discord"
)

// restForum returns a forum adapter backed by a REST-only session. The bot
// identity is fetched up front since no Ready event will fill it in.
func restForum(base sharedconfig.Base, forumID string) (*shareddiscord.Forum, error) {
	session, err := actions.NewSession(base.Token)
	if err != nil {
		return nil, err
	}
	self, err := session.User("@me")
	if err != nil {
		return nil, fmt.Errorf("discord: fetch bot user: %w", err)
	}
	session.State.User = self
	return shareddiscord.NewForum(session, base.GuildID, forumID), nil
}

