package actions

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// gateway owns the Discord connection shared by the bot modules. It is added
// last so that every handler is registered before the session opens.
type gateway struct {
	session *discordgo.Session
}

func (g *gateway) Name() string { return "discord" }

func (g *gateway) Start(ctx context.Context) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (g *gateway) Stop(ctx context.Context) {
	if err := g.session.Close(); err != nil {
		log.Printf("actions: close discord session: %v", err)
	}
}
