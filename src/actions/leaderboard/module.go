// Package leaderboard exposes the question leaderboard through the
// /leaderboard slash command.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/forum-triage/src/actions/core"
	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	shareddiscord "github.com/stake-plus/forum-triage/src/discord"
	"github.com/stake-plus/forum-triage/src/triage"
	ranking "github.com/stake-plus/forum-triage/src/triage/leaderboard"
)

var _ core.Module = (*Module)(nil)

// Dependencies are the optional side channels of the module.
type Dependencies struct {
	Attributions triage.AttributionStore
	Events       triage.EventPublisher
}

type Module struct {
	config     *sharedconfig.LeaderboardConfig
	session    *discordgo.Session
	aggregator *ranking.Aggregator

	mu         sync.Mutex
	runtimeCtx context.Context
	cancel     context.CancelFunc
}

// NewModule wires the aggregator onto session. The session is opened by the
// caller after every module has registered its handlers.
func NewModule(cfg *sharedconfig.LeaderboardConfig, session *discordgo.Session, forum *shareddiscord.Forum, deps Dependencies) (*Module, error) {
	if forum == nil {
		return nil, fmt.Errorf("leaderboard: forum adapter is required")
	}

	agg := ranking.New(forum, forum, ranking.Config{
		ChannelID: cfg.ChannelID,
		Interval:  cfg.Interval,
		Location:  cfg.Location,
	})
	if deps.Attributions != nil {
		agg.WithAttributions(deps.Attributions)
	}
	if deps.Events != nil {
		agg.WithEvents(deps.Events)
	}

	module := &Module{
		config:     cfg,
		session:    session,
		aggregator: agg,
	}
	module.session.AddHandler(module.onReady)
	module.session.AddHandler(module.onInteractionCreate)
	return module, nil
}

// Name implements actions.Module.
func (m *Module) Name() string { return "leaderboard" }

// Aggregator exposes the scheduler for the admin API.
func (m *Module) Aggregator() *ranking.Aggregator { return m.aggregator }

// Context is the module's runtime context, valid between Start and Stop.
func (m *Module) Context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runtimeCtx
}

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if err := shareddiscord.RegisterSlashCommands(s, m.config.Base.GuildID, shareddiscord.CommandLeaderboard); err != nil {
		log.Printf("leaderboard: failed to register slash commands: %v", err)
	}

	ctx := m.Context()
	if ctx == nil || !m.config.AutoStart || m.aggregator.Status().Running {
		return
	}
	tag, err := m.aggregator.ResolveTag(ctx, m.config.AutoStartTag)
	if err != nil {
		log.Printf("leaderboard: autostart skipped: %v", err)
		return
	}
	m.aggregator.Start(ctx, tag)
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != shareddiscord.CommandLeaderboard {
		return
	}

	if !shareddiscord.MemberHasRole(i.Member, m.config.RoleID) {
		shareddiscord.RespondEphemeral(s, i.Interaction, "You don't have permission to control the leaderboard.")
		return
	}
	ctx := m.Context()
	if ctx == nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "The leaderboard module is not running.")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		log.Printf("leaderboard: defer response: %v", err)
		return
	}

	sub, opts := shareddiscord.Subcommand(data)
	reply := m.handle(ctx, sub, opts)
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply}); err != nil {
		log.Printf("leaderboard: edit response: %v", err)
	}
}

func (m *Module) handle(ctx context.Context, sub string, opts map[string]string) string {
	switch sub {
	case shareddiscord.SubcommandStart:
		tag, err := m.aggregator.ResolveTag(ctx, opts["tag"])
		if errors.Is(err, triage.ErrConfiguration) {
			return fmt.Sprintf("No forum tag matches %q.", opts["tag"])
		}
		if err != nil {
			log.Printf("leaderboard: resolve tag %q: %v", opts["tag"], err)
			return "Could not read the forum tags. Try again later."
		}
		if !m.aggregator.Start(ctx, tag) {
			return "The leaderboard is already running. Stop it first to change the tag."
		}
		return fmt.Sprintf("Leaderboard started %s, updating every %s.", ranking.ScopeLabel(tag), m.config.Interval)
	case shareddiscord.SubcommandStop:
		if !m.aggregator.Stop() {
			return "The leaderboard is not running."
		}
		return "Leaderboard stopped."
	case shareddiscord.SubcommandStatus:
		return RenderStatus(m.aggregator.Status(), m.config.Location)
	default:
		return "Unknown subcommand."
	}
}

// RenderStatus describes the scheduler state for a moderator.
func RenderStatus(st ranking.Status, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if !st.Running {
		return "The leaderboard is not running."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Leaderboard running %s, every %s.", ranking.ScopeLabel(st.Tag), st.Interval)
	if st.Runs > 0 {
		fmt.Fprintf(&sb, "\nLast update: %s (%d runs)", st.LastRun.In(loc).Format("2006-01-02 15:04 MST"), st.Runs)
	}
	if st.LastError != "" {
		fmt.Fprintf(&sb, "\nLast error: %s", st.LastError)
	}
	return sb.String()
}

func (m *Module) Start(ctx context.Context) error {
	runtimeCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.runtimeCtx = runtimeCtx
	m.mu.Unlock()
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	m.aggregator.Stop()
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.runtimeCtx = nil
	m.mu.Unlock()
}
