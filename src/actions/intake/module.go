// Package intake listens for questions in the intake channels and runs each one
// through the triage workflow.
package intake

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/forum-triage/src/actions/core"
	aicore "github.com/stake-plus/forum-triage/src/ai/core"
	_ "github.com/stake-plus/forum-triage/src/ai/providers"
	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	shareddiscord "github.com/stake-plus/forum-triage/src/discord"
	"github.com/stake-plus/forum-triage/src/triage"
	"github.com/stake-plus/forum-triage/src/triage/oracle"
	"github.com/stake-plus/forum-triage/src/triage/similarity"
	"github.com/stake-plus/forum-triage/src/triage/workflow"
)

var _ core.Module = (*Module)(nil)

const commandPrefix = "!"

// Dependencies are the optional side channels of the module.
type Dependencies struct {
	Attributions triage.AttributionStore
	Events       triage.EventPublisher
}

type Module struct {
	config   *sharedconfig.TriageConfig
	session  *discordgo.Session
	forum    *shareddiscord.Forum
	prompter *shareddiscord.Prompter
	index    *similarity.Index
	engine   *workflow.Engine
	limiter  *RateLimiter

	mu         sync.Mutex
	runtimeCtx context.Context
	cancel     context.CancelFunc
	sessions   sync.WaitGroup
}

// NewModule wires the triage workflow onto session. The session is opened by
// the caller after every module has registered its handlers.
func NewModule(cfg *sharedconfig.TriageConfig, session *discordgo.Session, forum *shareddiscord.Forum, deps Dependencies) (*Module, error) {
	if forum == nil {
		return nil, fmt.Errorf("intake: forum adapter is required")
	}

	index := similarity.NewIndex()
	prompter := shareddiscord.NewPrompter(session)

	poster := workflow.NewPoster(forum, index)
	if deps.Attributions != nil {
		poster.WithAttributions(deps.Attributions)
	}
	if deps.Events != nil {
		poster.WithEvents(deps.Events)
	}

	engine := workflow.NewEngine(index, forum, prompter, newOracle(cfg.AIConfig), poster, workflow.Config{
		Threshold:     cfg.Threshold,
		MaxCandidates: cfg.MaxCandidates,
		PromptTimeout: cfg.PromptTimeout,
	})

	module := &Module{
		config:   cfg,
		session:  session,
		forum:    forum,
		prompter: prompter,
		index:    index,
		engine:   engine,
		limiter:  NewRateLimiter(cfg.Cooldown),
	}
	module.initHandlers()
	return module, nil
}

func newOracle(cfg sharedconfig.AIConfig) triage.Oracle {
	if !cfg.Enabled {
		log.Printf("intake: answer probe disabled via configuration")
		return nil
	}
	client, err := aicore.NewClient(cfg.FactoryConfig())
	if err != nil {
		log.Printf("intake: answer probe disabled: %v", err)
		return nil
	}
	log.Printf("intake: answer probe using %s (%s)", cfg.Provider, cfg.Model)
	return shareddiscord.StyledOracle(oracle.New(client, cfg.Options(), cfg.Timeout))
}

// Name implements actions.Module.
func (m *Module) Name() string { return "triage" }

// Index exposes the duplicate index for the admin API.
func (m *Module) Index() *similarity.Index { return m.index }

// Forum exposes the forum adapter the index is rebuilt from.
func (m *Module) Forum() *shareddiscord.Forum { return m.forum }

// Engine exposes the workflow engine.
func (m *Module) Engine() *workflow.Engine { return m.engine }

func (m *Module) initHandlers() {
	m.session.AddHandler(m.onReady)
	m.session.AddHandler(m.onMessageCreate)
	m.session.AddHandler(m.onInteractionCreate)
}

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("intake: logged in as %s", r.User.Username)

	if err := shareddiscord.RegisterSlashCommands(s, m.config.Base.GuildID, shareddiscord.CommandIndex); err != nil {
		log.Printf("intake: failed to register slash commands: %v", err)
	}

	m.spawn(func(ctx context.Context) {
		if _, err := m.index.Rebuild(ctx, m.forum); err != nil {
			log.Printf("intake: initial index rebuild failed: %v", err)
		}
	})
}

// runCtx returns the runtime context, or nil when the module is stopped.
func (m *Module) runCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runtimeCtx
}

// spawn runs fn on the runtime context and tracks it for Stop. It reports
// false when the module is not running.
func (m *Module) spawn(fn func(ctx context.Context)) bool {
	m.mu.Lock()
	ctx := m.runtimeCtx
	if ctx == nil {
		m.mu.Unlock()
		return false
	}
	m.sessions.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.sessions.Done()
		fn(ctx)
	}()
	return true
}

func (m *Module) onMessageCreate(s *discordgo.Session, mc *discordgo.MessageCreate) {
	ctx := m.runCtx()
	if ctx == nil || mc.Message == nil {
		return
	}

	parentID := ""
	if s.State != nil {
		if ch, err := s.State.Channel(mc.ChannelID); err == nil && ch.IsThread() {
			parentID = ch.ParentID
		}
	}
	if reason, ok := screen(m.config, mc.Message, parentID); !ok {
		if reason == skipShort {
			log.Printf("intake: ignoring short message %s from %s", mc.ID, mc.Author.ID)
		}
		return
	}

	if !m.limiter.CanUse(mc.Author.ID) {
		wait := m.limiter.TimeUntilNext(mc.Author.ID).Round(time.Second)
		sub := shareddiscord.ToSubmission(mc.Message)
		if err := m.prompter.Notify(ctx, sub, fmt.Sprintf("Please wait %s before asking another question.", wait)); err != nil {
			log.Printf("intake: cooldown notice: %v", err)
		}
		return
	}

	sub := shareddiscord.ToSubmission(mc.Message)
	m.spawn(func(ctx context.Context) {
		m.engine.Run(ctx, sub)
	})
}

const (
	skipNone    = ""
	skipBot     = "bot"
	skipGuild   = "guild"
	skipChannel = "channel"
	skipCommand = "command"
	skipShort   = "short"
)

// screen decides whether msg should start a triage session. parentID is the
// parent channel when msg was posted inside a thread.
func screen(cfg *sharedconfig.TriageConfig, msg *discordgo.Message, parentID string) (string, bool) {
	if msg.Author == nil || msg.Author.Bot {
		return skipBot, false
	}
	if msg.GuildID == "" || (cfg.GuildID != "" && msg.GuildID != cfg.GuildID) {
		return skipGuild, false
	}
	if !cfg.AcceptsChannel(msg.ChannelID) || (parentID != "" && parentID == cfg.ForumChannelID) {
		return skipChannel, false
	}
	text := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(text, commandPrefix) {
		return skipCommand, false
	}
	if text == "" || utf8.RuneCountInString(text) < cfg.MinLength {
		return skipShort, false
	}
	return skipNone, true
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		m.prompter.HandleInteraction(s, i)
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == shareddiscord.CommandIndex {
			m.handleIndexCommand(s, i)
		}
	}
}

func (m *Module) handleIndexCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := shareddiscord.InteractionUser(i.Interaction)
	if user == nil || !shareddiscord.MemberHasRole(i.Member, m.config.AdminRoleID) {
		shareddiscord.RespondEphemeral(s, i.Interaction, "You don't have permission to manage the index.")
		return
	}

	ctx := m.runCtx()
	if ctx == nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "The triage module is not running.")
		return
	}

	sub, _ := shareddiscord.Subcommand(i.ApplicationCommandData())
	switch sub {
	case shareddiscord.SubcommandRebuild:
		stats, err := m.index.Rebuild(ctx, m.forum)
		if err != nil {
			log.Printf("intake: rebuild requested by %s failed: %v", user.ID, err)
			shareddiscord.RespondEphemeral(s, i.Interaction, "Index rebuild failed. Check the logs for details.")
			return
		}
		shareddiscord.RespondEphemeral(s, i.Interaction, fmt.Sprintf(
			"Index rebuilt from %d threads (%d entries, %d skipped).", stats.Threads, stats.Entries, stats.Skipped))
	case shareddiscord.SubcommandStats:
		names := map[string]string{}
		if tags, err := m.forum.AvailableTags(ctx); err == nil {
			for _, tag := range tags {
				names[tag.ID] = tag.Name
			}
		}
		shareddiscord.RespondEphemeral(s, i.Interaction, RenderStats(m.index.Stats(), names, m.engine.Active()))
	default:
		shareddiscord.RespondEphemeral(s, i.Interaction, "Unknown subcommand.")
	}
}

// RenderStats lists corpus sizes per tag, largest first.
func RenderStats(stats map[string]int, names map[string]string, active int) string {
	if len(stats) == 0 {
		return fmt.Sprintf("The index is empty. %d triage sessions in progress.", active)
	}

	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if stats[ids[a]] != stats[ids[b]] {
			return stats[ids[a]] > stats[ids[b]]
		}
		return ids[a] < ids[b]
	})

	var sb strings.Builder
	sb.WriteString("**Duplicate index**\n")
	for _, id := range ids {
		label := names[id]
		if label == "" {
			label = id
		}
		fmt.Fprintf(&sb, "%s: %d\n", label, stats[id])
	}
	fmt.Fprintf(&sb, "%d triage sessions in progress.", active)
	return sb.String()
}

func (m *Module) Start(ctx context.Context) error {
	runtimeCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.runtimeCtx = runtimeCtx
	m.mu.Unlock()

	if m.config.Cooldown > 0 {
		m.limiter.StartCleanup(runtimeCtx, 10*time.Minute)
	}
	return nil
}

// Stop aborts the running sessions and waits for them until ctx ends.
func (m *Module) Stop(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.runtimeCtx = nil
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("intake: %d sessions still running at shutdown", m.engine.Active())
	}
}
