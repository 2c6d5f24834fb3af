package actions

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"

	intakemodule "github.com/stake-plus/forum-triage/src/actions/intake"
	leaderboardmodule "github.com/stake-plus/forum-triage/src/actions/leaderboard"
	"github.com/stake-plus/forum-triage/src/api/webserver"
	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	shareddata "github.com/stake-plus/forum-triage/src/data"
	shareddiscord "github.com/stake-plus/forum-triage/src/discord"
	"github.com/stake-plus/forum-triage/src/triage"
)

// NewSession creates a Discord session with the intents the bot modules need.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("actions: discord token not configured")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	return session, nil
}

// StartAll wires up enabled action modules and starts the manager. db may be
// nil, in which case attributions are only recovered from thread bodies.
func StartAll(ctx context.Context, db *gorm.DB) (*Manager, error) {
	mgr := NewManager()

	triageCfg := sharedconfig.LoadTriageConfig(db)
	leaderboardCfg := sharedconfig.LoadLeaderboardConfig(db)
	apiCfg := sharedconfig.LoadAPIConfig()

	if !triageCfg.Enabled && !leaderboardCfg.Enabled {
		return nil, fmt.Errorf("actions: triage and leaderboard are both disabled")
	}

	session, err := NewSession(triageCfg.Token)
	if err != nil {
		return nil, err
	}
	forum := shareddiscord.NewForum(session, triageCfg.GuildID, triageCfg.ForumChannelID)

	deps := webserver.Deps{}

	var attributions triage.AttributionStore
	if db != nil {
		store := shareddata.NewAttributionStore(db)
		attributions = store
		deps.Attributions = store
	}

	var events *shareddata.EventStream
	var publisher triage.EventPublisher
	if triageCfg.RedisURL != "" {
		rdb, err := shareddata.NewRedis(triageCfg.RedisURL)
		if err != nil {
			log.Printf("actions: event stream disabled: %v", err)
		} else {
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Printf("actions: redis not reachable yet: %v", err)
			}
			events = shareddata.NewEventStream(rdb)
			publisher = events
		}
	} else {
		log.Printf("actions: REDIS_URL not set, events will not be published")
	}

	if triageCfg.Enabled {
		mod, err := intakemodule.NewModule(&triageCfg, session, forum, intakemodule.Dependencies{
			Attributions: attributions,
			Events:       publisher,
		})
		if err != nil {
			return nil, fmt.Errorf("actions: init triage module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add triage module: %w", err)
		}
		deps.Index = mod.Index()
		deps.Forum = forum
	} else {
		log.Printf("actions: triage module disabled via configuration")
	}

	if leaderboardCfg.Enabled {
		mod, err := leaderboardmodule.NewModule(&leaderboardCfg, session, forum, leaderboardmodule.Dependencies{
			Attributions: attributions,
			Events:       publisher,
		})
		if err != nil {
			return nil, fmt.Errorf("actions: init leaderboard module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add leaderboard module: %w", err)
		}
		deps.Leaderboard = mod.Aggregator()
	} else {
		log.Printf("actions: leaderboard module disabled via configuration")
	}

	if apiCfg.Enabled {
		if events != nil {
			deps.Events = events
		}
		if err := mgr.Add(webserver.New(apiCfg, deps)); err != nil {
			return nil, fmt.Errorf("actions: add api module: %w", err)
		}
	} else {
		log.Printf("actions: api disabled (set JWT_SECRET to enable)")
	}

	if err := mgr.Add(&gateway{session: session}); err != nil {
		return nil, fmt.Errorf("actions: add discord gateway: %w", err)
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}

	return mgr, nil
}
