package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/forum-triage/src/triage"
)

type pendingPrompt struct {
	submitterID string
	answers     chan triage.Choice
}

// Prompter asks submitters questions with message components and waits for
// their clicks. Register HandleInteraction with the session.
type Prompter struct {
	session *discordgo.Session

	mu      sync.Mutex
	pending map[string]*pendingPrompt
}

var _ triage.Prompter = (*Prompter)(nil)

func NewPrompter(s *discordgo.Session) *Prompter {
	return &Prompter{session: s, pending: make(map[string]*pendingPrompt)}
}

// Ask replies to the submission with the prompt and blocks until the submitter
// clicks, the timeout passes (triage.ErrTimeout) or ctx ends. The controls are
// disabled afterwards in every case.
func (p *Prompter) Ask(ctx context.Context, prompt triage.Prompt) (triage.Choice, error) {
	waiter := &pendingPrompt{
		submitterID: prompt.Submission.SubmitterID,
		answers:     make(chan triage.Choice, 1),
	}
	p.mu.Lock()
	p.pending[prompt.ID] = waiter
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, prompt.ID)
		p.mu.Unlock()
	}()

	msg, err := p.session.ChannelMessageSendComplex(prompt.Submission.ChannelID, &discordgo.MessageSend{
		Content:         truncate(prompt.Text),
		Components:      BuildComponents(prompt, false),
		Reference:       replyTo(prompt.Submission),
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return triage.Choice{}, fmt.Errorf("%w: send prompt: %v", triage.ErrTransport, err)
	}
	defer p.disable(msg, prompt)

	timeout := prompt.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case choice := <-waiter.answers:
		return choice, nil
	case <-timer.C:
		return triage.Choice{}, triage.ErrTimeout
	case <-ctx.Done():
		return triage.Choice{}, ctx.Err()
	}
}

func (p *Prompter) disable(msg *discordgo.Message, prompt triage.Prompt) {
	components := BuildComponents(prompt, true)
	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         msg.ID,
		Channel:    msg.ChannelID,
		Components: &components,
	})
	if err != nil {
		log.Printf("discord: disable prompt %s: %v", prompt.ID, err)
	}
}

// Notify replies to the submission with text.
func (p *Prompter) Notify(ctx context.Context, sub triage.Submission, text string) error {
	_, err := p.session.ChannelMessageSendComplex(sub.ChannelID, &discordgo.MessageSend{
		Content:         truncate(text),
		Reference:       replyTo(sub),
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: notify: %v", triage.ErrTransport, err)
	}
	return nil
}

// HandleInteraction routes prompt clicks to the waiting Ask call. Other
// interactions are ignored.
func (p *Prompter) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()
	promptID, value, ok := ParseComponentID(data.CustomID)
	if !ok {
		return
	}

	p.mu.Lock()
	waiter := p.pending[promptID]
	p.mu.Unlock()

	if waiter == nil {
		RespondEphemeral(s, i.Interaction, "This prompt has expired.")
		return
	}
	user := InteractionUser(i.Interaction)
	if user == nil || user.ID != waiter.submitterID {
		RespondEphemeral(s, i.Interaction, "Only the person who asked the question can choose.")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Printf("discord: acknowledge prompt %s: %v", promptID, err)
	}

	select {
	case waiter.answers <- ChoiceFromComponent(value, data):
	default:
	}
}

// RespondEphemeral answers an interaction with a message only the invoker sees.
func RespondEphemeral(s *discordgo.Session, i *discordgo.Interaction, content string) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("discord: ephemeral response: %v", err)
	}
}

func truncate(text string) string {
	return triage.Truncate(text, MaxDiscordMessageLen)
}
