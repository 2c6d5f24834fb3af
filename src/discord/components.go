package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/forum-triage/src/triage"
)

const (
	componentPrefix = "triage"
	selectValue     = "select"
	maxSelectItems  = 25
	maxButtonsInRow = 5
)

// ComponentID encodes a prompt option into a component custom ID.
func ComponentID(promptID, value string) string {
	return componentPrefix + "|" + promptID + "|" + value
}

// ParseComponentID splits a custom ID produced by ComponentID.
func ParseComponentID(customID string) (promptID, value string, ok bool) {
	parts := strings.SplitN(customID, "|", 3)
	if len(parts) != 3 || parts[0] != componentPrefix || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func buttonStyle(style triage.OptionStyle) discordgo.ButtonStyle {
	switch style {
	case triage.StyleSuccess:
		return discordgo.SuccessButton
	case triage.StyleDanger:
		return discordgo.DangerButton
	case triage.StyleSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

// BuildComponents renders a prompt as a tag multi-select (when it offers tags)
// followed by rows of buttons.
func BuildComponents(p triage.Prompt, disabled bool) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent

	if len(p.Tags) > 0 {
		tags := p.Tags
		if len(tags) > maxSelectItems {
			tags = tags[:maxSelectItems]
		}
		options := make([]discordgo.SelectMenuOption, 0, len(tags))
		for _, tag := range tags {
			options = append(options, discordgo.SelectMenuOption{Label: tag.Name, Value: tag.ID})
		}
		minValues := 1
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    ComponentID(p.ID, selectValue),
				Placeholder: "Choose one or more tags",
				MinValues:   &minValues,
				MaxValues:   len(options),
				Options:     options,
				Disabled:    disabled,
			},
		}})
	}

	var buttons []discordgo.MessageComponent
	for _, opt := range p.Options {
		buttons = append(buttons, discordgo.Button{
			Label:    opt.Label,
			Style:    buttonStyle(opt.Style),
			CustomID: ComponentID(p.ID, opt.Value),
			Disabled: disabled,
		})
		if len(buttons) == maxButtonsInRow {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
			buttons = nil
		}
	}
	if len(buttons) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}
	return rows
}

// ChoiceFromComponent turns a component interaction into a prompt choice.
func ChoiceFromComponent(value string, data discordgo.MessageComponentInteractionData) triage.Choice {
	if value == selectValue {
		return triage.Choice{Action: selectValue, Values: append([]string(nil), data.Values...)}
	}
	return triage.Choice{Action: value}
}
