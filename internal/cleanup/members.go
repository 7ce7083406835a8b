package cleanup

import (
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/samber/lo"
)

// stateListenerCounter counts listeners from the gateway's cached voice
// states.
type stateListenerCounter struct {
	st *state.State
}

// NewListenerCounter builds a ListenerCounter over the state cache.
func NewListenerCounter(st *state.State) ListenerCounter {
	return &stateListenerCounter{st: st}
}

func (c *stateListenerCounter) CountListeners(guildID discord.GuildID, channelID discord.ChannelID) (int, error) {
	states, err := c.st.Cabinet.VoiceStates(guildID)
	if err != nil {
		return 0, err
	}

	inChannel := lo.Filter(states, func(vs discord.VoiceState, _ int) bool {
		return vs.ChannelID == channelID
	})
	listeners := lo.Reject(inChannel, func(vs discord.VoiceState, _ int) bool {
		return c.isBot(guildID, vs)
	})

	return len(listeners), nil
}

func (c *stateListenerCounter) isBot(guildID discord.GuildID, vs discord.VoiceState) bool {
	if vs.Member != nil {
		return vs.Member.User.Bot
	}
	member, err := c.st.Member(guildID, vs.UserID)
	if err != nil {
		// Unknown member; assume human so empty-channel teardowns stay
		// conservative.
		return false
	}
	return member.User.Bot
}
