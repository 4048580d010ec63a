// Package discord posts announcements and operator alerts to Discord.
package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Notifier wraps a Discord bot session. Outside production mode, alerts go
// to the log only so test runs don't ping anyone.
type Notifier struct {
	log          *logrus.Logger
	session      *discordgo.Session
	alertChannel string
	production   bool
}

func New(log *logrus.Logger, token, alertChannel string, production bool) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "creating discord session")
	}
	if err := session.Open(); err != nil {
		return nil, errors.Wrap(err, "opening discord session")
	}
	return &Notifier{
		log:          log,
		session:      session,
		alertChannel: alertChannel,
		production:   production,
	}, nil
}

// Announce posts to the given channel.
func (n *Notifier) Announce(channelID, msg string) error {
	_, err := n.session.ChannelMessageSend(channelID, msg)
	return errors.Wrap(err, "sending discord message")
}

// Alert posts to the operator channel. Outside production it only logs.
func (n *Notifier) Alert(msg string) error {
	if !n.production {
		n.log.WithField("alert", msg).Warn("discord alert suppressed outside production")
		return nil
	}
	return n.Announce(n.alertChannel, msg)
}

func (n *Notifier) Close() error {
	return n.session.Close()
}
