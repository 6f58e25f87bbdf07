// Package xmpp sends tactical alerts to a coach or supporter over
// XMPP chat.
package xmpp

import (
	"crypto/tls"
	"errors"
	"strings"

	"github.com/mattn/go-xmpp"
	log "github.com/sirupsen/logrus"
)

type (
	// Config for the notifier.
	Config struct {
		Host     string
		Jid      string
		Password string
		To       string
	}

	Xmpp struct {
		Config Config
	}
)

func serverName(jid string) string {
	return strings.Split(jid, "@")[1]
}

// Enabled reports whether the notifier is configured.
func (x Xmpp) Enabled() bool {
	return len(x.Config.Jid) > 0 && len(x.Config.Password) > 0 && len(x.Config.To) > 0
}

// Send delivers one chat message to the configured recipient. A fresh
// client is created per message; alerts are rare enough that keeping a
// connection open is not worth the reconnect handling.
func (x Xmpp) Send(message string) error {

	if !x.Enabled() {
		log.Debug("missing xmpp config")

		return errors.New("missing xmpp config")
	}

	if len(x.Config.Host) == 0 {
		x.Config.Host = serverName(x.Config.Jid)
	}

	xmpp.DefaultConfig = tls.Config{
		InsecureSkipVerify: true,
	}

	options := xmpp.Options{
		Host:     x.Config.Host,
		User:     x.Config.Jid,
		Password: x.Config.Password,
		NoTLS:    true,
		StartTLS: true,
		Debug:    false,
		Session:  false,
		Status:   "xa",
	}

	talk, err := options.NewClient()
	if err != nil {
		log.WithError(err).Error("xmpp client")

		return err
	}
	defer talk.Close()

	log.WithField("to", x.Config.To).Debug("send xmpp alert")
	_, err = talk.Send(xmpp.Chat{Remote: x.Config.To, Type: "chat", Text: message})

	return err
}
