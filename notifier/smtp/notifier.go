// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package smtp

import (
	"context"
	"fmt"

	"github.com/smsgwd/smsgwd/internal/email"
	"github.com/smsgwd/smsgwd/notifier"
)

const footer = "Sent by smsgwd"

var _ notifier.Notifier = (*smtpNotifier)(nil)

type smtpNotifier struct {
	agent *email.Agent
	from  string
}

// New instantiates a Notifier backed by an SMTP mail agent.
func New(agent *email.Agent, from string) notifier.Notifier {
	return &smtpNotifier{agent: agent, from: from}
}

func (n *smtpNotifier) Notify(_ context.Context, to []string, recipient, htmlBody string) error {
	subject := fmt.Sprintf("New activity for %s", recipient)
	return n.agent.Send(to, n.from, subject, "", "", htmlBody, footer)
}
