package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/remote"
	"eduops.app/relay/internal/resolver"
)

func managersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "managers",
		Short: "List the account's managers",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			managers, err := collect(s, s.client.ListManagers(cmd.Context(), s.account))
			if err != nil {
				return err
			}
			return s.print(managers)
		},
	}
}

func subscribersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribers",
		Short: "List the account's subscribers with their resolved display names",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			subs, err := collect(s, s.client.ListSubscribers(cmd.Context(), s.account))
			if err != nil {
				return err
			}
			type row struct {
				Subscriber   model.Subscriber `json:"subscriber" yaml:"subscriber"`
				ResolvedName string           `json:"resolved_name" yaml:"resolved_name"`
			}
			rows := make([]row, 0, len(subs))
			for _, sub := range subs {
				rows = append(rows, row{Subscriber: sub, ResolvedName: resolver.ResolveName(sub)})
			}
			return s.print(rows)
		},
	}
}

func conversationsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List the account's conversations as the platform reports them",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			convs, err := collect(s, s.client.ListConversations(cmd.Context(), s.account))
			if err != nil {
				return err
			}
			return s.print(convs)
		},
	}
}

func messagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "List the messages of one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			msgs, err := collect(s, s.client.ListMessages(cmd.Context(), s.account, args[0]))
			if err != nil {
				return err
			}
			return s.print(msgs)
		},
	}
}

func resolveNameCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-name <subscriber-id>",
		Short: "Show the display name the dashboards would use for a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			sub, err := findSubscriber(s, cmd, args[0])
			if err != nil {
				return err
			}
			return s.print(map[string]string{
				"subscriber_id": sub.ID.String(),
				"name":          resolver.ResolveName(*sub),
			})
		},
	}
}

func resolveManagerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-manager <subscriber-id>",
		Short: "Show which manager a subscriber's tags assign it to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			sub, err := findSubscriber(s, cmd, args[0])
			if err != nil {
				return err
			}
			managers, err := remote.Collect(s.client.ListManagers(cmd.Context(), s.account))
			if err != nil {
				return err
			}
			m := resolver.ResolveManager(*sub, s.account, managers)
			if m == nil {
				return s.print(map[string]any{"subscriber_id": sub.ID.String(), "manager": nil})
			}
			return s.print(map[string]any{"subscriber_id": sub.ID.String(), "manager": m})
		},
	}
}

// findSubscriber pages until the subscriber shows up. --max-pages bounds the
// search.
func findSubscriber(s *session, cmd *cobra.Command, id string) (*model.Subscriber, error) {
	n := 0
	for page, err := range s.client.ListSubscribers(cmd.Context(), s.account) {
		if err != nil {
			return nil, err
		}
		for i := range page {
			if page[i].ID.String() == id {
				return &page[i], nil
			}
		}
		n++
		if s.opts.maxPages > 0 && n >= s.opts.maxPages {
			break
		}
	}
	return nil, fmt.Errorf("subscriber %s not found in account %s", id, s.account)
}
