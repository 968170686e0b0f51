package usage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nemo-facility/nemo-app-drive/nemo"
	"github.com/nemo-facility/nemo-app-drive/records"
)

type User struct {
	Username string
	FullName string
	Email    string
}

// Lookups maps the tool and user ids in the usage events to names. It is built
// once per run and passed to the stages that need it.
type Lookups struct {
	Tools map[string]string
	Users map[string]User
}

// FetchLookups retrieves the tool and user lists concurrently.
func FetchLookups(ctx context.Context, source nemo.Source) (*Lookups, error) {
	var tools, users *records.Table

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		if tools, err = source.Tools(ctx); err != nil {
			return fmt.Errorf("error fetching tool list (%w)", err)
		}
		return nil
	})

	g.Go(func() (err error) {
		if users, err = source.Users(ctx); err != nil {
			return fmt.Errorf("error fetching user list (%w)", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewLookups(tools, users), nil
}

// NewLookups builds the lookups from a tool list (id, name) and a user list
// (id, username, first_name, last_name, email). Either table may be nil.
func NewLookups(tools, users *records.Table) *Lookups {
	lookups := Lookups{
		Tools: map[string]string{},
		Users: map[string]User{},
	}

	if tools != nil {
		for _, r := range tools.Records {
			if id := tools.Value(r, "id"); id != "" {
				lookups.Tools[id] = tools.Value(r, "name")
			}
		}
	}

	if users != nil {
		for _, r := range users.Records {
			id := users.Value(r, "id")
			if id == "" {
				continue
			}

			username := users.Value(r, "username")
			if username == "" {
				username = UnknownUser
			}

			name := strings.TrimSpace(users.Value(r, "first_name") + " " + users.Value(r, "last_name"))
			if name == "" {
				name = username
			}

			email := users.Value(r, "email")
			if email == "" {
				email = UnknownEmail
			}

			lookups.Users[id] = User{
				Username: username,
				FullName: name,
				Email:    email,
			}
		}
	}

	return &lookups
}

// AddTools adds a 'tool_name' column. Nothing is added if the tool list is
// empty.
func (l *Lookups) AddTools(events *records.Table) *records.Table {
	if l == nil || len(l.Tools) == 0 {
		return events
	}

	table := events.Align(records.Union(events.Header, []string{"tool_name"}))
	ix := table.Column("tool_name")

	for _, record := range table.Records {
		name, ok := l.Tools[table.Value(record, "tool")]
		if !ok {
			name = UnknownTool
		}

		record[ix] = name
	}

	return table
}

// AddUsers adds the 'user_username', 'user_full_name' and 'user_email' columns.
// Nothing is added if the user list is empty.
func (l *Lookups) AddUsers(events *records.Table) *records.Table {
	if l == nil || len(l.Users) == 0 {
		return events
	}

	table := events.Align(records.Union(events.Header, []string{"user_username", "user_full_name", "user_email"}))
	username := table.Column("user_username")
	name := table.Column("user_full_name")
	email := table.Column("user_email")

	for _, record := range table.Records {
		user, ok := l.Users[table.Value(record, "user")]
		if !ok {
			user = User{Username: UnknownUser, FullName: UnknownUser, Email: UnknownEmail}
		}

		record[username] = user.Username
		record[name] = user.FullName
		record[email] = user.Email
	}

	return table
}
