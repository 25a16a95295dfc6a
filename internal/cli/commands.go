package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-triage/internal/triage"
)

func (a *app) loginCommand() *cobra.Command {
	var username string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				username = a.cfg.Username
			}
			if username == "" {
				return errors.New("--username is required (or set username in triage.yaml)")
			}
			password, err := a.readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			cred, err := a.backend.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.writeJSON(cred)
			}
			fmt.Fprintf(a.env.Out, "Logged in as %s", username)
			if !cred.ExpiresAt.IsZero() {
				fmt.Fprintf(a.env.Out, " (session expires %s)", cred.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(a.env.Out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// readPassword takes TRIAGE_PASSWORD, then stdin. Without --password-stdin a
// prompt is written to stderr first.
func (a *app) readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if pw := a.env.Getenv("TRIAGE_PASSWORD"); pw != "" && !fromStdin {
		return pw, nil
	}
	if !fromStdin {
		fmt.Fprint(a.env.Err, "Password: ")
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.backend.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.env.Out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.backend.Me(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.writeJSON(user)
			}
			fmt.Fprintln(a.env.Out, user.Username)
			return nil
		},
	}
}

func (a *app) overviewCommand() *cobra.Command {
	var collapse []string
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Status counts and tickets grouped by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overview := triage.NewOverview(a.backend, triage.WithOverviewLogger(a.logger))
			defer overview.Close()

			state, fetchErr := overview.FetchAll(cmd.Context())
			if triage.KindOf(fetchErr) == triage.KindAuth {
				return fetchErr
			}
			for _, name := range collapse {
				if _, err := overview.ToggleSection(name); err != nil {
					return err
				}
			}
			state = overview.State()
			if a.jsonOut {
				return a.writeJSON(overviewJSON(state))
			}
			a.warnDataset(state, fetchErr)
			renderOverview(a.env.Out, state)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&collapse, "collapse", nil, "priority groups to collapse (e.g. --collapse Other)")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var status, assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, optionally filtered by status and assignee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overview := triage.NewOverview(a.backend, triage.WithOverviewLogger(a.logger))
			defer overview.Close()

			state, fetchErr := overview.FetchAll(cmd.Context())
			if triage.KindOf(fetchErr) == triage.KindAuth {
				return fetchErr
			}
			tickets := overview.Filtered(triage.FilterCriteria{
				triage.FilterStatus:   status,
				triage.FilterAssignee: assignee,
			})
			if a.jsonOut {
				return a.writeJSON(listJSON(state, tickets))
			}
			a.warnDataset(state, fetchErr)
			renderTicketTable(a.env.Out, tickets)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "substring match on status (case-insensitive)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "substring match on assignee (case-insensitive)")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ticket>",
		Short: "Show a ticket with its comment thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := a.newSession()
			defer session.Close()
			if err := session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.printRecord(session.Snapshot())
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ticket> <new status>",
		Short: "Move a ticket to a new status",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := a.newSession()
			defer session.Close()
			if err := session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := session.ChangeStatus(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
				return err
			}
			return a.printRecord(session.Snapshot())
		},
	}
}

func (a *app) commentCommand() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "comment <ticket> [text...]",
		Short: "Add a comment to a ticket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args[1:], " ")
			if fromStdin {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read comment: %w", err)
				}
				body = strings.TrimRight(string(raw), "\r\n")
			}

			session := a.newSession()
			defer session.Close()
			if err := session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			session.SetDraft(body)
			err := session.SubmitDraft(cmd.Context())
			snap := session.Snapshot()
			if err != nil && snap.Draft == body {
				return err
			}
			if err != nil {
				fmt.Fprintln(a.env.Err, "comment added, but the ticket could not be refreshed:", triage.UserMessage(err))
				return nil
			}
			return a.printRecord(snap)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the comment body from stdin")
	return cmd
}

func (a *app) projectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List known projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := a.backend.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.writeJSON(projects)
			}
			renderProjects(a.env.Out, projects)
			return nil
		},
	}
}

func (a *app) newSession() *triage.Session {
	return triage.NewSession(a.backend, triage.WithSessionLogger(a.logger))
}

func (a *app) printRecord(snap triage.SessionSnapshot) error {
	if snap.Record == nil {
		return errors.New("no ticket loaded")
	}
	if a.jsonOut {
		return a.writeJSON(snap.Record)
	}
	renderTicket(a.env.Out, *snap.Record, a.cfg.JiraBaseURL)
	return nil
}

func (a *app) warnDataset(state triage.OverviewState, err error) {
	switch state.Dataset {
	case triage.DatasetDegraded:
		fmt.Fprintln(a.env.Err, warnStyle.Render("warning: "+triage.UserMessage(err)+" Showing sample tickets."))
	case triage.DatasetStale:
		fmt.Fprintln(a.env.Err, warnStyle.Render("warning: "+triage.UserMessage(err)+" Showing the last loaded tickets."))
	}
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.env.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
