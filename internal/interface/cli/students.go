package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/internal/interface/presenter"
)

// StudentsView is the json payload of the list command.
type StudentsView struct {
	Loaded bool            `json:"loaded"`
	State  string          `json:"state"`
	Header string          `json:"header"`
	Rows   []presenter.Row `json:"rows"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST / RENDER
// ══════════════════════════════════════════════════════════════════════════════

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered students, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, false)
		},
	}
}

// NewRenderCommand creates the render command.
func NewRenderCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Print the student list as a text table regardless of --format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, true)
		},
	}
}

func runList(cmd *cobra.Command, opts *RootOptions, forceText bool) error {
	out := opts.formatter(cmd)
	if forceText {
		out.Format = "text"
	}

	session, err := opts.openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer session.Close()

	if session.LoadFailed() {
		_ = out.Error("fetch_failed", "could not load students", session.Notifications())
		return reportedError(ExitFailure, "could not load students")
	}

	list := presenter.NewStudentList(session.Registry, session.Notifier())

	if out.Format == "json" {
		return out.Success(StudentsView{
			Loaded: session.Registry.Loaded(),
			State:  string(list.State()),
			Header: list.Header(),
			Rows:   list.Rows(),
		}, session.Notifications())
	}

	var buf bytes.Buffer
	if err := list.Render(&buf); err != nil {
		return err
	}
	return out.Success(strings.TrimRight(buf.String(), "\n"), session.Notifications())
}

// ══════════════════════════════════════════════════════════════════════════════
// ADD
// ══════════════════════════════════════════════════════════════════════════════

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	var fields presenter.FormFields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new student",
		Long: `Register a new student. All four fields are required.

Example:
  studentctl add --name "Alice" --email alice@example.com --instrument Piano --level Beginner`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)

			session, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			form := presenter.NewRegistrationForm(session.Registry, session.Notifier())
			form.Fill(fields)

			created, result := form.Submit(cmd.Context())
			switch result {
			case presenter.SubmitRejected:
				msg := "level must be Beginner, Intermediate or Advanced"
				if missing := form.Fields().Missing(); len(missing) > 0 {
					msg = "missing: " + strings.Join(missing, ", ")
				}
				_ = out.Error("missing_fields", msg, session.Notifications())
				return reportedError(ExitCommandError, "missing fields")
			case presenter.SubmitFailed:
				_ = out.Error("store_error", "the store did not accept the student", session.Notifications())
				return reportedError(ExitFailure, "registration failed")
			}

			if out.Format == "json" {
				return out.Success(created, session.Notifications())
			}
			return out.Success(fmt.Sprintf("Registered %s (%s)", created.Name, created.ID), session.Notifications())
		},
	}

	cmd.Flags().StringVar(&fields.Name, "name", "", "student name")
	cmd.Flags().StringVar(&fields.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&fields.Instrument, "instrument", "", "instrument")
	cmd.Flags().StringVar(&fields.SkillLevel, "level", "", "skill level (Beginner|Intermediate|Advanced)")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// NewUpdateCommand creates the update command.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var name, email, instrument, level string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a registered student",
		Long: `Edit a registered student. Only the given flags change; the other
fields keep their current values.

Example:
  studentctl update 6f1c... --instrument Cello --level Intermediate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			flags := cmd.Flags()

			var patch student.Patch
			if flags.Changed("name") {
				patch.Name = student.StringPtr(name)
			}
			if flags.Changed("email") {
				patch.Email = student.StringPtr(email)
			}
			if flags.Changed("instrument") {
				patch.Instrument = student.StringPtr(instrument)
			}
			if flags.Changed("level") {
				parsed, err := student.ParseSkillLevel(level)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --level", err)
				}
				patch.SkillLevel = student.SkillPtr(parsed)
			}
			if patch.IsEmpty() {
				return NewExitError(ExitCommandError, "nothing to update: pass at least one of --name, --email, --instrument, --level")
			}

			session, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			dialog, ok := presenter.NewStudentList(session.Registry, session.Notifier()).Edit(args[0])
			if !ok {
				_ = out.Error("not_found", fmt.Sprintf("no student with id %q", args[0]), session.Notifications())
				return reportedError(ExitCommandError, "student not found")
			}

			dialog.Apply(patch)
			updated := dialog.Save(cmd.Context())
			if updated == nil {
				_ = out.Error("store_error", "the store did not accept the update", session.Notifications())
				return reportedError(ExitFailure, "update failed")
			}

			if out.Format == "json" {
				return out.Success(updated, session.Notifications())
			}
			return out.Success(fmt.Sprintf("Updated %s (%s)", updated.Name, updated.ID), session.Notifications())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	cmd.Flags().StringVar(&instrument, "instrument", "", "new instrument")
	cmd.Flags().StringVar(&level, "level", "", "new skill level (Beginner|Intermediate|Advanced)")

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE
// ══════════════════════════════════════════════════════════════════════════════

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a registered student",
		Long: `Remove a registered student. Deletion cannot be undone and requires --yes.

Example:
  studentctl delete 6f1c... --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to delete without --yes")
			}
			out := opts.formatter(cmd)

			session, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			list := presenter.NewStudentList(session.Registry, session.Notifier())
			list.RequestDelete(args[0])
			if !list.ConfirmDelete(cmd.Context()) {
				_ = out.Error("store_error", fmt.Sprintf("could not delete %q", args[0]), session.Notifications())
				return reportedError(ExitFailure, "delete failed")
			}

			if out.Format == "json" {
				return out.Success(map[string]string{"deleted": args[0]}, session.Notifications())
			}
			return out.Success(fmt.Sprintf("Deleted %s", args[0]), session.Notifications())
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")

	return cmd
}
