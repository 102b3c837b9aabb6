package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/store"
)

// AddCmd stores one user.
var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user by session token",
	Long: `Add a user from the value of their connect.sid cookie.

Example:
  rollcall add --token 's%3A...' --student-id 2021CS001`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		studentID, _ := cmd.Flags().GetString("student-id")
		name, _ := cmd.Flags().GetString("name")
		return runAdd(store.Credential{SessionToken: token, StudentID: studentID, Name: name})
	},
}

// ImportCmd bulk-imports users from a JSON array.
var ImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import users from a JSON array",
	Long: `Import users from a JSON array of objects. Each object needs a session
token under connectSid (or connect_sid); stuId is optional. Objects without
a token are skipped. Malformed input leaves the stored users untouched.

Examples:
  rollcall import users.json
  pbpaste | rollcall import -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.InOrStdin(), args[0])
	},
}

// ListCmd prints stored users.
var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored users",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList()
	},
}

// RemoveCmd deletes one user.
var RemoveCmd = &cobra.Command{
	Use:     "remove <id|name|#>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored user",
	Long:    `Remove a user by id, id prefix, name, or the row number shown by 'rollcall list'.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemove(args[0])
	},
}

// ExportCmd writes the stored users as JSON.
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print stored users as JSON",
	Long: `Print the stored users in the same JSON shape 'rollcall import' accepts.
The output contains session tokens.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.OutOrStdout())
	},
}

func init() {
	AddCmd.Flags().String("token", "", "connect.sid session token (required)")
	AddCmd.Flags().String("student-id", "", "Student id")
	AddCmd.Flags().String("name", "", "Display name (default \"User N\")")
	_ = AddCmd.MarkFlagRequired("token")
}

func runAdd(c store.Credential) error {
	env, err := Open()
	if err != nil {
		return err
	}
	added, ok, err := env.Store.Add(c)
	if err != nil {
		return errors.Wrap(err, "failed to save users")
	}
	if !ok {
		return errors.New("session token is required")
	}
	pterm.Success.Printfln("Added %s (%s)", added.Name, shortID(added.ID))
	return nil
}

func runImport(stdin io.Reader, source string) error {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", source)
	}

	env, err := Open()
	if err != nil {
		return err
	}
	n, err := env.Store.BulkImport(data)
	if err != nil {
		if errors.Is(err, store.ErrMalformedInput) {
			return errors.WithHint(err, "expected a JSON array like [{\"connectSid\": \"...\", \"stuId\": \"...\"}]")
		}
		return err
	}
	pterm.Success.Printfln("Imported %d users (%d stored)", n, env.Store.Len())
	return nil
}

func runList() error {
	env, err := Open()
	if err != nil {
		return err
	}
	creds := env.Store.Credentials()
	if len(creds) == 0 {
		pterm.Info.Println("No users stored")
		return nil
	}

	data := pterm.TableData{{"#", "ID", "Name", "Student ID", "Token", "Last used"}}
	for i, c := range creds {
		used := "never"
		if c.LastUsedAt != nil {
			used = c.LastUsedAt.Local().Format("2006-01-02 15:04")
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			shortID(c.ID),
			c.Name,
			c.StudentID,
			attendance.TokenPreview(c.SessionToken),
			used,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runRemove(ref string) error {
	env, err := Open()
	if err != nil {
		return err
	}
	c, err := resolveCredential(env.Store.Credentials(), ref)
	if err != nil {
		return err
	}
	if err := env.Store.Remove(c.ID); err != nil {
		return errors.Wrap(err, "failed to save users")
	}
	pterm.Success.Printfln("Removed %s (%s)", c.Name, shortID(c.ID))
	return nil
}

func runExport(w io.Writer) error {
	env, err := Open()
	if err != nil {
		return err
	}
	data, err := env.Store.Export()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// resolveCredential finds exactly one credential by id, unique id prefix,
// name, or 1-based row number.
func resolveCredential(creds []store.Credential, ref string) (store.Credential, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(creds) {
		return creds[n-1], nil
	}

	var matches []store.Credential
	for _, c := range creds {
		if c.ID == ref || c.Name == ref {
			return c, nil
		}
		if ref != "" && strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return store.Credential{}, errors.Newf("no user matches %q", ref)
	case 1:
		return matches[0], nil
	}
	return store.Credential{}, errors.Newf("%q matches %d users, use a longer id", ref, len(matches))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
