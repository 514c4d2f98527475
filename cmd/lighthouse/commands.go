package main

import (
	"fmt"
	"io"

	"lighthouse/internal/client"
	"lighthouse/internal/client/google"
	"lighthouse/internal/email/dto"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in, grant Gmail access and fetch your latest emails",
	Long: "Signs in with Google (default) or with --email/--password, then asks for Gmail read access, " +
		"hands the grant to the server and prints the latest emails. Running it again restarts from the beginning.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var provider client.IdentityProvider
		email, _ := cmd.Flags().GetString("email")
		if email != "" || cmd.Flags().Changed("password") {
			password, _ := cmd.Flags().GetString("password")
			confirm, _ := cmd.Flags().GetString("confirm")
			signUp, _ := cmd.Flags().GetBool("signup")
			provider = google.NewPasswordProvider(d.googleProvider(nil), d.firebase, google.Credentials{
				Email:    email,
				Password: password,
				Confirm:  confirm,
				SignUp:   signUp,
			})
		} else {
			verifier, err := google.NewVerifier(ctx, viper.GetString("google.client_id"))
			if err != nil {
				return err
			}
			var opts []google.ProviderOption
			if embed, _ := cmd.Flags().GetBool("embed-grant"); embed {
				opts = append(opts, google.WithEmbeddedGrant())
			}
			provider = d.googleProvider(verifier, opts...)
		}

		out, err := d.orchestrator(provider).SignIn(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), client.MsgSignedIn)
		renderEmails(cmd.OutOrStdout(), out.Emails)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in and their latest emails",
	RunE:  runResume,
}

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "Print the latest stored emails",
	RunE:  runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}
	out, err := d.orchestrator(d.googleProvider(nil)).Resume(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch out.State {
	case client.SignedOut:
		fmt.Fprintln(w, "Not signed in. Run `lighthouse signin`.")
	case client.SignedInNoEmails:
		fmt.Fprintf(w, "Signed in as %s. Gmail access has not been granted yet; run `lighthouse signin`.\n", displayName(out.Identity))
	default:
		fmt.Fprintf(w, "Signed in as %s.\n", displayName(out.Identity))
		renderEmails(w, out.Emails)
	}
	return nil
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the Gmail access token stored on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps()
		if err != nil {
			return err
		}
		resp, err := d.orchestrator(d.googleProvider(nil)).RefreshTokens(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var deleteDataCmd = &cobra.Command{
	Use:   "delete-data",
	Short: "Delete the Gmail tokens and emails stored for your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps()
		if err != nil {
			return err
		}
		resp, err := d.orchestrator(d.googleProvider(nil)).DeleteData(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps()
		if err != nil {
			return err
		}
		if err := d.orchestrator(d.googleProvider(nil)).SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	f := signinCmd.Flags()
	f.String("email", "", "Sign in with this email instead of Google")
	f.String("password", "", "Password for --email")
	f.String("confirm", "", "Password confirmation for --signup")
	f.Bool("signup", false, "Create the email/password account first")
	f.Bool("embed-grant", false, "Request Gmail access during Google sign-in and skip the second consent")
}

func displayName(identity *client.Identity) string {
	if identity == nil {
		return "unknown user"
	}
	if identity.Email != "" {
		return identity.Email
	}
	return identity.UID
}

func renderEmails(w io.Writer, resp *dto.GetUserEmailsResponse) {
	if resp == nil || len(resp.Emails) == 0 {
		fmt.Fprintln(w, client.MsgNoEmails)
		return
	}
	fmt.Fprintf(w, "Successfully loaded %d emails!\n", len(resp.Emails))
	if resp.TotalCount != nil && *resp.TotalCount > len(resp.Emails) {
		fmt.Fprintf(w, "Showing %d of %d stored emails.\n", len(resp.Emails), *resp.TotalCount)
	}
	for _, e := range resp.Emails {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", e.Subject)
		fmt.Fprintf(w, "  From: %s\n", e.Sender)
		fmt.Fprintf(w, "  Date: %s\n", e.Date)
		if e.Snippet != "" {
			fmt.Fprintf(w, "  %s\n", e.Snippet)
		}
	}
}
