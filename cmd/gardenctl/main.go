// Command gardenctl is the command line client for gardend. It keeps the
// anonymous gardener identity in a local file and sends it with every call.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gardenkeep/internal/client"
	"gardenkeep/internal/config"
	"gardenkeep/internal/identity"
	"gardenkeep/internal/session"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "gardenctl:", err)
		return 1
	}
	return 0
}

// cli carries the state shared by every subcommand.
type cli struct {
	v            *viper.Viper
	identityPath string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: config.New()}
	root := &cobra.Command{
		Use:           "gardenctl",
		Short:         "Manage your plants, favorites and garden chores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("api", "", "gardend base URL")
	_ = c.v.BindPFlag(config.KeyAPIURL, root.PersistentFlags().Lookup("api"))
	root.PersistentFlags().StringVar(&c.identityPath, "identity-file", "", "identity file (default: user config dir)")

	root.AddCommand(
		c.identityCmd(),
		c.plantsCmd(),
		c.favoritesCmd(),
		c.choresCmd(),
		c.schedulesCmd(),
		c.searchCmd(),
		c.imagesCmd(),
	)
	return root
}

func (c *cli) provider() (*identity.Provider, error) {
	path := c.identityPath
	if path == "" {
		var err error
		if path, err = identity.DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	return identity.NewProvider(identity.NewFileStore(path)), nil
}

// api resolves the identity and returns a client acting as it.
func (c *cli) api(ctx context.Context) (*client.Client, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	p, err := c.provider()
	if err != nil {
		return nil, err
	}
	user, err := p.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return client.New(c.v.GetString(config.KeyAPIURL), user), nil
}

// report prints informational notices and turns error notices into command
// failures.
func report(cmd *cobra.Command, n session.Notice) error {
	if n.Failed() {
		return errors.New(n.Message)
	}
	if n.Message != "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), n.Message)
	}
	return nil
}

func (c *cli) identityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "identity", Short: "Show or reset the anonymous gardener id"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the gardener id, creating it on first use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := c.provider()
				if err != nil {
					return err
				}
				id, err := p.UserID(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget the gardener id; data stored under it becomes unreachable",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := c.provider()
				if err != nil {
					return err
				}
				if err := p.Clear(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "identity cleared")
				return nil
			},
		},
	)
	return cmd
}
