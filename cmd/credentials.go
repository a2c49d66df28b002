/* cmd/credentials.go */

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sharesync/sharesync/pkg/cli"
	"github.com/sharesync/sharesync/pkg/credstore"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Store VPN and share credentials in the OS keyring",
}

var credentialsVPNCmd = &cobra.Command{
	Use:   "vpn",
	Short: "Store VPN credentials",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		creds, err := promptCredentials("VPN")
		if err != nil {
			return err
		}
		if err := credstore.NewKeyring("").SaveVPN(creds); err != nil {
			return cerr.Wrap(err, "saving VPN credentials")
		}
		fmt.Println("VPN credentials stored")
		return nil
	}),
}

var credentialsShareCmd = &cobra.Command{
	Use:   "share",
	Short: "Store network share credentials",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		creds, err := promptCredentials("share")
		if err != nil {
			return err
		}
		if err := credstore.NewKeyring("").SaveShare(creds); err != nil {
			return cerr.Wrap(err, "saving share credentials")
		}
		fmt.Println("share credentials stored")
		return nil
	}),
}

// promptCredentials reads a username and a hidden password from the
// terminal. An empty password is allowed for interactive-auth setups.
func promptCredentials(what string) (credstore.Credentials, error) {
	fmt.Printf("%s username: ", what)
	reader := bufio.NewReader(os.Stdin)
	username, err := reader.ReadString('\n')
	if err != nil {
		return credstore.Credentials{}, cerr.Wrap(err, "reading username")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return credstore.Credentials{}, cerr.New("username cannot be empty")
	}

	fmt.Printf("%s password (empty to skip): ", what)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return credstore.Credentials{}, cerr.Wrap(err, "reading password")
	}

	return credstore.Credentials{Username: username, Password: string(password)}, nil
}

func init() {
	credentialsCmd.AddCommand(credentialsVPNCmd, credentialsShareCmd)
}
