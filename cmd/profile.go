/* cmd/profile.go */

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/sharesync/sharesync/pkg/cli"
	"github.com/sharesync/sharesync/pkg/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage sync profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		profiles, err := eng.store.List()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("no profiles stored; create one with 'sharesync profile import'")
			return nil
		}
		for _, p := range profiles {
			marker := " "
			if p.Name == eng.cfg.DefaultProfile {
				marker = "*"
			}
			fmt.Printf("%s %-20s %d specs  %s\n", marker, p.Name, len(p.Specs), p.Description)
		}
		return nil
	}),
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		prof, err := eng.store.Get(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(prof, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}),
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a profile from a JSON file",
	Long: `Reads a profile definition from a JSON file, validates it and stores it
under its name, replacing any existing profile with that name.`,
	Args: cobra.ExactArgs(1),
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return cerr.Wrap(err, "reading profile file")
		}
		var prof profile.Profile
		if err := json.Unmarshal(data, &prof); err != nil {
			return cerr.Wrapf(err, "parsing %s", args[0])
		}
		if err := eng.store.Put(prof); err != nil {
			return err
		}
		fmt.Printf("profile %q stored\n", prof.Name)
		return nil
	}),
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(rc.Log)
		if err != nil {
			return err
		}
		if err := eng.store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("profile %q deleted\n", args[0])
		return nil
	}),
}

func init() {
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileImportCmd, profileDeleteCmd)
}
