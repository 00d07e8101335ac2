package cli

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/config"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// ConfigOpener opens the configuration file without wiring any service.
type ConfigOpener func() (driven.ConfigStore, error)

var (
	configMu     sync.Mutex
	configOpener ConfigOpener
)

var (
	configListAll bool
	configForce   bool
)

// SetConfigOpener sets how the config commands reach the configuration file.
func SetConfigOpener(o ConfigOpener) {
	configMu.Lock()
	defer configMu.Unlock()
	configOpener = o
}

func openConfig() (driven.ConfigStore, error) {
	configMu.Lock()
	defer configMu.Unlock()
	if configOpener == nil {
		return nil, errors.New("config store not configured")
	}
	return configOpener()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and edit the configuration file",
	Long: `Read and edit config.toml. Environment variables named
SMARTMARKET_<KEY> (dots become underscores) take precedence over the file.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openConfig()
		if err != nil {
			return err
		}
		cmd.Println(store.Path())
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key and save the file",
	Long: `Set a key and save the file. Values that parse as booleans or numbers
are stored typed, anything else as a string (durations such as "30m" included).`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a key so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

func init() {
	configListCmd.Flags().BoolVarP(&configListAll, "all", "a", false, "include keys left at their default")
	configSetCmd.Flags().BoolVar(&configForce, "force", false, "accept keys smartmarket does not read")

	configCmd.AddCommand(configPathCmd, configListCmd, configGetCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}

	keys := store.Keys()
	if configListAll {
		for _, k := range config.KnownKeys() {
			if _, ok := store.Get(k); !ok {
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		cmd.Printf("No keys set in %s\n", store.Path())
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for _, k := range keys {
		line := k + " = " + displayValue(store, k)
		if env := config.EnvName(k); os.Getenv(env) != "" {
			line += st.warning.Render(fmt.Sprintf("  (overridden by %s)", env))
		}
		if !config.IsKnownKey(k) {
			line += st.muted.Render("  (unused)")
		}
		cmd.Println(line)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	if _, ok := store.Get(args[0]); !ok {
		return fmt.Errorf("%s is not set in %s", args[0], store.Path())
	}
	cmd.Println(displayValue(store, args[0]))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !config.IsKnownKey(key) && !configForce {
		return fmt.Errorf("unknown key %q (use --force to set it anyway)", key)
	}
	store, err := openConfig()
	if err != nil {
		return err
	}

	if err := store.Set(key, config.ParseValue(args[1])); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", store.Path(), err)
	}
	cmd.Printf("%s = %s\n", key, displayValue(store, key))
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	if !store.Delete(args[0]) {
		return fmt.Errorf("%s is not set in %s", args[0], store.Path())
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", store.Path(), err)
	}
	cmd.Printf("Removed %s.\n", args[0])
	return nil
}

// displayValue formats a stored value, masking secrets.
func displayValue(store driven.ConfigStore, key string) string {
	v, ok := store.Get(key)
	switch {
	case !ok:
		return "(default)"
	case config.IsSecretKey(key):
		return "********"
	}
	if s, isString := v.(string); isString {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}
