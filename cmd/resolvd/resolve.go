package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/resolvd/pkg/config"
	"github.com/cuemby/resolvd/pkg/resolver"
	"github.com/cuemby/resolvd/pkg/types"
)

var (
	showStats bool
	servers   []string
)

// buildResolver constructs a resolver from the configured snapshot, or
// from --server flags when no config file was given.
func buildResolver() (*resolver.Resolver, error) {
	var cfg *types.Config
	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		if len(servers) == 0 {
			servers = []string{"8.8.8.8", "1.1.1.1"}
		}
		for _, addr := range servers {
			cfg.Servers = append(cfg.Servers, types.ServerConfig{
				Address: addr,
				Port:    53,
				Weight:  10,
				Timeout: 2000,
				Enabled: true,
			})
		}
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	r := resolver.New()
	if err := r.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

func printOutcome(outcome types.Outcome) {
	if outcome.Status == types.StatusSuccess {
		fmt.Printf("%s (%dms)\n", outcome.Hostname, outcome.Elapsed.Milliseconds())
		for _, addr := range outcome.Addresses {
			fmt.Printf("  %s\n", addr)
		}
		return
	}
	fmt.Printf("%s: %s (%dms)\n", outcome.Hostname, outcome.Status, outcome.Elapsed.Milliseconds())
}

func printStats(r *resolver.Resolver) {
	data, err := json.MarshalIndent(r.GetStats(), "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(data))
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <hostname> [hostname...]",
	Short: "Resolve one or more hostnames",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildResolver()
		if err != nil {
			return err
		}
		defer r.Close()

		for _, hostname := range args {
			printOutcome(r.Resolve(hostname).Wait())
		}
		if showStats {
			printStats(r)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Resolve hostnames listed one per line in a file ('-' for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			input = f
		}

		var hostnames []string
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				hostnames = append(hostnames, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		r, err := buildResolver()
		if err != nil {
			return err
		}
		defer r.Close()

		for _, future := range r.ResolveBatch(hostnames) {
			printOutcome(future.Wait())
		}
		if showStats {
			printStats(r)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return fmt.Errorf("--config is required")
		}
		if _, err := config.LoadFile(configFile); err != nil {
			return err
		}
		fmt.Printf("%s: configuration valid\n", configFile)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&showStats, "stats", false, "print resolver stats after resolving")
	resolveCmd.Flags().StringSliceVarP(&servers, "server", "s", nil, "DNS server address (repeatable)")
	batchCmd.Flags().BoolVar(&showStats, "stats", false, "print resolver stats after resolving")
	batchCmd.Flags().StringSliceVarP(&servers, "server", "s", nil, "DNS server address (repeatable)")
}
