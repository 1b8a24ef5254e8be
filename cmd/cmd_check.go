package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
	"cosmterm/pkg/rpc"

	"github.com/spf13/cobra"
)

const (
	flagJSON    = "json"
	flagDryRun  = "dry-run"
	flagRestore = "restore"
)

// CheckCmd returns the command that tests the configuration.
func CheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test configuration and exit",
		Long: `Test the configuration file.

Every RPC URL of every chain is queried for its status. The reported network
must agree across URLs and with the configured chain_id. Chains without a
chain_id get the observed one written back to the config unless --dry-run is
given.

With --restore the newest timestamped backup replaces the config file and no
checks run.`,
		RunE: runCheckCmd,
	}
	cmd.Flags().Bool(flagJSON, false, "Output test results as JSON")
	cmd.Flags().Bool(flagDryRun, false, "Perform a trial run with no changes made")
	cmd.Flags().Bool(flagRestore, false, "Restore the most recent config backup and exit")
	return cmd
}

type checkOptions struct {
	JSON   bool
	DryRun bool
}

func runCheckCmd(cmd *cobra.Command, _ []string) error {
	flagPath, _ := cmd.Flags().GetString(flagConfig)
	path, err := config.GetConfigPath(flagPath)
	if err != nil {
		return fmt.Errorf("failed to determine config path: %w", err)
	}
	if restore, _ := cmd.Flags().GetBool(flagRestore); restore {
		if err := config.RestoreLastBackup(path); err != nil {
			return fmt.Errorf("failed to restore %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from its latest backup.\n", path)
		return nil
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	var opts checkOptions
	opts.JSON, _ = cmd.Flags().GetBool(flagJSON)
	opts.DryRun, _ = cmd.Flags().GetBool(flagDryRun)

	out := cmd.OutOrStdout()
	report := runCheck(cmd.Context(), cfg, path, opts, out)
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	if !report.ValidStructure {
		return fmt.Errorf("invalid configuration")
	}
	return nil
}

// runCheck validates cfg, probes every RPC URL and, unless opts.DryRun, saves
// observed chain ids for chains that had none. Progress is written to out
// when opts.JSON is false.
func runCheck(ctx context.Context, cfg *config.Config, path string, opts checkOptions, out io.Writer) models.TestReport {
	printf := func(format string, args ...interface{}) {
		if !opts.JSON {
			fmt.Fprintf(out, format, args...)
		}
	}

	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         opts.DryRun,
	}
	printf("Testing configuration at: %s\n", path)

	if len(cfg.Chains) == 0 {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, "No chains found in configuration.")
		printf("No chains found in configuration.\n")
		return report
	}

	for i, chain := range cfg.Chains {
		if strings.TrimSpace(chain.Name) == "" {
			report.StructureErrors = append(report.StructureErrors, fmt.Sprintf("Chain at index %d has no name.", i))
		}
		if len(chain.RPCURLs) == 0 {
			report.StructureErrors = append(report.StructureErrors, fmt.Sprintf("Chain '%s' has no RPC URLs.", chain.Name))
		}
		if len(chain.LCDURLs) == 0 {
			report.StructureErrors = append(report.StructureErrors, fmt.Sprintf("Chain '%s' has no LCD URLs.", chain.Name))
		}
	}
	if len(report.StructureErrors) == 0 {
		if err := cfg.Validate(); err != nil {
			report.StructureErrors = append(report.StructureErrors, err.Error())
		}
	}
	if len(report.StructureErrors) > 0 {
		report.ValidStructure = false
		for _, msg := range report.StructureErrors {
			printf("Error: %s\n", msg)
		}
		return report
	}

	report.ChainCount = len(cfg.Chains)
	report.ContactCount = len(cfg.Contacts)
	printf("Found %d chains and %d contacts.\n", report.ChainCount, report.ContactCount)

	configUpdated := false
	for i := range cfg.Chains {
		chain := &cfg.Chains[i]
		res := checkChain(ctx, chain, printf)
		if res.ChainIDUpdated {
			configUpdated = true
			if opts.DryRun {
				printf("  Would set chain_id to %s (DRY RUN)\n", chain.ChainID)
			} else {
				printf("  Set chain_id to %s\n", chain.ChainID)
			}
		}
		if res.Inconsistent {
			report.InconsistentChains = append(report.InconsistentChains, chain.Name)
		}
		report.Chains = append(report.Chains, res)
	}

	if len(report.InconsistentChains) > 0 {
		printf("\nWARNING: Inconsistent RPCs detected!\n")
		printf("The following chains have RPCs reporting conflicting chain IDs:\n")
		for _, name := range report.InconsistentChains {
			printf(" - %s\n", name)
		}
	}

	if configUpdated {
		report.ConfigUpdated = true
		printf("\nUpdating configuration with fetched chain IDs...\n")
		if opts.DryRun {
			printf("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(cfg, path); err != nil {
			report.SaveError = err.Error()
			printf("Failed to save config: %v\n", err)
		} else {
			printf("Configuration saved successfully.\n")
		}
	}
	return report
}

// checkChain probes each RPC URL of chain. An empty chain.ChainID is filled
// from the first URL that answers.
func checkChain(ctx context.Context, chain *config.ChainConfig, printf func(string, ...interface{})) models.ChainResult {
	res := models.ChainResult{
		Name:          chain.Name,
		ConfigChainID: chain.ChainID,
	}
	printf("Testing Chain: %s\n", chain.Name)

	for _, u := range chain.RPCURLs {
		r := models.RPCResult{URL: u}
		printf("  RPC: %s ... ", u)

		probe := config.ChainConfig{Name: chain.Name, RPCURLs: []string{u}}
		st, _, err := rpc.FetchStatus(ctx, probe)
		if err != nil {
			r.Status = "error"
			r.Error = err.Error()
			printf("Failed: %v\n", err)
			res.RPCs = append(res.RPCs, r)
			continue
		}

		r.Status = "ok"
		r.ChainID = st.ChainID
		r.Height = st.LatestHeight
		printf("OK (chain %s, height %d)", st.ChainID, st.LatestHeight)

		switch {
		case res.ObservedChainID == "":
			res.ObservedChainID = st.ChainID
		case res.ObservedChainID != st.ChainID:
			printf(" - WARNING: chain ID mismatch with previous RPC (%s)", res.ObservedChainID)
			res.Inconsistent = true
		}

		switch {
		case chain.ChainID == "":
			chain.ChainID = st.ChainID
			res.ChainIDUpdated = true
			printf(" - UPDATED")
		case chain.ChainID != st.ChainID:
			r.Error = fmt.Sprintf("Mismatch! Expected %s", chain.ChainID)
			printf(" - MISMATCH! Expected %s", chain.ChainID)
		default:
			printf(" - Verified")
		}
		printf("\n")
		res.RPCs = append(res.RPCs, r)
	}
	return res
}
