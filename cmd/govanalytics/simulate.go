package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"time"

	"govanalytics/config"
	"govanalytics/model"
	"govanalytics/simulate"
)

// runSimulate implements the `simulate <profile> [--holders N] [--seed S]`
// subcommand (spec.md §4.3, §6): generates a synthetic holder/governance/
// delegation set directly, bypassing the fetch coordinator since this
// command IS the simulator, and tags the result ProvenanceSimulated.
func runSimulate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath  string
		protocol string
		holders  int
		seed     int64
	)
	fs.StringVar(&cfgPath, "config", "", "path to YAML configuration")
	fs.StringVar(&protocol, "protocol", "simulated", "synthetic protocol id to stamp on the output")
	fs.IntVar(&holders, "holders", 0, "holder count override (0 keeps the configured default)")
	fs.Int64Var(&seed, "seed", 0, "seed override (0 keeps the configured default)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: simulate requires exactly one <profile> argument")
		return exitValidation
	}
	profile := simulate.Profile(fs.Arg(0))
	switch profile {
	case simulate.ProfilePowerLaw, simulate.ProfileProtocolDominated, simulate.ProfileCommunity:
	default:
		fmt.Fprintf(stderr, "Error: unknown profile %q\n", profile)
		return exitValidation
	}

	if err := ctx.Err(); err != nil {
		return exitCancelled
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	simCfg := cfg.Simulator
	if holders > 0 {
		simCfg.HolderCount = holders
	}
	if seed != 0 {
		simCfg.Seed = seed
	}

	supply, ok := new(big.Int).SetString(simCfg.Supply, 10)
	if !ok {
		fmt.Fprintf(stderr, "Error: invalid simulator supply %q\n", simCfg.Supply)
		return exitValidation
	}

	reference := time.Now().UTC()
	syntheticHolders, err := simulate.Holders(profile, simCfg.HolderCount, supply, simCfg.Alpha, simCfg.DominantShare, simCfg.Seed)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	for i := range syntheticHolders {
		syntheticHolders[i].Rank = i + 1
	}

	rates := simulate.ChoiceRates{For: simCfg.ForRate, Against: simCfg.AgainstRate, Abstain: simCfg.AbstainRate}
	proposals, votes, err := simulate.Governance(protocol, syntheticHolders, reference, simCfg.MeanProposals, rates, simCfg.Seed+1)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	delegations, err := simulate.Delegations(syntheticHolders, reference, simCfg.Seed+2)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}

	snap := model.Snapshot{
		Protocol:    model.Protocol{ID: protocol, ContractID: protocol, Decimals: 18},
		Timestamp:   reference,
		Holders:     syntheticHolders,
		Proposals:   proposals,
		Votes:       votes,
		Delegations: delegations,
		Metrics:     computeMetrics(syntheticHolders, proposals, votes, delegations),
		Provenance:  model.ProvenanceSimulated,
		Degraded:    false,
	}

	if err := json.NewEncoder(stdout).Encode(snap); err != nil {
		fmt.Fprintf(stderr, "Error: encode output: %v\n", err)
		return exitInternal
	}
	return exitOK
}
