// cmd/hopfield/remote.go
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/lumix-ai/hopfield/internal/patterns"
	"github.com/lumix-ai/hopfield/pkg/api"
)

// cmdRemote drives a running server through the API client.
func cmdRemote(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: remote needs a subcommand", errUsage)
	}
	client := api.NewClient(a.config.API.Remote)
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		if err := argCount(args, 0, 0); err != nil {
			return err
		}
		list, err := client.ListPatterns(ctx)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(a.out)
		table.SetHeader([]string{"ID", "Name", "Active", "Bits"})
		table.SetAutoWrapText(false)
		for _, p := range list {
			table.Append([]string{
				strconv.FormatInt(p.ID, 10), p.Name, strconv.Itoa(p.Pattern.Sum()), patterns.Format(p.Pattern),
			})
		}
		table.Render()

	case "add":
		if err := argCount(args, 2, 2); err != nil {
			return err
		}
		p, err := patterns.Parse(args[1])
		if err != nil {
			return err
		}
		info, err := client.AddPattern(ctx, args[0], p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Stored %q (#%d)\n", info.Name, info.ID)

	case "train":
		if err := argCount(args, 0, 0); err != nil {
			return err
		}
		gen, err := client.Train(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Retrained, generation %d\n", gen)

	case "recall":
		if err := argCount(args, 1, 1); err != nil {
			return err
		}
		p, err := patterns.Parse(args[0])
		if err != nil {
			return err
		}
		res, err := client.Recall(ctx, p, a.config.Network.MaxIterations)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, patterns.Grid(res.Pattern, a.config.Network.GridWidth))
		fmt.Fprintln(a.out, patterns.Format(res.Pattern))
		if res.Converged {
			fmt.Fprintf(a.out, "Converged in %d iterations.\n", res.Sweeps)
		} else {
			fmt.Fprintf(a.out, "Stopped after %d iterations without converging.\n", res.Sweeps)
		}
		fmt.Fprintf(a.out, "Energy: %.3f\n", res.Energy)

	case "energy":
		if err := argCount(args, 1, 1); err != nil {
			return err
		}
		p, err := patterns.Parse(args[0])
		if err != nil {
			return err
		}
		e, err := client.Energy(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Energy: %.3f\n", e)

	default:
		return fmt.Errorf("%w: unknown remote command %q", errUsage, sub)
	}
	return nil
}
