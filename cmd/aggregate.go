package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hirely/hirely-cli/internal/apiclient"
	"github.com/hirely/hirely-cli/internal/jobs"
	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/internal/resilience"
)

var (
	aggSearch       string
	aggLocation     string
	aggRemote       string
	aggJobType      string
	aggPostedWithin int
	aggPage         int
	aggSources      []string
	aggEndpoint     string
	aggJSON         bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Search jobs across providers",
	Long: "Runs the job aggregation locally, or against a deployed aggregation function " +
		"when --endpoint is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := aggregateRequest()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var resp jobs.Response
		if aggEndpoint != "" {
			resp, err = aggregateRemote(ctx, aggEndpoint, req)
			if err != nil {
				return err
			}
		} else {
			breakers := resilience.NewServiceBreakers(
				resilience.FromCircuitConfig(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeoutSecs),
			)
			resp = buildAggregator(breakers).Aggregate(ctx, req)
		}

		if aggJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printJobs(cmd.OutOrStdout(), resp)
		return nil
	},
}

// aggregateRequest builds the request body from the command flags.
func aggregateRequest() (jobs.Request, error) {
	req := jobs.Request{
		Page:    aggPage,
		Sources: aggSources,
		Filters: model.JobFilters{
			Search:           aggSearch,
			Location:         aggLocation,
			JobType:          aggJobType,
			PostedWithinDays: aggPostedWithin,
		},
	}
	if aggRemote != "" {
		remote, err := strconv.ParseBool(aggRemote)
		if err != nil {
			return req, eris.Errorf("--remote must be true or false, got %q", aggRemote)
		}
		req.Filters.Remote = &remote
	}
	return req, nil
}

// aggregateRemote calls a deployed aggregation function through the API client.
func aggregateRemote(ctx context.Context, endpoint string, req jobs.Request) (jobs.Response, error) {
	env, err := initClient(ctx)
	if err != nil {
		return jobs.Response{}, err
	}
	defer env.Close()

	refreshConnectivity(ctx, env.Monitor)
	return fetchAggregate(ctx, env.API, endpoint, req)
}

// fetchAggregate posts req to the aggregation function. A search is never
// deferred to the offline queue; offline it fails like any connection error.
func fetchAggregate(ctx context.Context, api *apiclient.Client, endpoint string, req jobs.Request) (jobs.Response, error) {
	url := strings.TrimRight(endpoint, "/") + jobs.AggregatePath
	resp, apiErr := apiclient.Call(ctx, api, func(ctx context.Context) (jobs.Response, error) {
		var out jobs.Response
		res := api.Request(ctx, url, apiclient.Options{
			Method:  http.MethodPost,
			Body:    req,
			Retries: apiclient.NoRetry,
		})
		return out, res.Decode(&out)
	})
	if apiErr != nil {
		return resp, apiErr
	}
	return resp, nil
}

func printJobs(out io.Writer, resp jobs.Response) {
	for _, j := range resp.Jobs {
		where := j.Location
		if j.Remote {
			where = strings.TrimSpace(where + " (remote)")
		}
		_, _ = fmt.Fprintf(out, "%-40s %-24s %s\n", j.Title, j.Company, where)
	}
	_, _ = fmt.Fprintf(out, "\n%s\n", resp)
	for _, e := range resp.Errors {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", e.Source, e.Error)
	}
	if resp.Error != "" {
		_, _ = fmt.Fprintf(out, "  error: %s\n", resp.Error)
	}
}

func init() {
	f := aggregateCmd.Flags()
	f.StringVar(&aggSearch, "search", "", "title keywords")
	f.StringVar(&aggLocation, "location", "", "location filter")
	f.StringVar(&aggRemote, "remote", "", "only remote (true) or on-site (false) jobs")
	f.StringVar(&aggJobType, "job-type", "", "employment type, e.g. full-time")
	f.IntVar(&aggPostedWithin, "posted-within", 0, "max posting age in days")
	f.IntVar(&aggPage, "page", 1, "page number")
	f.StringSliceVar(&aggSources, "sources", nil, "providers to query (default from config)")
	f.StringVar(&aggEndpoint, "endpoint", "", "base URL of a deployed aggregation function")
	f.BoolVar(&aggJSON, "json", false, "print the raw response")
	rootCmd.AddCommand(aggregateCmd)
}
