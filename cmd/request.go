package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hirely/hirely-cli/internal/apiclient"
	"github.com/hirely/hirely-cli/internal/apierr"
)

var (
	requestData    string
	requestHeaders []string
	requestTimeout time.Duration
	requestRetries int
	requestNoRetry bool
)

var requestCmd = &cobra.Command{
	Use:   "request [METHOD] URL",
	Short: "Send an API request with retries, queueing writes while offline",
	Long: "Sends one request through the resilient API client. URL may be relative to api.base_url. " +
		"Mutating requests made while offline are stored and replayed on reconnect.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, target := http.MethodGet, args[0]
		if len(args) == 2 {
			method, target = strings.ToUpper(args[0]), args[1]
		}

		opts, err := requestOptions(method)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refreshConnectivity(ctx, env.Monitor)

		res := env.API.Request(ctx, target, opts)
		return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	},
}

// requestOptions builds client options from the command flags.
func requestOptions(method string) (apiclient.Options, error) {
	opts := apiclient.Options{
		Method:  method,
		Timeout: requestTimeout,
		Retries: requestRetries,
	}
	if requestNoRetry {
		opts.Retries = apiclient.NoRetry
	}

	if requestData != "" {
		if !json.Valid([]byte(requestData)) {
			return opts, eris.New("--data must be valid JSON")
		}
		opts.Body = json.RawMessage(requestData)
	}

	if len(requestHeaders) > 0 {
		opts.Headers = make(map[string]string, len(requestHeaders))
		for _, h := range requestHeaders {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return opts, eris.Errorf("invalid header %q, want \"Name: value\"", h)
			}
			opts.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return opts, nil
}

// printResult writes the result envelope to out and a notice to errOut on
// failure. A request deferred to the offline queue is not an error.
func printResult(out, errOut io.Writer, res apiclient.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return eris.Wrap(err, "encode result")
	}
	if res.OK() {
		return nil
	}

	notice := apierr.NoticeFor(res.Error)
	_, _ = fmt.Fprintf(errOut, "%s: %s\n", notice.Title, notice.Body)
	if notice.Queued {
		return nil
	}
	return res.Error
}

func init() {
	requestCmd.Flags().StringVarP(&requestData, "data", "d", "", "JSON request body")
	requestCmd.Flags().StringArrayVarP(&requestHeaders, "header", "H", nil, "extra header (\"Name: value\"), repeatable")
	requestCmd.Flags().DurationVar(&requestTimeout, "timeout", 0, "per-attempt timeout (default from config)")
	requestCmd.Flags().IntVar(&requestRetries, "retries", 0, "retries after the first attempt (default from config)")
	requestCmd.Flags().BoolVar(&requestNoRetry, "no-retry", false, "make a single attempt")
	rootCmd.AddCommand(requestCmd)
}
