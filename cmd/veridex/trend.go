package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var trendLimit int

var trendCmd = &cobra.Command{
	Use:   "trend <name>",
	Short: "List analyses for a trend",
	Long: `List cached analyses tagged with a trend, newest first.

Examples:
  # Show the latest analyses for a trend
  veridex trend elections

  # Limit the listing
  veridex trend elections --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runTrend,
}

func init() {
	trendCmd.Flags().IntVar(&trendLimit, "limit", 20, "maximum number of analyses to list")
}

// TrendResponse matches internal/httpapi TrendResponse.
type TrendResponse struct {
	Trend    string            `json:"trend"`
	Count    int               `json:"count"`
	Analyses []AnalyzeResponse `json:"analyses"`
}

func runTrend(cmd *cobra.Command, args []string) error {
	reqURL := fmt.Sprintf("%s/api/v1/posts/trend/%s?limit=%d",
		serverURL, url.PathEscape(args[0]), trendLimit)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(reqURL)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var trendResp TrendResponse
	if err := json.NewDecoder(resp.Body).Decode(&trendResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Trend: %s (%d analyses)\n", trendResp.Trend, trendResp.Count)
	for _, a := range trendResp.Analyses {
		fmt.Printf("  %-8s %.3f  %s\n", a.RiskLevel, a.RiskScore, a.ContentKey)
	}
	return nil
}
