package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	analyzeText    string
	analyzeNetwork string
	analyzeTrend   string
	analyzeImage   string
	analyzeForce   bool
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a post for fake-news risk",
	Long: `Analyze a post for fake-news risk using the veridexd server.

The post text is taken from --text, a file argument, or stdin.

Examples:
  # Analyze inline text
  veridex analyze --text "BREAKING: miracle cure doctors hate"

  # Analyze a file, tagged with a trend
  veridex analyze --trend elections post.txt

  # Analyze from stdin and bypass the cache
  cat post.txt | veridex analyze --force -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "post text (overrides file argument)")
	analyzeCmd.Flags().StringVar(&analyzeNetwork, "network", "", "social network the post came from")
	analyzeCmd.Flags().StringVar(&analyzeTrend, "trend", "", "trend or topic to tag the analysis with")
	analyzeCmd.Flags().StringVar(&analyzeImage, "image-description", "", "description of an attached image")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "recompute even if a cached analysis exists")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the raw JSON response")
}

// AnalyzeRequest matches internal/httpapi AnalyzeRequest.
type AnalyzeRequest struct {
	Text             string `json:"text"`
	ImageDescription string `json:"image_description,omitempty"`
	SocialNetwork    string `json:"social_network,omitempty"`
	Trend            string `json:"trend,omitempty"`
}

// AnalyzeResponse matches internal/analysis Result.
type AnalyzeResponse struct {
	ContentKey string   `json:"content_key"`
	RiskLevel  string   `json:"risk_level"`
	RiskScore  float64  `json:"risk_score"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Factors    []string `json:"factors,omitempty"`
	Sources    []struct {
		Title string `json:"title"`
		URL   string `json:"url,omitempty"`
	} `json:"sources,omitempty"`
	Degraded  bool `json:"degraded"`
	Persisted bool `json:"persisted"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := analyzeText
	if text == "" {
		var content []byte
		var err error
		if len(args) == 0 || args[0] == "-" {
			content, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read from stdin: %w", err)
			}
		} else {
			content, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", args[0], err)
			}
		}
		text = string(content)
	}

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no post text to analyze")
	}

	reqBody := AnalyzeRequest{
		Text:             text,
		ImageDescription: analyzeImage,
		SocialNetwork:    analyzeNetwork,
		Trend:            analyzeTrend,
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	path := "/api/v1/analyze"
	if analyzeForce {
		path = "/api/v1/analyze/force"
	}
	url := serverURL + path

	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if analyzeJSON {
		fmt.Println(string(body))
		return nil
	}

	var result AnalyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Risk Level: %s\n", result.RiskLevel)
	fmt.Printf("Risk Score: %.3f\n", result.RiskScore)
	fmt.Printf("Confidence: %.3f\n", result.Confidence)
	fmt.Printf("Content Key: %s\n", result.ContentKey)
	if result.Degraded {
		fmt.Println("Degraded: yes (one or more pipeline stages failed)")
	}
	if result.Reasoning != "" {
		fmt.Printf("\nReasoning:\n  %s\n", result.Reasoning)
	}
	if len(result.Factors) > 0 {
		fmt.Println("\nFactors:")
		for _, f := range result.Factors {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(result.Sources) > 0 {
		fmt.Println("\nTrusted Sources:")
		for _, s := range result.Sources {
			if s.URL != "" {
				fmt.Printf("  - %s (%s)\n", s.Title, s.URL)
			} else {
				fmt.Printf("  - %s\n", s.Title)
			}
		}
	}
	return nil
}
