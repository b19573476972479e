// Package main implements the pagequery CLI for manual operations
// against the pagequeryd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the pagequeryd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pagequery",
	Short: "CLI for pagequeryd HTTP server operations",
	Long: `pagequery is a command-line interface for the pagequeryd HTTP server.
It runs semantic searches against a web page's content and checks server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "pagequeryd server URL")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(healthCmd)
}

// searchCmd runs a semantic search over one page
var searchCmd = &cobra.Command{
	Use:   "search <url> <query>",
	Short: "Search a web page's content semantically",
	Long: `Fetch a page, index its content, and return the chunks most
relevant to the query.

Examples:
  # Search a documentation page
  pagequery search https://example.com/docs "how do I install"

  # Use a different server
  pagequery search --server http://localhost:9090 https://example.com "pricing"

  # Emit raw JSON
  pagequery search --json https://example.com/docs "configuration"`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check pagequeryd server health",
	Long: `Check the health status of the pagequeryd HTTP server.

Examples:
  # Check health
  pagequery health

  # Check health on a different server
  pagequery health --server http://localhost:9090`,
	RunE: runHealth,
}

var jsonOutput bool

func init() {
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw JSON response")
}

// SearchRequest matches internal/httpapi request binding
type SearchRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

// SearchResult matches internal/search Result
type SearchResult struct {
	Score      float64 `json:"score"`
	Percentage int     `json:"percentage"`
	DOMPath    string  `json:"dom_path"`
	ChunkText  string  `json:"chunk_text"`
	ChunkHTML  string  `json:"chunk_html"`
}

// SearchResponse matches internal/search Response
type SearchResponse struct {
	Results     []SearchResult `json:"results"`
	TotalChunks int            `json:"total_chunks"`
	Query       string         `json:"query"`
}

// HealthResponse matches internal/httpapi HealthResponse
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// runSearch handles the search command
func runSearch(cmd *cobra.Command, args []string) error {
	reqJSON, err := json.Marshal(SearchRequest{URL: args[0], Query: args[1]})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/search", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 2 * time.Minute,
	}

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
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			return fmt.Errorf("server returned status %d (retry after %ss): %s", resp.StatusCode, retryAfter, string(body))
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if jsonOutput {
		fmt.Println(string(body))
		return nil
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(searchResp.Results) == 0 {
		fmt.Printf("No matches (%d chunks indexed)\n", searchResp.TotalChunks)
		return nil
	}

	fmt.Printf("Query: %s (%d chunks indexed)\n\n", searchResp.Query, searchResp.TotalChunks)
	for i, result := range searchResp.Results {
		fmt.Printf("%2d. [%3d%%] %s\n", i+1, result.Percentage, result.DOMPath)
		fmt.Printf("    %s\n\n", result.ChunkText)
	}

	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var healthResp HealthResponse
	if err := json.Unmarshal(body, &healthResp); err != nil {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	for name, state := range healthResp.Checks {
		fmt.Printf("  %-10s %s\n", name, state)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server degraded (status %d)", resp.StatusCode)
	}
	return nil
}
