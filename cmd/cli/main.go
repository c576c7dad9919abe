package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "ytgrab",
		Short: "ytgrab CLI - video download orchestration client",
		Long:  `A command-line interface for the ytgrab download engine.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
}

var formatsCmd = &cobra.Command{
	Use:   "formats [url]",
	Short: "List available formats for a video URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload := map[string]string{"url": args[0]}
		data, _ := json.Marshal(payload)

		resp, err := http.Post(serverURL+"/api/v1/formats", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var result struct {
			VideoID string `json:"video_id"`
			Title   string `json:"title"`
			Options []struct {
				Quality string `json:"quality"`
				Source  string `json:"source"`
				Size    int64  `json:"size"`
				Ext     string `json:"ext"`
			} `json:"options"`
		}
		json.Unmarshal(body, &result)

		fmt.Printf("Video: %s (%s)\n\n", result.Title, result.VideoID)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "QUALITY\tSOURCE\tEXT\tSIZE")
		for _, o := range result.Options {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Quality, o.Source, o.Ext, formatSize(o.Size))
		}
		w.Flush()
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Submit a download job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		quality, _ := cmd.Flags().GetString("quality")
		kind, _ := cmd.Flags().GetString("kind")

		payload := map[string]string{"url": args[0]}
		if quality != "" {
			payload["quality"] = quality
		}
		if kind != "" {
			payload["kind"] = kind
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/jobs", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Job submitted!\n")
		fmt.Printf("ID: %s\n", result["id"])
		fmt.Printf("State: %s\n", result["state"])
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show the status of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/jobs/" + args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var job map[string]interface{}
		json.Unmarshal(body, &job)

		fmt.Printf("ID:       %v\n", job["id"])
		fmt.Printf("Kind:     %v\n", job["kind"])
		fmt.Printf("URL:      %v\n", job["url"])
		fmt.Printf("Quality:  %v\n", job["quality"])
		fmt.Printf("State:    %v\n", job["state"])
		fmt.Printf("Progress: %v%%\n", job["progress"])
		if total, ok := job["total_items"]; ok {
			fmt.Printf("Items:    %v/%v (failed: %v)\n", job["current_item"], total, job["failed_items"])
		}
		if detail, ok := job["error_detail"]; ok {
			fmt.Printf("Error:    %v\n", detail)
		}
		if path, ok := job["result_path"]; ok {
			fmt.Printf("Result:   %v\n", path)
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Post(serverURL+"/api/v1/jobs/"+args[0]+"/cancel", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		fmt.Println("Cancellation requested")
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived jobs",
	Run: func(cmd *cobra.Command, args []string) {
		state, _ := cmd.Flags().GetString("state")

		reqURL := serverURL + "/api/v1/jobs"
		if state != "" {
			reqURL += "?state=" + url.QueryEscape(state)
		}

		resp, err := http.Get(reqURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var jobs []map[string]interface{}
		json.Unmarshal(body, &jobs)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tQUALITY\tSTATE\tURL")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%s\n",
				truncate(stringField(j, "ID"), 8),
				j["Kind"],
				j["Quality"],
				j["State"],
				truncate(stringField(j, "URL"), 40))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/jobs/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		fmt.Println("Job Statistics:")
		fmt.Printf("  Total:     %v\n", stats["total"])
		fmt.Printf("  Completed: %v\n", stats["completed"])
		fmt.Printf("  Failed:    %v\n", stats["failed"])
		fmt.Printf("  Cancelled: %v\n", stats["cancelled"])
	},
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMG"[exp])
}

func main() {
	submitCmd.Flags().String("quality", "", "Quality to download (best, worst, or a label like 1080p)")
	submitCmd.Flags().String("kind", "", "Job kind (video, audio, playlist)")
	listCmd.Flags().String("state", "", "Filter by terminal state")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
