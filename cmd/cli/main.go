package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "mediagrab",
		Short: "mediagrab CLI - analyze and download media from hosting sites",
		Long:  `A command-line interface for the mediagrab extraction and download service.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statsCmd)

	addCmd.Flags().String("format", "", "Format id from analyze output")
	addCmd.Flags().Bool("audio", false, "Audio only")
	listCmd.Flags().String("status", "", "Filter by status")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url]",
	Short: "Analyze a URL and list download options",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		body := postJSON("/api/v1/analyze", map[string]interface{}{"url": args[0]}, http.StatusOK)

		var result struct {
			Metadata struct {
				Title    string `json:"title"`
				Uploader string `json:"uploader"`
				Platform struct {
					Name string `json:"name"`
				} `json:"platform"`
			} `json:"metadata"`
			IsImage         bool `json:"is_image"`
			DownloadOptions *struct {
				Video []map[string]interface{} `json:"video"`
				Audio []map[string]interface{} `json:"audio"`
			} `json:"download_options"`
			Images []map[string]interface{} `json:"images"`
		}
		json.Unmarshal(body, &result)

		fmt.Printf("Title:    %s\n", result.Metadata.Title)
		fmt.Printf("Uploader: %s\n", result.Metadata.Uploader)
		fmt.Printf("Platform: %s\n", result.Metadata.Platform.Name)

		if result.IsImage {
			fmt.Printf("Images:   %d\n", len(result.Images))
			return
		}
		if result.DownloadOptions == nil {
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FORMAT\tQUALITY\tEXT\tSIZE(MB)")
		for _, f := range result.DownloadOptions.Video {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", f["format_id"], f["quality"], f["ext"], f["size_mb"])
		}
		for _, f := range result.DownloadOptions.Audio {
			fmt.Fprintf(w, "%v\t%v (audio)\t%v\t%v\n", f["format_id"], f["quality"], f["ext"], f["size_mb"])
		}
		w.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Start a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		formatID, _ := cmd.Flags().GetString("format")
		audioOnly, _ := cmd.Flags().GetBool("audio")

		body := postJSON("/api/v1/downloads", map[string]interface{}{
			"url":        args[0],
			"format_id":  formatID,
			"audio_only": audioOnly,
		}, http.StatusCreated)

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Download started\nID: %s\nStatus: %s\n", result["id"], result["status"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		url := serverURL + "/api/v1/downloads"
		if status != "" {
			url += "?status=" + status
		}

		resp, err := http.Get(url)
		if err != nil {
			fatal(err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var downloads []map[string]interface{}
		json.Unmarshal(body, &downloads)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tSTATUS\tPROGRESS")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%v\t%v%%\n",
				truncate(stringOf(d["id"]), 8),
				truncate(stringOf(d["url"]), 40),
				d["status"],
				d["progress"])
		}
		w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		resp, err := http.Get(serverURL + "/api/v1/downloads/" + args[0])
		if err != nil {
			fatal(err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var pretty bytes.Buffer
		json.Indent(&pretty, body, "", "  ")
		fmt.Println(pretty.String())
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		postJSON("/api/v1/downloads/"+args[0]+"/cancel", nil, http.StatusOK)
		fmt.Println("Download cancelled")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		resp, err := http.Get(serverURL + "/api/v1/downloads/stats")
		if err != nil {
			fatal(err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]int64
		json.Unmarshal(body, &stats)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tCOUNT")
		for status, count := range stats {
			fmt.Fprintf(w, "%s\t%d\n", status, count)
		}
		w.Flush()
	},
}

// ensureServer verifies the server answers its health endpoint.
func ensureServer() {
	resp, err := http.Get(serverURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: server not reachable at %s (is it running?)\n", serverURL)
		os.Exit(1)
	}
	resp.Body.Close()
}

func postJSON(path string, payload interface{}, wantStatus int) []byte {
	var reqBody io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		reqBody = bytes.NewBuffer(data)
	}

	resp, err := http.Post(serverURL+path, "application/json", reqBody)
	if err != nil {
		fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
		os.Exit(1)
	}
	return body
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
