package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "vidfetch",
		Short: "Vidfetch CLI - Media download manager",
		Long:  `A command-line interface for managing media downloads driven by yt-dlp.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(watchCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		url := args[0]
		format, _ := cmd.Flags().GetString("format")
		audioOnly, _ := cmd.Flags().GetBool("audio")

		payload := map[string]interface{}{
			"url": url,
		}
		if format != "" {
			payload["format"] = format
		}
		if audioOnly {
			payload["audio_only"] = true
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/tasks", "application/json", bytes.NewBuffer(data))
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
		fmt.Printf("Task added successfully!\n")
		fmt.Printf("ID: %s\n", result["id"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		url := serverURL + "/api/v1/tasks"
		if status != "" {
			url += "?status=" + status
		}

		resp, err := http.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var tasks []map[string]interface{}
		json.Unmarshal(body, &tasks)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tURL\tSTATUS\tPROGRESS")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(stringField(t, "id"), 8),
				truncate(stringField(t, "title"), 30),
				truncate(stringField(t, "url"), 40),
				statusKind(t),
				progressField(t))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/tasks/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		fmt.Println("Task Statistics:")
		fmt.Printf("  Total:     %v\n", stats["total"])
		fmt.Printf("  Pending:   %v\n", stats["pending"])
		fmt.Printf("  Active:    %v\n", stats["active"])
		fmt.Printf("  Paused:    %v\n", stats["paused"])
		fmt.Printf("  Completed: %v\n", stats["completed"])
		fmt.Printf("  Failed:    %v\n", stats["failed"])
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get task details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Get(serverURL + "/api/v1/tasks/" + id)
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

		var task map[string]interface{}
		json.Unmarshal(body, &task)

		fmt.Printf("Task Details:\n")
		fmt.Printf("  ID:       %s\n", task["id"])
		fmt.Printf("  URL:      %s\n", task["url"])
		fmt.Printf("  Title:    %s\n", stringField(task, "title"))
		fmt.Printf("  Status:   %s\n", statusKind(task))
		fmt.Printf("  Progress: %s\n", progressField(task))
		fmt.Printf("  Retries:  %v/%v\n", task["retry_count"], task["retry_limit"])
		fmt.Printf("  Created:  %s\n", task["created_at"])
		if task["output_path"] != nil {
			fmt.Printf("  File:     %s\n", task["output_path"])
		}
		if task["diagnostic"] != nil {
			fmt.Printf("  Diagnostic:\n%s\n", task["diagnostic"])
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	Run:   actionCommand("cancel", "Task cancelled"),
}

var pauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a running task",
	Args:  cobra.ExactArgs(1),
	Run:   actionCommand("pause", "Task paused"),
}

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused task",
	Args:  cobra.ExactArgs(1),
	Run:   actionCommand("resume", "Task resumed"),
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed task",
	Args:  cobra.ExactArgs(1),
	Run:   actionCommand("retry", "Task queued for retry"),
}

// actionCommand builds a runner for the POST /tasks/:id/<action> endpoints.
func actionCommand(action, success string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Post(serverURL+"/api/v1/tasks/"+id+"/"+action, "application/json", nil)
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
		fmt.Println(success)
	}
}

var rmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		req, _ := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/tasks/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
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
		fmt.Println("Task removed")
	},
}

var metaCmd = &cobra.Command{
	Use:   "meta [url]",
	Short: "Fetch video metadata without downloading",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/metadata?url=" + args[0])
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

		var meta map[string]interface{}
		json.Unmarshal(body, &meta)
		prettyJSON, _ := json.MarshalIndent(meta, "", "  ")
		fmt.Println(string(prettyJSON))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Stream live task events (all tasks when no id is given)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/api/v1/events"
		if len(args) == 1 {
			wsURL = strings.Replace(serverURL, "http", "ws", 1) + "/api/v1/tasks/" + args[0] + "/events"
		}

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev map[string]interface{}
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			fmt.Printf("%s  %s  %s\n",
				truncate(stringField(ev, "task_id"), 8),
				statusKind(ev),
				progressField(ev))
		}
	},
}

func init() {
	addCmd.Flags().StringP("format", "f", "", "Format selector passed to the downloader")
	addCmd.Flags().BoolP("audio", "a", false, "Extract audio only")
	listCmd.Flags().StringP("status", "s", "", "Filter by status kind")
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func statusKind(m map[string]interface{}) string {
	status, ok := m["status"].(map[string]interface{})
	if !ok {
		return ""
	}
	kind := stringField(status, "kind")
	if msg := stringField(status, "message"); msg != "" {
		return kind + ": " + msg
	}
	if phase := stringField(status, "phase"); phase != "" {
		return kind + ": " + phase
	}
	return kind
}

func progressField(m map[string]interface{}) string {
	status, ok := m["status"].(map[string]interface{})
	if !ok {
		return ""
	}
	if p, ok := status["progress"].(float64); ok {
		return fmt.Sprintf("%.1f%%", p*100)
	}
	return "-"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
