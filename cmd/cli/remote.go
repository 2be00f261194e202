package main

import (
	"fmt"
	"io"
	"net/url"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
)

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Start a download on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		dir, _ := cmd.Flags().GetString("dir")

		payload := map[string]string{"url": args[0]}
		if dir != "" {
			payload["dir"] = dir
		}

		var download domain.Download
		if err := newAPIClient(serverURL).post("/api/v1/downloads", payload, &download); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Download started\n")
		fmt.Fprintf(out, "ID: %s\n", download.ID)
		fmt.Fprintf(out, "Status: %s\n", download.Status)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current download",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var current app.CurrentDownload
		if err := newAPIClient(serverURL).get("/api/v1/downloads/current", &current); err != nil {
			return err
		}
		printCurrent(cmd.OutOrStdout(), current)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the current download until it ends",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		return watchEvents(newAPIClient(serverURL), infrastructure.NewTerminalUI(nil, cmd.OutOrStdout(), false), cmd.OutOrStdout())
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the current download",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := newAPIClient(serverURL).post("/api/v1/downloads/current/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Download cancel requested")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished and running downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		path := "/api/v1/downloads"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}

		var downloads []domain.Download
		if err := newAPIClient(serverURL).get(path, &downloads); err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), downloads)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show download details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var download domain.Download
		if err := newAPIClient(serverURL).get("/api/v1/downloads/"+url.PathEscape(args[0]), &download); err != nil {
			return err
		}
		printDownload(cmd.OutOrStdout(), download)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a download from the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := newAPIClient(serverURL).delete("/api/v1/downloads/" + url.PathEscape(args[0])); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Download deleted")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var stats domain.DownloadStats
		if err := newAPIClient(serverURL).get("/api/v1/downloads/stats", &stats); err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringP("dir", "d", "", "Destination directory on the server")
	historyCmd.Flags().StringP("status", "s", "", "Filter by status")
}

// watchEvents renders the event stream on ui until the session in flight ends
func watchEvents(client *apiClient, ui *infrastructure.TerminalUI, out io.Writer) error {
	conn, err := client.dialEvents()
	if err != nil {
		return err
	}
	defer conn.Close()

	var snapshot struct {
		Current app.CurrentDownload `json:"current"`
	}
	if err := conn.ReadJSON(&snapshot); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if !snapshot.Current.Session.Active {
		printCurrent(out, snapshot.Current)
		return nil
	}

	for {
		var event infrastructure.UIEvent
		if err := conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("event stream closed: %w", err)
		}

		switch event.Type {
		case infrastructure.EventProgress:
			ui.SetProgress(event.Current, event.Total)
		case infrastructure.EventStatus:
			ui.ShowStatus(event.Message)
		case infrastructure.EventError:
			ui.ShowError(event.Message)
		case infrastructure.EventPrompt:
			answer := "declined"
			if event.Accepted {
				answer = "accepted"
			}
			ui.ShowStatus(fmt.Sprintf("%s (%s by server policy)", event.Message, answer))
		case infrastructure.EventTrigger:
			if event.Enabled {
				return nil
			}
		}
	}
}

func printCurrent(w io.Writer, current app.CurrentDownload) {
	if current.Download == nil {
		fmt.Fprintln(w, "No download yet")
		return
	}

	printDownload(w, *current.Download)
	if current.Session.Active {
		fmt.Fprintf(w, "  Progress: %s\n", infrastructure.FormatProgress(current.Session.BytesReceived, current.Session.BytesTotal))
	}
	if current.Message != "" {
		fmt.Fprintf(w, "  Message:  %s\n", current.Message)
	}
}

func printDownload(w io.Writer, d domain.Download) {
	fmt.Fprintf(w, "Download Details:\n")
	fmt.Fprintf(w, "  ID:       %s\n", d.ID)
	fmt.Fprintf(w, "  URL:      %s\n", d.URL)
	if d.FinalURL != "" && d.FinalURL != d.URL {
		fmt.Fprintf(w, "  Final:    %s (%d redirects)\n", d.FinalURL, d.Redirects)
	}
	fmt.Fprintf(w, "  Status:   %s\n", d.Status)
	fmt.Fprintf(w, "  Received: %s\n", humanize.Bytes(uint64(d.BytesReceived)))
	fmt.Fprintf(w, "  Created:  %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	if d.FilePath != "" {
		fmt.Fprintf(w, "  File:     %s\n", d.FilePath)
	}
	if d.ErrorMessage != "" {
		fmt.Fprintf(w, "  Error:    %s (%s)\n", d.ErrorMessage, d.ErrorKind)
	}
}

func printHistory(w io.Writer, downloads []domain.Download) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tURL\tSTATUS\tSIZE\tCREATED")
	for _, d := range downloads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			truncate(d.ID, 8),
			truncate(d.URL, 40),
			d.Status,
			humanize.Bytes(uint64(d.BytesReceived)),
			humanize.Time(d.CreatedAt))
	}
	tw.Flush()
}

func printStats(w io.Writer, stats domain.DownloadStats) {
	fmt.Fprintln(w, "Download Statistics:")
	fmt.Fprintf(w, "  Total:      %d\n", stats.Total)
	fmt.Fprintf(w, "  Active:     %d\n", stats.Active)
	fmt.Fprintf(w, "  Completed:  %d\n", stats.Completed)
	fmt.Fprintf(w, "  Failed:     %d\n", stats.Failed)
	fmt.Fprintf(w, "  Cancelled:  %d\n", stats.Cancelled)
	fmt.Fprintf(w, "  Downloaded: %s\n", humanize.Bytes(uint64(stats.BytesReceived)))
}
