package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tgienger/tasktrack/internal/viewmodel"
)

func newCommentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"comment"},
		Short:   "Comment commands",
	}
	cmd.AddCommand(newCommentsListCmd(app))
	cmd.AddCommand(newCommentsAddCmd(app))
	cmd.AddCommand(newCommentsDeleteCmd(app))
	return cmd
}

func newCommentsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list TASK",
		Short: "List a task's comments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			comments, err := client.ListComments(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			rendered := viewmodel.Comments(comments, app.cfg.Location())
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), commentsJSON(rendered))
			}
			if len(rendered) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No comments.")
				return nil
			}
			commentList(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
}

func newCommentsAddCmd(app *App) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "add TASK TEXT",
		Short: "Add a comment, optionally with attachments",
		Example: strings.TrimSpace(`
  tasktrack comments add 12 "Bench log attached" --file bench.log --file trace.csv
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			op, err := ctrl.AddComment(taskID, args[1], files)
			if err != nil {
				return err
			}
			if _, err := ctrl.Run(cmd.Context(), op); err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "added", "task_id": taskID, "attachments": len(files)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment added to task #%d\n", taskID)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	return cmd
}

func newCommentsDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a comment and its attachments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("comment", args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			p := ctrl.RequestDeleteComment(id)
			ok, err := confirm(cmd, p.Prompt, yes)
			if err != nil || !ok {
				ctrl.Cancel()
				return err
			}
			if _, err := ctrl.Run(cmd.Context(), ctrl.Confirm()); err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "deleted", "id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment #%d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func newAttachmentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attachments",
		Aliases: []string{"attachment"},
		Short:   "Attachment commands",
	}
	var dir string
	get := &cobra.Command{
		Use:   "get ID",
		Short: "Download an attachment",
		Long:  `Saves the attachment under its original name. An existing file is never overwritten; a numeric suffix is added instead.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("attachment", args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.controller()
			if err != nil {
				return err
			}
			notices, err := ctrl.Run(cmd.Context(), ctrl.DownloadAttachment(id, dir))
			if err != nil {
				return err
			}
			var msg string
			if len(notices) > 0 {
				msg = notices[len(notices)-1].Message
			}
			if app.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "saved", "id": id, "message": msg})
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	get.Flags().StringVar(&dir, "dir", ".", "directory to save into")
	cmd.AddCommand(get)
	return cmd
}
